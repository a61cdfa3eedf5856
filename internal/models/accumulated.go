package models

import (
	"time"

	"github.com/contract-pulse/internal/analytics"
	"github.com/contract-pulse/internal/types"
)

// AccumulatedTransaction is a normalized transaction as held by the dedup
// store, keyed by hash. A hash is stored exactly once across a run; later
// re-fetches are counted as duplicates, not errors.
type AccumulatedTransaction struct {
	Hash           string                  `json:"hash"`
	FromAddress    string                  `json:"fromAddress"`
	ValueEth       float64                 `json:"valueEth"`
	GasCostEth     float64                 `json:"gasCostEth"`
	BlockNumber    uint64                  `json:"blockNumber"`
	BlockTimestamp int64                   `json:"blockTimestamp"`
	Status         types.TransactionStatus `json:"status"`
	FuncName       *string                 `json:"funcName,omitempty"`
	SyncCycle      int                     `json:"syncCycle"` // cycle that first introduced it
	AddedAt        time.Time               `json:"addedAt"`
}

// AccumulatedEvent is a decoded log entry held by the dedup store, keyed by
// transactionHash + logIndex (logIndex defaults to 0 when absent)
type AccumulatedEvent struct {
	TransactionHash string    `json:"transactionHash"`
	LogIndex        uint      `json:"logIndex"`
	Address         string    `json:"address"`
	EventName       string    `json:"eventName,omitempty"`
	BlockNumber     uint64    `json:"blockNumber"`
	BlockTimestamp  int64     `json:"blockTimestamp"`
	SyncCycle       int       `json:"syncCycle"`
	AddedAt         time.Time `json:"addedAt"`
}

// AccumulatedUser is derived, never fetched: recomputed in full from the
// entire accumulated transaction and event set every cycle, because the
// classification depends on global aggregates that shift as history accrues.
type AccumulatedUser struct {
	Address           string         `json:"address"`
	TransactionCount  int            `json:"transactionCount"`
	TotalValueEth     float64        `json:"totalValueEth"`
	TotalGasSpentEth  float64        `json:"totalGasSpentEth"`
	FirstSeen         int64          `json:"firstSeen"`
	LastSeen          int64          `json:"lastSeen"`
	EventInteractions int            `json:"eventInteractions"`
	LoyaltyScore      float64        `json:"loyaltyScore"` // 0-100
	RiskScore         float64        `json:"riskScore"`    // 0-100
	UserType          types.UserType `json:"userType"`
	SyncCyclesActive  []int          `json:"syncCyclesActive"` // sorted, unique
	LastActiveSync    int            `json:"lastActiveSync"`
}

// FullReport bundles every analyzer's output for one cycle's snapshot
type FullReport struct {
	Metrics   analytics.MetricsReport   `json:"metrics"`
	UX        analytics.UXReport        `json:"ux"`
	Journeys  analytics.JourneyReport   `json:"journeys"`
	Lifecycle analytics.LifecycleReport `json:"lifecycle"`
}

// AccumulatedMetrics is one computed snapshot per cycle. It fully replaces
// the prior snapshot rather than merging field by field.
type AccumulatedMetrics struct {
	SyncCycle           int               `json:"syncCycle"`
	BlockRangeProcessed types.BlockWindow `json:"blockRangeProcessed"`
	NewTransactions     int               `json:"newTransactions"`
	NewEvents           int               `json:"newEvents"`
	NewUsers            int               `json:"newUsers"`
	DuplicatesSkipped   int               `json:"duplicatesSkipped"`
	DataIntegrityScore  float64           `json:"dataIntegrityScore"` // 0-100, per-cycle
	TotalTransactions   int               `json:"totalTransactions"`
	TotalEvents         int               `json:"totalEvents"`
	TotalUsers          int               `json:"totalUsers"`
	Report              FullReport        `json:"report"`
	ComputedAt          time.Time         `json:"computedAt"`
}
