package models

import (
	"time"

	"github.com/contract-pulse/internal/types"
)

// SyncRun is one continuous-sync invocation scoped to an (analysis, user)
// pair. It is the record the continuation controller reads before each cycle
// and writes through after each cycle.
//
// Invariants: CycleNumber strictly increases every iteration regardless of
// success or failure; LastProcessedBlock only moves forward or stays equal.
type SyncRun struct {
	AnalysisID      string             `json:"analysisId"`
	UserID          string             `json:"userId"`
	RunID           string             `json:"runId"`
	Chain           types.ChainID      `json:"chain"`
	ContractAddress string             `json:"contractAddress"`
	Strategy        types.SyncStrategy `json:"strategy"`

	Status             types.SyncState `json:"status"`
	ContinuousFlag     *bool           `json:"continuousFlag,omitempty"` // nil means never explicitly set
	CycleNumber        int             `json:"cycleNumber"`
	LastProcessedBlock *uint64         `json:"lastProcessedBlock,omitempty"`
	EmptyCycleStreak   int             `json:"emptyCycleStreak"`
	Progress           int             `json:"progress"` // 0-100

	AutoStoppedReason *string `json:"autoStoppedReason,omitempty"`
	ErrorMessage      *string `json:"errorMessage,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Logs     []string               `json:"logs,omitempty"`
	Results  map[string]interface{} `json:"results,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ContinuousEnabled reports whether the continuous flag is explicitly true
func (r *SyncRun) ContinuousEnabled() bool {
	return r.ContinuousFlag != nil && *r.ContinuousFlag
}

// ContinuousRevoked reports whether the continuous flag is explicitly false
func (r *SyncRun) ContinuousRevoked() bool {
	return r.ContinuousFlag != nil && !*r.ContinuousFlag
}

// SyncRunUpdate is a partial update applied to a SyncRun. Nil fields are left
// untouched; Metadata and Results are shallow-merged key by key; AppendLogs
// is append-only.
type SyncRunUpdate struct {
	Status             *types.SyncState
	ContinuousFlag     *bool
	CycleNumber        *int
	LastProcessedBlock *uint64
	EmptyCycleStreak   *int
	Progress           *int
	AutoStoppedReason  *string
	ErrorMessage       *string
	Metadata           map[string]interface{}
	AppendLogs         []string
	Results            map[string]interface{}
}
