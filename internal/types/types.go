// Package types provides common type definitions for the contract-pulse system.
package types

// ChainID represents supported blockchain networks
type ChainID string

const (
	// ChainEthereum represents the Ethereum mainnet
	ChainEthereum ChainID = "ethereum"
	// ChainPolygon represents the Polygon network
	ChainPolygon ChainID = "polygon"
	// ChainArbitrum represents the Arbitrum network
	ChainArbitrum ChainID = "arbitrum"
	// ChainOptimism represents the Optimism network
	ChainOptimism ChainID = "optimism"
	// ChainBase represents the Base network
	ChainBase ChainID = "base"
)

// TransactionStatus represents transaction execution status
type TransactionStatus string

const (
	// StatusSuccess represents a successful transaction
	StatusSuccess TransactionStatus = "success"
	// StatusFailed represents a failed transaction
	StatusFailed TransactionStatus = "failed"
)

// SyncState represents the lifecycle state of a sync run
type SyncState string

const (
	// SyncRunning means the continuation controller is actively cycling
	SyncRunning SyncState = "running"
	// SyncCompleted means the run reached a terminal completion state
	SyncCompleted SyncState = "completed"
	// SyncFailed means the run was marked failed externally or terminally
	SyncFailed SyncState = "failed"
)

// CompletionReason tags why a sync run reached a terminal state
type CompletionReason string

const (
	// ReasonNoData means the empty-cycle streak reached the exhaustion threshold
	ReasonNoData CompletionReason = "auto-stopped-no-data"
	// ReasonMaxCycles means the cycle ceiling was reached
	ReasonMaxCycles CompletionReason = "max-cycles-reached"
	// ReasonNormal means the run completed without a distinct trigger
	ReasonNormal CompletionReason = "normal-completion"
	// ReasonUserRequested means the continuous flag was revoked externally
	ReasonUserRequested CompletionReason = "user_requested"
)

// UserType classifies an accumulated user by its aggregate activity
type UserType string

const (
	// UserWhale represents users moving large total value
	UserWhale UserType = "whale"
	// UserPower represents users with sustained high transaction counts
	UserPower UserType = "power_user"
	// UserActive represents regularly transacting users
	UserActive UserType = "active"
	// UserEventActive represents users mostly visible through emitted events
	UserEventActive UserType = "event_active"
	// UserCasual represents everyone else
	UserCasual UserType = "casual"
)

// SyncStrategy selects how aggressively the first window reaches back
type SyncStrategy string

const (
	// StrategyComprehensive fetches a 100k-block initial window
	StrategyComprehensive SyncStrategy = "comprehensive"
	// StrategyStandard fetches a 50k-block initial window
	StrategyStandard SyncStrategy = "standard"
)

// RawTransaction is a transaction as returned by the block-range data source,
// before normalization. Big numbers are carried as decimal strings.
type RawTransaction struct {
	Hash        string            `json:"hash"`
	From        string            `json:"from"`
	To          string            `json:"to"`
	Value       string            `json:"value"`    // wei
	GasUsed     string            `json:"gasUsed"`  // units
	GasPrice    string            `json:"gasPrice"` // wei
	BlockNumber uint64            `json:"blockNumber"`
	Timestamp   int64             `json:"timestamp"`
	Status      TransactionStatus `json:"status"`
	Input       string            `json:"input,omitempty"`
	FuncName    *string           `json:"funcName,omitempty"`
}

// RawEvent is a decoded log entry as returned by the data source
type RawEvent struct {
	TransactionHash string   `json:"transactionHash"`
	LogIndex        *uint    `json:"logIndex,omitempty"` // nil defaults to 0 at dedup time
	Address         string   `json:"address"`
	EventName       string   `json:"eventName,omitempty"`
	Topics          []string `json:"topics,omitempty"`
	Data            string   `json:"data,omitempty"`
	BlockNumber     uint64   `json:"blockNumber"`
	Timestamp       int64    `json:"timestamp"`
}

// InteractionSummary summarizes one window fetch
type InteractionSummary struct {
	TotalTransactions int `json:"totalTransactions"`
	TotalEvents       int `json:"totalEvents"`
}

// ContractInteractions is the result of fetching one block-range window
type ContractInteractions struct {
	Transactions []RawTransaction   `json:"transactions"`
	Events       []RawEvent         `json:"events"`
	Summary      InteractionSummary `json:"summary"`
}

// NormalizedTransaction represents a transaction in the common format the
// accumulator and analyzers operate on. Values are denominated in the chain's
// native unit (ETH for EVM chains).
type NormalizedTransaction struct {
	Hash        string            `json:"hash"`
	Chain       ChainID           `json:"chain"`
	From        string            `json:"from"`
	To          string            `json:"to"`
	ValueEth    float64           `json:"valueEth"`
	GasCostEth  float64           `json:"gasCostEth"`
	Timestamp   int64             `json:"timestamp"`
	BlockNumber uint64            `json:"blockNumber"`
	Status      TransactionStatus `json:"status"`
	FuncName    *string           `json:"funcName,omitempty"`
}

// BlockWindow is a contiguous [FromBlock, ToBlock] range fetched in one cycle
type BlockWindow struct {
	FromBlock uint64 `json:"fromBlock"`
	ToBlock   uint64 `json:"toBlock"`
}
