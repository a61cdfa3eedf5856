package accumulator

import (
	"context"
	"fmt"
	"time"

	"github.com/contract-pulse/internal/adapter"
	"github.com/contract-pulse/internal/analytics"
	"github.com/contract-pulse/internal/logging"
	"github.com/contract-pulse/internal/models"
	"github.com/contract-pulse/internal/types"
)

// fetchMethod tags how the accumulated data was obtained, recorded in the
// run's metadata each cycle.
const fetchMethod = "interaction-based"

// BlockSource is the block-range data source a cycle fetches from
type BlockSource interface {
	GetCurrentBlockNumber(ctx context.Context) (uint64, error)
	FetchContractInteractions(ctx context.Context, address string, fromBlock, toBlock uint64) (*types.ContractInteractions, error)
}

// NormalizeFunc converts raw transactions to the normalized common format
type NormalizeFunc func(rawTxs []types.RawTransaction, chain types.ChainID) ([]types.NormalizedTransaction, error)

// TransactionArchive receives newly accumulated transactions for long-term
// storage. Archive failures never fail a cycle.
type TransactionArchive interface {
	ArchiveTransactions(ctx context.Context, txs []*models.ArchiveTransaction) error
}

// SnapshotCache caches the latest metrics snapshot for cheap status polling
type SnapshotCache interface {
	SetLatestSnapshot(ctx context.Context, analysisID string, snapshot *models.AccumulatedMetrics) error
}

// CycleResult is what one executed cycle reports back to the controller
type CycleResult struct {
	Window            types.BlockWindow
	NewTransactions   int
	NewEvents         int
	NewUsers          int
	DuplicatesSkipped int
	Snapshot          *models.AccumulatedMetrics
}

// Empty reports whether the cycle contributed no new transactions and no
// new events
func (r *CycleResult) Empty() bool {
	return r.NewTransactions == 0 && r.NewEvents == 0
}

// CycleExecutor runs one fetch-normalize-merge-derive-persist iteration.
// It performs no retries of its own: any error escapes to the continuation
// controller, which owns the failure policy.
type CycleExecutor struct {
	source    BlockSource
	normalize NormalizeFunc
	planner   *WindowPlanner
	bridge    *RecordBridge
	archive   TransactionArchive // optional
	cache     SnapshotCache      // optional
	logger    *logging.Logger
}

// CycleExecutorConfig holds the collaborators of a cycle executor
type CycleExecutorConfig struct {
	Source    BlockSource
	Normalize NormalizeFunc // defaults to adapter.NormalizeTransactions
	Planner   *WindowPlanner
	Bridge    *RecordBridge
	Archive   TransactionArchive // optional
	Cache     SnapshotCache      // optional
	Logger    *logging.Logger
}

// NewCycleExecutor creates a cycle executor
func NewCycleExecutor(cfg *CycleExecutorConfig) (*CycleExecutor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("block source cannot be nil")
	}
	if cfg.Planner == nil {
		return nil, fmt.Errorf("window planner cannot be nil")
	}
	if cfg.Bridge == nil {
		return nil, fmt.Errorf("record bridge cannot be nil")
	}

	normalize := cfg.Normalize
	if normalize == nil {
		normalize = adapter.NormalizeTransactions
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &CycleExecutor{
		source:    cfg.Source,
		normalize: normalize,
		planner:   cfg.Planner,
		bridge:    cfg.Bridge,
		archive:   cfg.Archive,
		cache:     cfg.Cache,
		logger:    logger,
	}, nil
}

// ExecuteCycle runs one full cycle against the given run record and store,
// persisting the snapshot and progress logs through the record bridge.
// The write order is fixed: progress/metadata, then logs, then results.
func (e *CycleExecutor) ExecuteCycle(ctx context.Context, run *models.SyncRun, store *DedupStore) (*CycleResult, error) {
	cycleStart := time.Now().UTC()
	logger := e.logger.WithFields(map[string]interface{}{
		"analysisId": run.AnalysisID,
		"cycle":      run.CycleNumber,
	})

	// 1. Plan the window and fetch interactions
	head, err := e.source.GetCurrentBlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	window := e.planner.PlanWindow(head, run.LastProcessedBlock, run.CycleNumber, run.Strategy)

	interactions, err := e.source.FetchContractInteractions(ctx, run.ContractAddress, window.FromBlock, window.ToBlock)
	if err != nil {
		return nil, err
	}

	// 2. Normalize (chain id is mandatory, fails fast when absent)
	normalized, err := e.normalize(interactions.Transactions, run.Chain)
	if err != nil {
		return nil, err
	}

	// 3. Merge into the dedup store
	usersBefore := store.UserCount()
	txMerge := store.MergeTransactions(normalized, run.CycleNumber)
	eventMerge := store.MergeEvents(interactions.Events, run.CycleNumber)

	// 4. Derive users from the entire accumulated set
	users := store.DeriveUsers()
	newUsers := len(users) - usersBefore
	if newUsers < 0 {
		newUsers = 0
	}

	// 5-6. Run every analyzer over the full accumulated transaction set
	allTxs := store.AllTransactions()
	report := models.FullReport{
		Metrics:   analytics.CalculateAllMetrics(allTxs),
		UX:        analytics.AnalyzeUXBottlenecks(allTxs),
		Journeys:  analytics.AnalyzeJourneys(allTxs),
		Lifecycle: analytics.AnalyzeUserLifecycle(allTxs),
	}

	// 7. Assemble the consolidated snapshot
	snapshot := &models.AccumulatedMetrics{
		SyncCycle:           run.CycleNumber,
		BlockRangeProcessed: window,
		NewTransactions:     txMerge.Added,
		NewEvents:           eventMerge.Added,
		NewUsers:            newUsers,
		DuplicatesSkipped:   txMerge.Skipped,
		DataIntegrityScore:  dataIntegrityScore(txMerge.Skipped, len(normalized)),
		TotalTransactions:   store.TransactionCount(),
		TotalEvents:         store.EventCount(),
		TotalUsers:          store.UserCount(),
		Report:              report,
		ComputedAt:          time.Now().UTC(),
	}

	// 8. Persist: progress/metadata first, then logs, then results
	if err := e.persistCycle(ctx, run, store, window, snapshot, cycleStart); err != nil {
		return nil, err
	}

	// Best-effort side writes: the archive and cache never fail a cycle
	e.archiveNewTransactions(ctx, run, txMerge.AddedTransactions, logger)
	e.cacheSnapshot(ctx, run.AnalysisID, snapshot, logger)

	logger.WithFields(map[string]interface{}{
		"newTxs":    txMerge.Added,
		"newEvents": eventMerge.Added,
		"skipped":   txMerge.Skipped,
		"fromBlock": window.FromBlock,
		"toBlock":   window.ToBlock,
	}).Info("Cycle completed")

	return &CycleResult{
		Window:            window,
		NewTransactions:   txMerge.Added,
		NewEvents:         eventMerge.Added,
		NewUsers:          newUsers,
		DuplicatesSkipped: txMerge.Skipped,
		Snapshot:          snapshot,
	}, nil
}

// dataIntegrityScore is 100 minus the duplicate share of this cycle's fetch,
// clamped to [0, 100]. The denominator is deliberately the current cycle's
// fetch size, not the cumulative one.
func dataIntegrityScore(duplicatesSkipped, newlyFetched int) float64 {
	if newlyFetched == 0 {
		return 100
	}
	score := 100 - float64(duplicatesSkipped)/float64(newlyFetched)*100
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// persistCycle writes the cycle outcome through the bridge in fixed order
func (e *CycleExecutor) persistCycle(ctx context.Context, run *models.SyncRun, store *DedupStore, window types.BlockWindow, snapshot *models.AccumulatedMetrics, cycleStart time.Time) error {
	progress := run.CycleNumber * 2
	if progress > 99 {
		progress = 99
	}
	toBlock := window.ToBlock

	update := &models.SyncRunUpdate{
		Progress:           &progress,
		LastProcessedBlock: &toBlock,
		Metadata: map[string]interface{}{
			"syncCycle":          run.CycleNumber,
			"lastProcessedBlock": toBlock,
			"fetchMethod":        fetchMethod,
			"cycleStartTime":     cycleStart.Format(time.RFC3339),
		},
	}
	if err := e.bridge.WriteProgress(ctx, run.AnalysisID, update); err != nil {
		return err
	}

	logs := []string{
		fmt.Sprintf("Cycle %d: blocks %d-%d, %d new transactions, %d duplicates skipped, %d new events",
			run.CycleNumber, window.FromBlock, window.ToBlock,
			snapshot.NewTransactions, snapshot.DuplicatesSkipped, snapshot.NewEvents),
		fmt.Sprintf("Cycle %d: UX grade %s, retention %.1f%%, data integrity %.1f%%",
			run.CycleNumber, snapshot.Report.UX.Grade.Grade,
			snapshot.Report.Lifecycle.Summary.RetentionRate, snapshot.DataIntegrityScore),
	}
	if err := e.bridge.AppendLogs(ctx, run.AnalysisID, logs); err != nil {
		return err
	}

	results := map[string]interface{}{
		"target": map[string]interface{}{
			"metrics":      snapshot.Report.Metrics,
			"transactions": snapshot.TotalTransactions,
			"blockRange":   window,
			"fullReport":   snapshot.Report,
			// Detail is capped to the most recent entries; totals above carry
			// the full accumulated counts
			"recentTransactions": store.RecentTransactions(),
			"recentEvents":       store.RecentEvents(),
		},
	}
	return e.bridge.WriteResults(ctx, run.AnalysisID, results)
}

// archiveNewTransactions ships this cycle's newly accumulated transactions
// to the archive, if one is configured
func (e *CycleExecutor) archiveNewTransactions(ctx context.Context, run *models.SyncRun, added []*models.AccumulatedTransaction, logger *logging.Logger) {
	if e.archive == nil || len(added) == 0 {
		return
	}

	rows := make([]*models.ArchiveTransaction, 0, len(added))
	for _, tx := range added {
		rows = append(rows, models.ToArchiveTransaction(run.AnalysisID, run.Chain, tx))
	}
	if err := e.archive.ArchiveTransactions(ctx, rows); err != nil {
		logger.WithError(err).Warn("Failed to archive accumulated transactions")
	}
}

// cacheSnapshot write-throughs the latest snapshot, if a cache is configured
func (e *CycleExecutor) cacheSnapshot(ctx context.Context, analysisID string, snapshot *models.AccumulatedMetrics, logger *logging.Logger) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SetLatestSnapshot(ctx, analysisID, snapshot); err != nil {
		logger.WithError(err).Warn("Failed to cache latest snapshot")
	}
}
