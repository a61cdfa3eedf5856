package accumulator

import (
	"context"
	"fmt"
	"time"

	"github.com/contract-pulse/internal/logging"
	"github.com/contract-pulse/internal/models"
	"github.com/contract-pulse/internal/syncerrors"
	"github.com/contract-pulse/internal/types"
)

// Loop constants, fixed by design. They are configurable for tests but the
// defaults define the production termination behavior.
const (
	DefaultEmptyCycleThreshold = 10
	DefaultCycleCeiling        = 50
	DefaultCycleDelay          = 30 * time.Second
)

// ControllerConfig tunes the continuation state machine
type ControllerConfig struct {
	// EmptyCycleThreshold terminates the run after this many consecutive
	// cycles with no new data (default: 10)
	EmptyCycleThreshold int
	// CycleCeiling is the hard cap on completed cycles per run (default: 50)
	CycleCeiling int
	// CycleDelay is the fixed sleep between cycles (default: 30s)
	CycleDelay time.Duration
}

func (c *ControllerConfig) applyDefaults() {
	if c.EmptyCycleThreshold <= 0 {
		c.EmptyCycleThreshold = DefaultEmptyCycleThreshold
	}
	if c.CycleCeiling <= 0 {
		c.CycleCeiling = DefaultCycleCeiling
	}
	if c.CycleDelay <= 0 {
		c.CycleDelay = DefaultCycleDelay
	}
}

// Controller drives the continuous sync loop for one run. It decides before
// each cycle whether to continue, tolerates per-cycle failures indefinitely
// with a fixed backoff, and propagates every terminal transition to the
// owning user record.
type Controller struct {
	executor *CycleExecutor
	bridge   *RecordBridge
	cfg      ControllerConfig
	logger   *logging.Logger
}

// NewController creates a continuation controller
func NewController(executor *CycleExecutor, bridge *RecordBridge, cfg ControllerConfig, logger *logging.Logger) (*Controller, error) {
	if executor == nil {
		return nil, fmt.Errorf("cycle executor cannot be nil")
	}
	if bridge == nil {
		return nil, fmt.Errorf("record bridge cannot be nil")
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Controller{executor: executor, bridge: bridge, cfg: cfg, logger: logger}, nil
}

// Run executes the continuous sync loop until a terminal transition. The
// accumulated state lives in the store for exactly this invocation and is
// discarded when it returns.
//
// A cycle already in flight always runs to completion before an external
// stop takes effect: the stop signal (revoked continuous flag or context
// cancellation) is observed only at the top of each cycle.
func (c *Controller) Run(ctx context.Context, analysisID, userID string) error {
	logger := c.logger.WithFields(map[string]interface{}{
		"analysisId": analysisID,
		"userId":     userID,
	})
	logger.Info("Starting continuous contract sync")

	var store *DedupStore

	for {
		// Pre-cycle checks: read current external state
		run, err := c.bridge.Read(ctx, analysisID)
		if err != nil {
			if syncerrors.IsRecordMissing(err) {
				// No record means no further writes are possible
				logger.Error("Sync record disappeared, stopping")
				return err
			}
			return c.failUnrecoverable(ctx, userID, logger, err)
		}

		if ctx.Err() != nil || run.ContinuousRevoked() {
			logger.Info("Continuous sync stopped by request")
			return c.complete(ctx, run, userID, types.ReasonUserRequested, logger)
		}
		if run.Status == types.SyncFailed {
			logger.Warn("Sync record marked failed externally, stopping")
			return c.complete(ctx, run, userID, types.ReasonNormal, logger)
		}
		if run.Status != types.SyncRunning && !run.ContinuousEnabled() {
			// Status drifted without continuity being explicitly granted
			logger.Warn("Sync record no longer running and continuity not granted, stopping")
			return c.complete(ctx, run, userID, types.ReasonNormal, logger)
		}

		if store == nil {
			store = NewDedupStore(run.Chain, run.ContractAddress)
		}

		// Execute one cycle; all its errors surface here, never inside
		result, err := c.executor.ExecuteCycle(ctx, run, store)
		if err != nil {
			if failErr := c.recordCycleFailure(ctx, run, err, logger); failErr != nil {
				return c.failUnrecoverable(ctx, userID, logger, failErr)
			}
			c.sleep(ctx)
			continue
		}

		// Post-cycle transitions
		streak := 0
		if result.Empty() {
			streak = run.EmptyCycleStreak + 1
			if streak >= c.cfg.EmptyCycleThreshold {
				logger.WithFields(map[string]interface{}{
					"completedAfterCycles": run.CycleNumber,
					"emptyCycles":          streak,
				}).Info("No new data for sustained period, sync complete")
				if err := c.recordStreak(ctx, run, streak); err != nil {
					return c.failUnrecoverable(ctx, userID, logger, err)
				}
				return c.complete(ctx, run, userID, types.ReasonNoData, logger)
			}
		}

		nextCycle := run.CycleNumber + 1
		lastProcessed := result.Window.ToBlock
		update := &models.SyncRunUpdate{
			CycleNumber:        &nextCycle,
			LastProcessedBlock: &lastProcessed,
			EmptyCycleStreak:   &streak,
		}
		if err := c.bridge.WriteProgress(ctx, analysisID, update); err != nil {
			return c.failUnrecoverable(ctx, userID, logger, err)
		}

		if nextCycle > c.cfg.CycleCeiling {
			logger.WithField("cycles", run.CycleNumber).Info("Cycle ceiling reached, sync complete")
			run.CycleNumber = nextCycle
			return c.complete(ctx, run, userID, types.ReasonMaxCycles, logger)
		}

		c.sleep(ctx)
	}
}

// recordCycleFailure logs a failed cycle and advances the cycle counter so a
// pathological window cannot be retried forever. The empty-cycle streak is
// deliberately untouched: only successful cycles move it.
func (c *Controller) recordCycleFailure(ctx context.Context, run *models.SyncRun, cycleErr error, logger *logging.Logger) error {
	class := syncerrors.ClassOf(cycleErr)
	logger.WithFields(map[string]interface{}{
		"cycle": run.CycleNumber,
		"class": string(class),
		"error": cycleErr.Error(),
	}).Warn("Cycle failed, will retry after delay")

	line := fmt.Sprintf("Cycle %d failed (%s): %v", run.CycleNumber, class, cycleErr)
	if err := c.bridge.AppendLogs(ctx, run.AnalysisID, []string{line}); err != nil {
		return err
	}

	nextCycle := run.CycleNumber + 1
	return c.bridge.WriteProgress(ctx, run.AnalysisID, &models.SyncRunUpdate{CycleNumber: &nextCycle})
}

// recordStreak persists the final empty-cycle streak before an exhaustion
// completion so observers see how the run ended
func (c *Controller) recordStreak(ctx context.Context, run *models.SyncRun, streak int) error {
	return c.bridge.WriteProgress(ctx, run.AnalysisID, &models.SyncRunUpdate{EmptyCycleStreak: &streak})
}

// complete marks the run completed and propagates the terminal state to the
// owning user record. Terminal writes survive context cancellation: a
// cancelled run must still leave consistent records behind.
func (c *Controller) complete(ctx context.Context, run *models.SyncRun, userID string, reason types.CompletionReason, logger *logging.Logger) error {
	ctx = context.WithoutCancel(ctx)

	status := types.SyncCompleted
	progress := 100
	continuous := false
	reasonStr := string(reason)
	update := &models.SyncRunUpdate{
		Status:            &status,
		Progress:          &progress,
		ContinuousFlag:    &continuous,
		AutoStoppedReason: &reasonStr,
	}
	if err := c.bridge.WriteProgress(ctx, run.AnalysisID, update); err != nil {
		return c.failUnrecoverable(ctx, userID, logger, err)
	}

	line := fmt.Sprintf("Continuous sync completed after %d cycles (%s)", run.CycleNumber, reason)
	if err := c.bridge.AppendLogs(ctx, run.AnalysisID, []string{line}); err != nil {
		return c.failUnrecoverable(ctx, userID, logger, err)
	}

	indexed := true
	if err := c.bridge.WriteUserOnboarding(ctx, userID, &models.OnboardingUpdate{
		ContinuousSyncEnabled: &continuous,
		IsIndexed:             &indexed,
		IndexingProgress:      &progress,
		CompletionReason:      &reasonStr,
	}); err != nil {
		return c.failUnrecoverable(ctx, userID, logger, err)
	}

	logger.WithField("reason", reasonStr).Info("Continuous sync terminated")
	return nil
}

// failUnrecoverable annotates the user record with the error state and
// returns the error to the caller of the entry point
func (c *Controller) failUnrecoverable(ctx context.Context, userID string, logger *logging.Logger, cause error) error {
	ctx = context.WithoutCancel(ctx)
	logger.WithError(cause).Error("Continuous sync failed unrecoverably")

	indexed := false
	progress := 0
	message := cause.Error()
	if err := c.bridge.WriteUserOnboarding(ctx, userID, &models.OnboardingUpdate{
		IsIndexed:        &indexed,
		IndexingProgress: &progress,
		IndexingError:    &message,
	}); err != nil {
		// Best effort only: the original cause is what the caller needs
		logger.WithError(err).Error("Failed to annotate user record with sync error")
	}

	return cause
}

// sleep waits the fixed inter-cycle delay. Cancellation cuts the wait short;
// the stop itself is observed at the next pre-cycle check.
func (c *Controller) sleep(ctx context.Context) {
	select {
	case <-time.After(c.cfg.CycleDelay):
	case <-ctx.Done():
	}
}
