package accumulator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/contract-pulse/internal/models"
	"github.com/contract-pulse/internal/syncerrors"
	"github.com/contract-pulse/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T, source BlockSource, runs *fakeRunStore, users *fakeUserStore, cfg ControllerConfig) *Controller {
	t.Helper()

	if cfg.CycleDelay == 0 {
		cfg.CycleDelay = time.Millisecond
	}
	bridge := NewRecordBridge(runs, users, nil)
	executor, err := NewCycleExecutor(&CycleExecutorConfig{
		Source:  source,
		Planner: NewWindowPlanner(0, 0),
		Bridge:  bridge,
	})
	require.NoError(t, err)

	controller, err := NewController(executor, bridge, cfg, nil)
	require.NoError(t, err)
	return controller
}

// freshDataSource returns interactions with hashes unique per call, so every
// cycle contributes new data
func freshDataSource(head, step uint64) *fakeSource {
	return &fakeSource{
		head: head,
		step: step,
		fetch: func(call int, _, _ uint64) (*types.ContractInteractions, error) {
			return &types.ContractInteractions{
				Transactions: []types.RawTransaction{
					rawTx(fmt.Sprintf("0xtx%d", call), "0x1", "1000000000000000000", 99_000+uint64(call), int64(1000+call)),
				},
			}, nil
		},
	}
}

func TestController_ExhaustionCompletion(t *testing.T) {
	runs := &fakeRunStore{run: newTestRun()}
	users := &fakeUserStore{user: &models.UserRecord{ID: "user-1"}}
	source := &fakeSource{head: 100_000} // always empty
	controller := newTestController(t, source, runs, users, ControllerConfig{
		EmptyCycleThreshold: 3,
		CycleCeiling:        50,
	})

	err := controller.Run(context.Background(), "analysis-1", "user-1")
	require.NoError(t, err)

	final := runs.current()
	assert.Equal(t, types.SyncCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	require.NotNil(t, final.ContinuousFlag)
	assert.False(t, *final.ContinuousFlag)
	require.NotNil(t, final.AutoStoppedReason)
	assert.Equal(t, string(types.ReasonNoData), *final.AutoStoppedReason)
	assert.Equal(t, 3, final.EmptyCycleStreak)
	// The exhausting cycle is reported, not the one that never ran
	assert.Equal(t, 3, final.CycleNumber)
	assert.Equal(t, 3, source.calls)

	onboarding := users.onboarding()
	assert.False(t, onboarding.ContinuousSyncEnabled)
	assert.True(t, onboarding.IsIndexed)
	assert.Equal(t, 100, onboarding.IndexingProgress)
	require.NotNil(t, onboarding.CompletionReason)
	assert.Equal(t, string(types.ReasonNoData), *onboarding.CompletionReason)
	assert.Nil(t, onboarding.IndexingError)
}

func TestController_CycleCeiling(t *testing.T) {
	runs := &fakeRunStore{run: newTestRun()}
	users := &fakeUserStore{user: &models.UserRecord{ID: "user-1"}}
	source := freshDataSource(100_000, 100)
	controller := newTestController(t, source, runs, users, ControllerConfig{
		EmptyCycleThreshold: 10,
		CycleCeiling:        2,
	})

	err := controller.Run(context.Background(), "analysis-1", "user-1")
	require.NoError(t, err)

	final := runs.current()
	assert.Equal(t, types.SyncCompleted, final.Status)
	require.NotNil(t, final.AutoStoppedReason)
	assert.Equal(t, string(types.ReasonMaxCycles), *final.AutoStoppedReason)
	assert.Equal(t, 2, source.calls)

	onboarding := users.onboarding()
	assert.True(t, onboarding.IsIndexed)
	require.NotNil(t, onboarding.CompletionReason)
	assert.Equal(t, string(types.ReasonMaxCycles), *onboarding.CompletionReason)
}

func TestController_UserRequestedStop(t *testing.T) {
	run := newTestRun()
	runs := &fakeRunStore{
		run: run,
		onFind: func(n int, r *models.SyncRun) {
			// Continuity revoked externally after the first cycle
			if n == 2 {
				r.ContinuousFlag = boolPtr(false)
			}
		},
	}
	users := &fakeUserStore{user: &models.UserRecord{ID: "user-1"}}
	source := freshDataSource(100_000, 100)
	controller := newTestController(t, source, runs, users, ControllerConfig{})

	err := controller.Run(context.Background(), "analysis-1", "user-1")
	require.NoError(t, err)

	final := runs.current()
	assert.Equal(t, types.SyncCompleted, final.Status)
	require.NotNil(t, final.AutoStoppedReason)
	assert.Equal(t, string(types.ReasonUserRequested), *final.AutoStoppedReason)
	// The in-flight cycle completed; no further cycle started
	assert.Equal(t, 1, source.calls)
}

func TestController_ContextCancellation(t *testing.T) {
	runs := &fakeRunStore{run: newTestRun()}
	users := &fakeUserStore{user: &models.UserRecord{ID: "user-1"}}
	source := freshDataSource(100_000, 100)
	controller := newTestController(t, source, runs, users, ControllerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := controller.Run(ctx, "analysis-1", "user-1")
	require.NoError(t, err)

	final := runs.current()
	assert.Equal(t, types.SyncCompleted, final.Status)
	require.NotNil(t, final.AutoStoppedReason)
	assert.Equal(t, string(types.ReasonUserRequested), *final.AutoStoppedReason)
	// Cancellation observed before any cycle ran; terminal writes still landed
	assert.Equal(t, 0, source.calls)
	assert.True(t, users.onboarding().IsIndexed)
}

func TestController_ExternallyFailedRecordStops(t *testing.T) {
	run := newTestRun()
	run.Status = types.SyncFailed
	runs := &fakeRunStore{run: run}
	users := &fakeUserStore{user: &models.UserRecord{ID: "user-1"}}
	source := freshDataSource(100_000, 100)
	controller := newTestController(t, source, runs, users, ControllerConfig{})

	err := controller.Run(context.Background(), "analysis-1", "user-1")
	require.NoError(t, err)

	assert.Equal(t, 0, source.calls)
	final := runs.current()
	require.NotNil(t, final.AutoStoppedReason)
	assert.Equal(t, string(types.ReasonNormal), *final.AutoStoppedReason)
}

func TestController_StatusDriftWithoutContinuityStops(t *testing.T) {
	run := newTestRun()
	run.Status = types.SyncCompleted
	run.ContinuousFlag = nil // never explicitly granted
	runs := &fakeRunStore{run: run}
	users := &fakeUserStore{user: &models.UserRecord{ID: "user-1"}}
	source := freshDataSource(100_000, 100)
	controller := newTestController(t, source, runs, users, ControllerConfig{})

	err := controller.Run(context.Background(), "analysis-1", "user-1")
	require.NoError(t, err)

	assert.Equal(t, 0, source.calls)
	final := runs.current()
	require.NotNil(t, final.AutoStoppedReason)
	assert.Equal(t, string(types.ReasonNormal), *final.AutoStoppedReason)
}

func TestController_CycleFailureTolerance(t *testing.T) {
	runs := &fakeRunStore{run: newTestRun()}
	users := &fakeUserStore{user: &models.UserRecord{ID: "user-1"}}
	source := &fakeSource{
		head: 100_000,
		step: 100,
		fetch: func(call int, _, _ uint64) (*types.ContractInteractions, error) {
			if call == 0 {
				return nil, syncerrors.NewProviderError("fetch", errors.New("rpc unreachable"))
			}
			return &types.ContractInteractions{
				Transactions: []types.RawTransaction{
					rawTx(fmt.Sprintf("0xtx%d", call), "0x1", "1000000000000000000", 99_000+uint64(call), int64(1000+call)),
				},
			}, nil
		},
	}
	controller := newTestController(t, source, runs, users, ControllerConfig{
		EmptyCycleThreshold: 10,
		CycleCeiling:        3,
	})

	err := controller.Run(context.Background(), "analysis-1", "user-1")
	require.NoError(t, err)

	final := runs.current()
	// Run survived the failed cycle and completed at the ceiling
	assert.Equal(t, types.SyncCompleted, final.Status)
	require.NotNil(t, final.AutoStoppedReason)
	assert.Equal(t, string(types.ReasonMaxCycles), *final.AutoStoppedReason)
	assert.Equal(t, 3, source.calls)

	// The failed cycle left a log line and still advanced the counter
	var failureLogged bool
	for _, line := range final.Logs {
		if strings.Contains(line, "Cycle 1 failed") && strings.Contains(line, "provider") {
			failureLogged = true
		}
	}
	assert.True(t, failureLogged, "expected a failure log line for cycle 1")
	// Failed cycles never count toward the empty streak
	assert.Equal(t, 0, final.EmptyCycleStreak)
}

func TestController_LastProcessedBlockMonotonic(t *testing.T) {
	runs := &fakeRunStore{run: newTestRun()}
	users := &fakeUserStore{user: &models.UserRecord{ID: "user-1"}}
	source := freshDataSource(100_000, 500)
	controller := newTestController(t, source, runs, users, ControllerConfig{
		EmptyCycleThreshold: 10,
		CycleCeiling:        4,
	})

	err := controller.Run(context.Background(), "analysis-1", "user-1")
	require.NoError(t, err)

	var prev uint64
	for _, u := range runs.updates {
		if u.LastProcessedBlock == nil {
			continue
		}
		assert.GreaterOrEqual(t, *u.LastProcessedBlock, prev)
		prev = *u.LastProcessedBlock
	}
	assert.Greater(t, prev, uint64(0))
}

func TestController_RecordMissingIsTerminal(t *testing.T) {
	runs := &fakeRunStore{run: newTestRun(), findErr: syncerrors.ErrRecordNotFound}
	users := &fakeUserStore{user: &models.UserRecord{ID: "user-1"}}
	controller := newTestController(t, &fakeSource{head: 100_000}, runs, users, ControllerConfig{})

	err := controller.Run(context.Background(), "analysis-1", "user-1")
	require.Error(t, err)
	assert.True(t, syncerrors.IsRecordMissing(err))
	// No record means no writes of any kind
	assert.Equal(t, 0, runs.updateCount())
	assert.Equal(t, 0, users.updateCount())
}

func TestController_UnrecoverableReadAnnotatesUser(t *testing.T) {
	runs := &fakeRunStore{run: newTestRun(), findErr: errors.New("connection refused")}
	users := &fakeUserStore{user: &models.UserRecord{ID: "user-1"}}
	controller := newTestController(t, &fakeSource{head: 100_000}, runs, users, ControllerConfig{})

	err := controller.Run(context.Background(), "analysis-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, syncerrors.ClassStorage, syncerrors.ClassOf(err))

	onboarding := users.onboarding()
	assert.False(t, onboarding.IsIndexed)
	assert.Equal(t, 0, onboarding.IndexingProgress)
	require.NotNil(t, onboarding.IndexingError)
	assert.Contains(t, *onboarding.IndexingError, "connection refused")
}
