package accumulator

import (
	"context"
	"fmt"
	"sync"

	"github.com/contract-pulse/internal/adapter"
	"github.com/contract-pulse/internal/logging"
	"github.com/contract-pulse/internal/syncerrors"
	"github.com/contract-pulse/internal/types"
)

// Service is the entry point for continuous contract sync. It holds the
// per-chain adapters and shared infrastructure, and tracks in-flight runs so
// they can be stopped by analysis ID.
type Service struct {
	adapters map[types.ChainID]adapter.ChainAdapter
	bridge   *RecordBridge
	planner  *WindowPlanner
	archive  TransactionArchive // optional
	cache    SnapshotCache      // optional
	cfg      ControllerConfig
	logger   *logging.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// ServiceConfig holds the collaborators of the sync service
type ServiceConfig struct {
	Adapters   map[types.ChainID]adapter.ChainAdapter
	Bridge     *RecordBridge
	Planner    *WindowPlanner
	Archive    TransactionArchive // optional
	Cache      SnapshotCache      // optional
	Controller ControllerConfig
	Logger     *logging.Logger
}

// NewService creates a sync service
func NewService(cfg *ServiceConfig) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if len(cfg.Adapters) == 0 {
		return nil, fmt.Errorf("at least one chain adapter is required")
	}
	if cfg.Bridge == nil {
		return nil, fmt.Errorf("record bridge cannot be nil")
	}

	planner := cfg.Planner
	if planner == nil {
		planner = NewWindowPlanner(0, 0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Service{
		adapters: cfg.Adapters,
		bridge:   cfg.Bridge,
		planner:  planner,
		archive:  cfg.Archive,
		cache:    cfg.Cache,
		cfg:      cfg.Controller,
		logger:   logger,
		active:   make(map[string]context.CancelFunc),
	}, nil
}

// PerformContinuousContractSync runs the full sync loop for one analysis,
// blocking until a terminal transition. The error return covers only
// unrecoverable controller-level failures; every terminal completion,
// including exhaustion and the cycle ceiling, returns nil.
func (s *Service) PerformContinuousContractSync(ctx context.Context, analysisID, userID string) error {
	run, err := s.bridge.Read(ctx, analysisID)
	if err != nil {
		return err
	}

	chainAdapter, ok := s.adapters[run.Chain]
	if !ok {
		return syncerrors.NewConfigurationError("PerformContinuousContractSync",
			fmt.Errorf("no adapter configured for chain %q", run.Chain))
	}

	executor, err := NewCycleExecutor(&CycleExecutorConfig{
		Source:  chainAdapter,
		Planner: s.planner,
		Bridge:  s.bridge,
		Archive: s.archive,
		Cache:   s.cache,
		Logger:  s.logger,
	})
	if err != nil {
		return syncerrors.NewInternalError("PerformContinuousContractSync", err)
	}

	controller, err := NewController(executor, s.bridge, s.cfg, s.logger)
	if err != nil {
		return syncerrors.NewInternalError("PerformContinuousContractSync", err)
	}

	return controller.Run(ctx, analysisID, userID)
}

// StartContinuousContractSync launches the sync loop in the background and
// returns immediately. A run already active for the analysis is an error.
func (s *Service) StartContinuousContractSync(ctx context.Context, analysisID, userID string) error {
	s.mu.Lock()
	if _, exists := s.active[analysisID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("sync already active for analysis %s", analysisID)
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.active[analysisID] = cancel
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.active, analysisID)
			s.mu.Unlock()
			cancel()
		}()
		if err := s.PerformContinuousContractSync(runCtx, analysisID, userID); err != nil {
			s.logger.WithFields(map[string]interface{}{
				"analysisId": analysisID,
				"userId":     userID,
			}).WithError(err).Error("Continuous sync ended with error")
		}
	}()

	return nil
}

// StopContinuousContractSync cancels an active run. The in-flight cycle
// finishes first; the loop then terminates as user requested.
func (s *Service) StopContinuousContractSync(analysisID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancel, ok := s.active[analysisID]
	if !ok {
		return false
	}
	cancel()
	return true
}

// IsActive reports whether a run is currently in flight for the analysis
func (s *Service) IsActive(analysisID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[analysisID]
	return ok
}

// ActiveRuns returns the analysis IDs of every in-flight run
func (s *Service) ActiveRuns() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	return ids
}
