package accumulator

import (
	"context"
	"sync"

	"github.com/contract-pulse/internal/models"
	"github.com/contract-pulse/internal/types"
)

// fakeRunStore is an in-memory SyncRecordStore that mirrors the repository's
// partial-update semantics
type fakeRunStore struct {
	mu        sync.Mutex
	run       *models.SyncRun
	findErr   error
	updateErr error
	updates   []*models.SyncRunUpdate
	finds     int
	// onFind mutates the stored run before the nth read, simulating
	// external writers flipping flags mid-run
	onFind func(n int, run *models.SyncRun)
}

func (s *fakeRunStore) FindSyncRun(_ context.Context, _ string) (*models.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finds++
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.onFind != nil {
		s.onFind(s.finds, s.run)
	}
	copied := *s.run
	return &copied, nil
}

func (s *fakeRunStore) UpdateSyncRun(_ context.Context, _ string, update *models.SyncRunUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, update)
	applyRunUpdate(s.run, update)
	return nil
}

func (s *fakeRunStore) current() models.SyncRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.run
}

func (s *fakeRunStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func applyRunUpdate(run *models.SyncRun, u *models.SyncRunUpdate) {
	if u.Status != nil {
		run.Status = *u.Status
	}
	if u.ContinuousFlag != nil {
		run.ContinuousFlag = u.ContinuousFlag
	}
	if u.CycleNumber != nil {
		run.CycleNumber = *u.CycleNumber
	}
	if u.LastProcessedBlock != nil {
		run.LastProcessedBlock = u.LastProcessedBlock
	}
	if u.EmptyCycleStreak != nil {
		run.EmptyCycleStreak = *u.EmptyCycleStreak
	}
	if u.Progress != nil {
		run.Progress = *u.Progress
	}
	if u.AutoStoppedReason != nil {
		run.AutoStoppedReason = u.AutoStoppedReason
	}
	if u.ErrorMessage != nil {
		run.ErrorMessage = u.ErrorMessage
	}
	if u.Metadata != nil {
		if run.Metadata == nil {
			run.Metadata = make(map[string]interface{})
		}
		for k, v := range u.Metadata {
			run.Metadata[k] = v
		}
	}
	if u.Results != nil {
		if run.Results == nil {
			run.Results = make(map[string]interface{})
		}
		for k, v := range u.Results {
			run.Results[k] = v
		}
	}
	run.Logs = append(run.Logs, u.AppendLogs...)
}

// fakeUserStore is an in-memory UserRecordStore
type fakeUserStore struct {
	mu      sync.Mutex
	user    *models.UserRecord
	updates []*models.OnboardingUpdate
}

func (s *fakeUserStore) FindUser(_ context.Context, _ string) (*models.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *s.user
	return &copied, nil
}

func (s *fakeUserStore) UpdateOnboarding(_ context.Context, _ string, update *models.OnboardingUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updates = append(s.updates, update)
	if update.ContinuousSyncEnabled != nil {
		s.user.Onboarding.ContinuousSyncEnabled = *update.ContinuousSyncEnabled
	}
	if update.IsIndexed != nil {
		s.user.Onboarding.IsIndexed = *update.IsIndexed
	}
	if update.IndexingProgress != nil {
		s.user.Onboarding.IndexingProgress = *update.IndexingProgress
	}
	if update.CompletionReason != nil {
		s.user.Onboarding.CompletionReason = update.CompletionReason
	}
	if update.IndexingError != nil {
		s.user.Onboarding.IndexingError = update.IndexingError
	}
	return nil
}

func (s *fakeUserStore) onboarding() models.OnboardingProjection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user.Onboarding
}

func (s *fakeUserStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

// fakeSource scripts a BlockSource: the head advances by step per cycle, and
// fetch decides what each cycle's window returns
type fakeSource struct {
	mu    sync.Mutex
	head  uint64
	step  uint64
	fetch func(call int, fromBlock, toBlock uint64) (*types.ContractInteractions, error)
	calls int
}

func (s *fakeSource) GetCurrentBlockNumber(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head += s.step
	return s.head, nil
}

func (s *fakeSource) FetchContractInteractions(_ context.Context, _ string, fromBlock, toBlock uint64) (*types.ContractInteractions, error) {
	s.mu.Lock()
	call := s.calls
	s.calls++
	s.mu.Unlock()

	if s.fetch == nil {
		return emptyInteractions(), nil
	}
	return s.fetch(call, fromBlock, toBlock)
}

func emptyInteractions() *types.ContractInteractions {
	return &types.ContractInteractions{}
}

func rawTx(hash, from, valueWei string, block uint64, ts int64) types.RawTransaction {
	return types.RawTransaction{
		Hash:        hash,
		From:        from,
		To:          "0xcontract",
		Value:       valueWei,
		GasUsed:     "21000",
		GasPrice:    "1000000000",
		BlockNumber: block,
		Timestamp:   ts,
		Status:      types.StatusSuccess,
	}
}

func normalizedTx(hash, from string, valueEth float64, block uint64, ts int64) types.NormalizedTransaction {
	return types.NormalizedTransaction{
		Hash:        hash,
		Chain:       types.ChainEthereum,
		From:        from,
		To:          "0xcontract",
		ValueEth:    valueEth,
		Timestamp:   ts,
		BlockNumber: block,
		Status:      types.StatusSuccess,
	}
}

func boolPtr(b bool) *bool       { return &b }
func uint64Ptr(v uint64) *uint64 { return &v }

func newTestRun() *models.SyncRun {
	return &models.SyncRun{
		AnalysisID:      "analysis-1",
		UserID:          "user-1",
		RunID:           "run-1",
		Chain:           types.ChainEthereum,
		ContractAddress: "0xcontract",
		Strategy:        types.StrategyStandard,
		Status:          types.SyncRunning,
		ContinuousFlag:  boolPtr(true),
		CycleNumber:     1,
	}
}
