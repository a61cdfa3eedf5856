package accumulator

import (
	"context"

	"github.com/contract-pulse/internal/logging"
	"github.com/contract-pulse/internal/models"
	"github.com/contract-pulse/internal/syncerrors"
)

// SyncRecordStore is the narrow slice of the durable record store the loop
// needs for its own state
type SyncRecordStore interface {
	// FindSyncRun returns the run record, or syncerrors.ErrRecordNotFound
	FindSyncRun(ctx context.Context, analysisID string) (*models.SyncRun, error)

	// UpdateSyncRun applies a partial update: nil fields untouched, metadata
	// and results shallow-merged, logs append-only
	UpdateSyncRun(ctx context.Context, analysisID string, update *models.SyncRunUpdate) error
}

// UserRecordStore is the slice of the record store holding the owning user's
// onboarding projection
type UserRecordStore interface {
	FindUser(ctx context.Context, userID string) (*models.UserRecord, error)
	UpdateOnboarding(ctx context.Context, userID string, update *models.OnboardingUpdate) error
}

// RecordBridge mediates all record-store traffic for the sync loop. Writes
// within one cycle go through it in a fixed order (status/progress, then
// logs, then results) so concurrent readers never observe a result snapshot
// without its progress update.
type RecordBridge struct {
	runs   SyncRecordStore
	users  UserRecordStore
	logger *logging.Logger
}

// NewRecordBridge creates a bridge over the two record stores
func NewRecordBridge(runs SyncRecordStore, users UserRecordStore, logger *logging.Logger) *RecordBridge {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &RecordBridge{runs: runs, users: users, logger: logger}
}

// Read returns the current sync run record.
// A missing record surfaces as syncerrors.ErrRecordNotFound; any other read
// failure is a storage-class error.
func (b *RecordBridge) Read(ctx context.Context, analysisID string) (*models.SyncRun, error) {
	run, err := b.runs.FindSyncRun(ctx, analysisID)
	if err != nil {
		if syncerrors.IsRecordMissing(err) {
			return nil, err
		}
		return nil, syncerrors.NewStorageError("read", err)
	}
	return run, nil
}

// WriteProgress updates status, counters and metadata on the run record
func (b *RecordBridge) WriteProgress(ctx context.Context, analysisID string, update *models.SyncRunUpdate) error {
	if err := b.runs.UpdateSyncRun(ctx, analysisID, update); err != nil {
		return syncerrors.NewStorageError("writeProgress", err)
	}
	return nil
}

// AppendLogs appends human-readable progress lines to the run record
func (b *RecordBridge) AppendLogs(ctx context.Context, analysisID string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	if err := b.runs.UpdateSyncRun(ctx, analysisID, &models.SyncRunUpdate{AppendLogs: lines}); err != nil {
		return syncerrors.NewStorageError("appendLogs", err)
	}
	return nil
}

// WriteResults replaces the run record's result snapshot
func (b *RecordBridge) WriteResults(ctx context.Context, analysisID string, results map[string]interface{}) error {
	if err := b.runs.UpdateSyncRun(ctx, analysisID, &models.SyncRunUpdate{Results: results}); err != nil {
		return syncerrors.NewStorageError("writeResults", err)
	}
	return nil
}

// WriteUserOnboarding updates the owning user's onboarding projection.
// Failures are logged but not fatal to the caller unless it chooses so.
func (b *RecordBridge) WriteUserOnboarding(ctx context.Context, userID string, update *models.OnboardingUpdate) error {
	if err := b.users.UpdateOnboarding(ctx, userID, update); err != nil {
		return syncerrors.NewStorageError("writeUserOnboarding", err)
	}
	return nil
}
