package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/contract-pulse/internal/models"
	"github.com/contract-pulse/internal/syncerrors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AnalysisRepository persists sync run records. Partial updates follow the
// record-bridge contract: nil fields untouched, metadata and results
// shallow-merged at the top level, logs append-only.
type AnalysisRepository struct {
	db *PostgresDB
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *PostgresDB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

const syncRunColumns = `
	analysis_id, user_id, run_id, chain, contract_address, strategy,
	status, continuous_flag, cycle_number, last_processed_block,
	empty_cycle_streak, progress, auto_stopped_reason, error_message,
	metadata, logs, results, created_at, updated_at
`

// CreateSyncRun inserts a new sync run record. A missing RunID is assigned
// a fresh UUID.
func (r *AnalysisRepository) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now

	metadata, err := marshalJSONB(run.Metadata, "{}")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	logs, err := marshalJSONB(run.Logs, "[]")
	if err != nil {
		return fmt.Errorf("failed to encode logs: %w", err)
	}
	results, err := marshalJSONB(run.Results, "{}")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	query := `
		INSERT INTO sync_runs (` + syncRunColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err = r.db.Pool().Exec(ctx, query,
		run.AnalysisID,
		run.UserID,
		run.RunID,
		run.Chain,
		run.ContractAddress,
		run.Strategy,
		run.Status,
		run.ContinuousFlag,
		run.CycleNumber,
		run.LastProcessedBlock,
		run.EmptyCycleStreak,
		run.Progress,
		run.AutoStoppedReason,
		run.ErrorMessage,
		metadata,
		logs,
		results,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}

	return nil
}

// FindSyncRun retrieves a sync run by analysis ID. A missing record returns
// syncerrors.ErrRecordNotFound.
func (r *AnalysisRepository) FindSyncRun(ctx context.Context, analysisID string) (*models.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE analysis_id = $1`

	var run models.SyncRun
	var metadata, logs, results []byte

	err := r.db.Pool().QueryRow(ctx, query, analysisID).Scan(
		&run.AnalysisID,
		&run.UserID,
		&run.RunID,
		&run.Chain,
		&run.ContractAddress,
		&run.Strategy,
		&run.Status,
		&run.ContinuousFlag,
		&run.CycleNumber,
		&run.LastProcessedBlock,
		&run.EmptyCycleStreak,
		&run.Progress,
		&run.AutoStoppedReason,
		&run.ErrorMessage,
		&metadata,
		&logs,
		&results,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, syncerrors.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}

	if err := unmarshalJSONB(metadata, &run.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if err := unmarshalJSONB(logs, &run.Logs); err != nil {
		return nil, fmt.Errorf("failed to decode logs: %w", err)
	}
	if err := unmarshalJSONB(results, &run.Results); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}

	return &run, nil
}

// UpdateSyncRun applies a partial update to a sync run. Only the non-nil
// fields of the update are written; metadata and results merge key by key
// into the stored document, and AppendLogs extends the log array.
func (r *AnalysisRepository) UpdateSyncRun(ctx context.Context, analysisID string, update *models.SyncRunUpdate) error {
	sets := []string{"updated_at = now()"}
	args := []interface{}{analysisID}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf(clause, len(args)))
	}

	if update.Status != nil {
		add("status = $%d", *update.Status)
	}
	if update.ContinuousFlag != nil {
		add("continuous_flag = $%d", *update.ContinuousFlag)
	}
	if update.CycleNumber != nil {
		add("cycle_number = $%d", *update.CycleNumber)
	}
	if update.LastProcessedBlock != nil {
		add("last_processed_block = $%d", *update.LastProcessedBlock)
	}
	if update.EmptyCycleStreak != nil {
		add("empty_cycle_streak = $%d", *update.EmptyCycleStreak)
	}
	if update.Progress != nil {
		add("progress = $%d", *update.Progress)
	}
	if update.AutoStoppedReason != nil {
		add("auto_stopped_reason = $%d", *update.AutoStoppedReason)
	}
	if update.ErrorMessage != nil {
		add("error_message = $%d", *update.ErrorMessage)
	}
	if update.Metadata != nil {
		encoded, err := json.Marshal(update.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		add("metadata = COALESCE(metadata, '{}'::jsonb) || $%d::jsonb", encoded)
	}
	if update.Results != nil {
		encoded, err := json.Marshal(update.Results)
		if err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
		add("results = COALESCE(results, '{}'::jsonb) || $%d::jsonb", encoded)
	}
	if len(update.AppendLogs) > 0 {
		encoded, err := json.Marshal(update.AppendLogs)
		if err != nil {
			return fmt.Errorf("failed to encode logs: %w", err)
		}
		add("logs = COALESCE(logs, '[]'::jsonb) || $%d::jsonb", encoded)
	}

	query := fmt.Sprintf(
		"UPDATE sync_runs SET %s WHERE analysis_id = $1",
		strings.Join(sets, ", "),
	)

	result, err := r.db.Pool().Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update sync run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return syncerrors.ErrRecordNotFound
	}

	return nil
}

// ListSyncRunsByUser retrieves all sync runs owned by a user, newest first
func (r *AnalysisRepository) ListSyncRunsByUser(ctx context.Context, userID string) ([]*models.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		var run models.SyncRun
		var metadata, logs, results []byte

		err := rows.Scan(
			&run.AnalysisID,
			&run.UserID,
			&run.RunID,
			&run.Chain,
			&run.ContractAddress,
			&run.Strategy,
			&run.Status,
			&run.ContinuousFlag,
			&run.CycleNumber,
			&run.LastProcessedBlock,
			&run.EmptyCycleStreak,
			&run.Progress,
			&run.AutoStoppedReason,
			&run.ErrorMessage,
			&metadata,
			&logs,
			&results,
			&run.CreatedAt,
			&run.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}

		if err := unmarshalJSONB(metadata, &run.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
		if err := unmarshalJSONB(logs, &run.Logs); err != nil {
			return nil, fmt.Errorf("failed to decode logs: %w", err)
		}
		if err := unmarshalJSONB(results, &run.Results); err != nil {
			return nil, fmt.Errorf("failed to decode results: %w", err)
		}

		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync runs: %w", err)
	}

	return runs, nil
}

// marshalJSONB encodes a value for a jsonb column, substituting the given
// empty document for nil
func marshalJSONB(value interface{}, empty string) ([]byte, error) {
	if value == nil {
		return []byte(empty), nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	// A nil map or slice encodes as JSON null, which breaks jsonb merges
	if string(encoded) == "null" {
		return []byte(empty), nil
	}
	return encoded, nil
}

// unmarshalJSONB decodes a jsonb column, treating NULL as absent
func unmarshalJSONB(data []byte, target interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, target)
}
