package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/contract-pulse/internal/models"
	"github.com/contract-pulse/internal/syncerrors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository persists user records and their onboarding projection
type UserRepository struct {
	db *PostgresDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *PostgresDB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a new user record. A missing ID is assigned a fresh UUID.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.UserRecord) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (
			id, email, continuous_sync_enabled, is_indexed, indexing_progress,
			completion_reason, indexing_error, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		user.ID,
		user.Email,
		user.Onboarding.ContinuousSyncEnabled,
		user.Onboarding.IsIndexed,
		user.Onboarding.IndexingProgress,
		user.Onboarding.CompletionReason,
		user.Onboarding.IndexingError,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// FindUser retrieves a user by ID. A missing record returns
// syncerrors.ErrRecordNotFound.
func (r *UserRepository) FindUser(ctx context.Context, userID string) (*models.UserRecord, error) {
	query := `
		SELECT id, email, continuous_sync_enabled, is_indexed, indexing_progress,
			   completion_reason, indexing_error, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user models.UserRecord
	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.Email,
		&user.Onboarding.ContinuousSyncEnabled,
		&user.Onboarding.IsIndexed,
		&user.Onboarding.IndexingProgress,
		&user.Onboarding.CompletionReason,
		&user.Onboarding.IndexingError,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, syncerrors.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// UpdateOnboarding applies a partial update to a user's onboarding projection
func (r *UserRepository) UpdateOnboarding(ctx context.Context, userID string, update *models.OnboardingUpdate) error {
	sets := []string{"updated_at = now()"}
	args := []interface{}{userID}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf(clause, len(args)))
	}

	if update.ContinuousSyncEnabled != nil {
		add("continuous_sync_enabled = $%d", *update.ContinuousSyncEnabled)
	}
	if update.IsIndexed != nil {
		add("is_indexed = $%d", *update.IsIndexed)
	}
	if update.IndexingProgress != nil {
		add("indexing_progress = $%d", *update.IndexingProgress)
	}
	if update.CompletionReason != nil {
		add("completion_reason = $%d", *update.CompletionReason)
	}
	if update.IndexingError != nil {
		add("indexing_error = $%d", *update.IndexingError)
	}

	query := fmt.Sprintf(
		"UPDATE users SET %s WHERE id = $1",
		strings.Join(sets, ", "),
	)

	result, err := r.db.Pool().Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user onboarding: %w", err)
	}
	if result.RowsAffected() == 0 {
		return syncerrors.ErrRecordNotFound
	}

	return nil
}
