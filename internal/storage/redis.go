package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/contract-pulse/internal/config"
	"github.com/contract-pulse/internal/models"
	"github.com/redis/go-redis/v9"
)

// snapshotTTL bounds how long a stale snapshot can serve status polls after
// a run stops producing new cycles
const snapshotTTL = 24 * time.Hour

// ErrSnapshotNotFound is returned when no cached snapshot exists for an analysis
var ErrSnapshotNotFound = errors.New("snapshot not found")

// RedisCache wraps the Redis client and caches per-analysis metric snapshots
// so status polling never touches Postgres
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client, used by tests
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Client returns the underlying Redis client
func (r *RedisCache) Client() *redis.Client {
	return r.client
}

// Ping checks if Redis is reachable
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func snapshotKey(analysisID string) string {
	return fmt.Sprintf("snapshot:%s", analysisID)
}

// SetLatestSnapshot caches the most recent cycle snapshot for an analysis.
// Each write fully replaces the previous snapshot.
func (r *RedisCache) SetLatestSnapshot(ctx context.Context, analysisID string, snapshot *models.AccumulatedMetrics) error {
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := r.client.Set(ctx, snapshotKey(analysisID), encoded, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	return nil
}

// GetLatestSnapshot returns the cached snapshot for an analysis, or
// ErrSnapshotNotFound when none exists
func (r *RedisCache) GetLatestSnapshot(ctx context.Context, analysisID string) (*models.AccumulatedMetrics, error) {
	data, err := r.client.Get(ctx, snapshotKey(analysisID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snapshot models.AccumulatedMetrics
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snapshot, nil
}

// DeleteSnapshot removes the cached snapshot for an analysis
func (r *RedisCache) DeleteSnapshot(ctx context.Context, analysisID string) error {
	return r.client.Del(ctx, snapshotKey(analysisID)).Err()
}
