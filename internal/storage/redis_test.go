package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/contract-pulse/internal/models"
	"github.com/contract-pulse/internal/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	cache := NewRedisCacheFromClient(client)
	t.Cleanup(func() { _ = cache.Close() })

	return cache, mr
}

func testSnapshot(cycle int) *models.AccumulatedMetrics {
	return &models.AccumulatedMetrics{
		SyncCycle:           cycle,
		BlockRangeProcessed: types.BlockWindow{FromBlock: 100, ToBlock: 200},
		NewTransactions:     5,
		NewEvents:           2,
		DataIntegrityScore:  100,
		TotalTransactions:   5,
		ComputedAt:          time.Now().UTC().Truncate(time.Second),
	}
}

func TestRedisCache_SnapshotRoundTrip(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetLatestSnapshot(ctx, "analysis-1", testSnapshot(3)))

	got, err := cache.GetLatestSnapshot(ctx, "analysis-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.SyncCycle)
	assert.Equal(t, uint64(200), got.BlockRangeProcessed.ToBlock)
	assert.Equal(t, 5, got.NewTransactions)
}

func TestRedisCache_SnapshotReplacement(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetLatestSnapshot(ctx, "analysis-1", testSnapshot(1)))
	require.NoError(t, cache.SetLatestSnapshot(ctx, "analysis-1", testSnapshot(2)))

	got, err := cache.GetLatestSnapshot(ctx, "analysis-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.SyncCycle)
}

func TestRedisCache_SnapshotNotFound(t *testing.T) {
	cache, _ := setupTestCache(t)

	_, err := cache.GetLatestSnapshot(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestRedisCache_SnapshotExpiry(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetLatestSnapshot(ctx, "analysis-1", testSnapshot(1)))
	mr.FastForward(25 * time.Hour)

	_, err := cache.GetLatestSnapshot(ctx, "analysis-1")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestRedisCache_DeleteSnapshot(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetLatestSnapshot(ctx, "analysis-1", testSnapshot(1)))
	require.NoError(t, cache.DeleteSnapshot(ctx, "analysis-1"))

	_, err := cache.GetLatestSnapshot(ctx, "analysis-1")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}
