package services

import (
	"context"
	"testing"
	"time"

	"unigame/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{
			Driver:           config.StoreDriverMemory,
			MaxRetryAttempts: 3,
			RetryBackoff:     time.Millisecond,
		},
		Cache: config.CacheConfig{
			Provider: "memory",
			TTL:      time.Minute,
			MaxKeys:  100,
		},
		Gamification: config.GamificationConfig{
			CatalogFile:             "../../config/catalog.yaml",
			LockShards:              16,
			DefaultLeaderboardLimit: 10,
			MaxLeaderboardLimit:     20,
			EventBufferSize:         32,
		},
	}
}

func TestServiceCollection_MemoryDriver(t *testing.T) {
	ctx := context.Background()
	sc, err := NewServiceCollection(ctx, memoryConfig(), zap.NewNop())
	require.NoError(t, err)

	health := sc.HealthCheck(ctx)
	assert.Equal(t, "healthy", health.Status)
	assert.Len(t, health.Dependencies, 3)
	assert.Empty(t, health.Issues)

	stats, err := sc.Gamification.AddPoints(ctx, &AddPointsRequest{UserID: 42, Points: 120})
	require.NoError(t, err)
	assert.Equal(t, 120, stats.Points)
	assert.Len(t, stats.Badges, 2)

	board, err := sc.Gamification.GetLeaderboard(ctx, &LeaderboardRequest{})
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "Demo Student", board[0].DisplayName)

	rewards, err := sc.Gamification.ListRewards(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, rewards)

	require.NoError(t, sc.Shutdown(ctx))
	assert.Error(t, sc.EventBus.Health())
}

func TestServiceCollection_RejectsBadSetup(t *testing.T) {
	ctx := context.Background()

	_, err := NewServiceCollection(ctx, nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewServiceCollection(ctx, memoryConfig(), nil)
	assert.Error(t, err)

	cfg := memoryConfig()
	cfg.Gamification.CatalogFile = "does-not-exist.yaml"
	_, err = NewServiceCollection(ctx, cfg, zap.NewNop())
	assert.Error(t, err)

	cfg = memoryConfig()
	cfg.Database.Driver = "sqlite"
	_, err = NewServiceCollection(ctx, cfg, zap.NewNop())
	assert.Error(t, err)
}
