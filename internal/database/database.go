package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"unigame/internal/config"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Connect creates the database manager, waits for the server to accept
// connections and applies migrations.
func Connect(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	manager, err := NewManager(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := waitForHealthWithBackoff(waitCtx, manager, logger); err != nil {
		manager.Close()
		return nil, fmt.Errorf("database failed to become healthy: %w", err)
	}

	if cfg.RunMigrations {
		migrationsPath := determineMigrationsPath(cfg.MigrationsPath)
		if err := manager.Migrate(migrationsPath); err != nil {
			manager.Close()
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	logger.Info("Database initialized",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
		zap.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
	)

	return manager, nil
}

// waitForHealthWithBackoff pings until the database answers or ctx expires
func waitForHealthWithBackoff(ctx context.Context, manager *Manager, logger *zap.Logger) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 10 * time.Second
	policy.MaxElapsedTime = 0 // bounded by ctx

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		status := manager.Health(ctx)
		if status.Status == StatusHealthy {
			logger.Info("Database is healthy",
				zap.Int("attempt", attempt),
				zap.Duration("response_time", status.ResponseTime),
			)
			return nil
		}
		return fmt.Errorf("database unhealthy: %v", status.Errors)
	}, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		logger.Warn("Database not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	})
}

// determineMigrationsPath resolves the migrations directory with fallbacks
func determineMigrationsPath(configPath string) string {
	candidates := []string{
		configPath,
		"./migrations",
		"../migrations",
		"../../migrations",
	}

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(candidate); err == nil {
				return abs
			}
			return candidate
		}
	}

	return configPath
}
