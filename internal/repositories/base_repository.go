package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"unigame/internal/database"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// BaseRepository provides common database operations for SQL-backed repositories
type BaseRepository struct {
	db     *database.Manager
	logger *zap.Logger
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *database.Manager, logger *zap.Logger) *BaseRepository {
	return &BaseRepository{
		db:     db,
		logger: logger,
	}
}

// ===============================
// CORE DATABASE OPERATIONS
// ===============================

// QueryContext executes a query that returns rows
func (r *BaseRepository) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a query that returns a single row
func (r *BaseRepository) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return r.db.QueryRowContext(ctx, query, args...)
}

// ===============================
// TRANSACTION HELPERS
// ===============================

// WithTransaction executes a function within a database transaction
func (r *BaseRepository) WithTransaction(ctx context.Context, opts *sql.TxOptions, fn func(*sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error("Failed to rollback transaction",
				zap.Error(rbErr),
				zap.NamedError("cause", err),
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ===============================
// RETRY POLICY
// ===============================

// RetryPolicy bounds optimistic-concurrency retries
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
}

// DefaultRetryPolicy returns the retry budget used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 20 * time.Millisecond,
	}
}

// PostgreSQL error classes that are safe to retry as a whole transaction
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// IsRetryable reports whether err is a concurrency conflict that a fresh
// attempt of the same unit of work may resolve.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrDuplicateBadge) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqSerializationFailure, pqDeadlockDetected:
			return true
		}
	}

	return false
}

// withConflictRetry re-runs op while it fails with a retryable error, up to
// the policy's attempt budget. Non-retryable errors are returned untouched.
func withConflictRetry(ctx context.Context, policy RetryPolicy, logger *zap.Logger, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxElapsedTime = 0

	retries := policy.MaxAttempts
	if retries < 0 {
		retries = 0
	}

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := op()
		if err == nil || !IsRetryable(err) {
			if err != nil {
				return backoff.Permanent(err)
			}
			return nil
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx), func(err error, wait time.Duration) {
		logger.Debug("Retrying conflicting transaction",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	})

	if err != nil && IsRetryable(err) {
		return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
	}
	return err
}
