package repositories

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"conflict", ErrConflict, true},
		{"wrapped conflict", fmt.Errorf("update stats: %w", ErrConflict), true},
		{"duplicate badge", ErrDuplicateBadge, true},
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"deadlock", fmt.Errorf("tx: %w", &pq.Error{Code: "40P01"}), true},
		{"unique violation", &pq.Error{Code: pqUniqueViolation}, false},
		{"insufficient balance", ErrInsufficientBalance, false},
		{"plain error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestWithConflictRetry(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond}
	ctx := context.Background()

	t.Run("succeeds after conflicts", func(t *testing.T) {
		calls := 0
		err := withConflictRetry(ctx, policy, zap.NewNop(), func() error {
			calls++
			if calls < 3 {
				return ErrConflict
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("non-retryable error stops immediately", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := withConflictRetry(ctx, policy, zap.NewNop(), func() error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after the budget", func(t *testing.T) {
		calls := 0
		err := withConflictRetry(ctx, policy, zap.NewNop(), func() error {
			calls++
			return ErrConflict
		})
		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, policy.MaxAttempts+1, calls)
	})

	t.Run("zero budget runs once", func(t *testing.T) {
		calls := 0
		err := withConflictRetry(ctx, RetryPolicy{}, zap.NewNop(), func() error {
			calls++
			return ErrConflict
		})
		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, 1, calls)
	})
}
