// file: internal/repositories/interfaces.go
package repositories

import (
	"context"
	"errors"
	"time"

	"unigame/internal/models"
)

// ===============================
// STORE ERRORS
// ===============================

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("record not found")
	// ErrInsufficientBalance is returned when a delta would drive points below zero
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrNegativeStreak is returned when a delta would drive the streak below zero
	ErrNegativeStreak = errors.New("streak cannot be negative")
	// ErrDuplicateBadge is returned when a (stats, badge) pair already exists
	ErrDuplicateBadge = errors.New("badge already awarded")
	// ErrConflict is returned when an optimistic-concurrency check fails
	ErrConflict = errors.New("concurrent modification detected")
)

// ===============================
// CORE REPOSITORY INTERFACES
// ===============================

// StatsTx is the unit of work for one user mutation. Every write made through
// it becomes visible together when the surrounding WithinUserTx returns nil,
// and none of them do otherwise.
type StatsTx interface {
	// GetOrCreateStats returns the user's stats row, creating a zeroed one on
	// first reference. The row is locked for the rest of the transaction.
	GetOrCreateStats(ctx context.Context, userID int64, now time.Time) (*models.UserStats, error)

	// ApplyDelta applies signed deltas and stamps last activity
	ApplyDelta(ctx context.Context, stats *models.UserStats, pointsDelta, streakDelta int, now time.Time) (*models.UserStats, error)

	// MarkCheckIn records the time of the user's latest daily check-in
	MarkCheckIn(ctx context.Context, stats *models.UserStats, at time.Time) error

	// Badge awards
	AwardedBadgeIDs(ctx context.Context, userStatsID int64) (map[int64]struct{}, error)
	InsertUserBadge(ctx context.Context, award *models.UserBadge) error

	// Redemption log
	GetReward(ctx context.Context, rewardID int64) (*models.Reward, error)
	InsertUserReward(ctx context.Context, redemption *models.UserReward) error
}

// GamificationRepository defines the contract for gamification persistence
type GamificationRepository interface {
	// WithinUserTx runs fn as one atomic unit scoped to userID. Optimistic
	// conflicts are retried a bounded number of times.
	WithinUserTx(ctx context.Context, userID int64, fn func(tx StatsTx) error) error

	// Consistent reads
	GetSnapshot(ctx context.Context, userID int64) (*models.StatsSnapshot, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardRow, error)

	// Reference data
	ListBadges(ctx context.Context) ([]*models.Badge, error)
	ListRewards(ctx context.Context) ([]*models.Reward, error)
	GetReward(ctx context.Context, rewardID int64) (*models.Reward, error)
	SeedCatalog(ctx context.Context, badges []*models.Badge, rewards []*models.Reward) error

	// Health
	Ping(ctx context.Context) error
}

// UserDirectory is the external collaborator that owns user identities
type UserDirectory interface {
	Exists(ctx context.Context, userID int64) (bool, error)
	DisplayName(ctx context.Context, userID int64) (string, error)
}
