// file: internal/services/interfaces.go
package services

import (
	"context"

	"unigame/internal/models"
)

// ===============================
// CORE SERVICE INTERFACES
// ===============================

// GamificationService defines the gamification business logic. Every method
// is safe for concurrent use; mutations are serialized per user.
type GamificationService interface {
	// Stats
	GetUserStats(ctx context.Context, userID int64) (*models.UserStatsView, error)

	// Mutations
	AddPoints(ctx context.Context, req *AddPointsRequest) (*models.UserStatsView, error)
	PlayMiniGame(ctx context.Context, req *PlayMiniGameRequest) (*models.GamePlayResult, error)
	RedeemReward(ctx context.Context, req *RedeemRewardRequest) (*models.RedeemResult, error)
	CheckIn(ctx context.Context, userID int64) (*models.CheckInResult, error)

	// Views
	GetLeaderboard(ctx context.Context, req *LeaderboardRequest) ([]models.LeaderboardEntry, error)
	ListRewards(ctx context.Context) ([]models.RewardView, error)
}

// HealthChecker is implemented by components that can report their health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
