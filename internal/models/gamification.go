package models

import "time"

// UserStats is the per-user ledger of points and streak.
// Exactly one row exists per user once it has been referenced.
type UserStats struct {
	ID           int64      `json:"id" db:"id"`
	UserID       int64      `json:"user_id" db:"user_id"`
	Points       int        `json:"points" db:"points"`
	Streak       int        `json:"streak" db:"streak"`
	LastActivity time.Time  `json:"last_activity" db:"last_activity"`
	LastCheckIn  *time.Time `json:"last_check_in,omitempty" db:"last_check_in"`
	Version      int64      `json:"-" db:"version"`
}

// Badge represents an achievement badge that users can earn
// by reaching certain milestones.
type Badge struct {
	ID          int64  `json:"badge_id" db:"id" yaml:"-"`
	Code        string `json:"code" db:"code" yaml:"code"`
	Name        string `json:"name" db:"name" yaml:"name"`
	Description string `json:"description" db:"description" yaml:"description"`
	IconURL     string `json:"icon_url" db:"icon_url" yaml:"icon_url"`
}

// UserBadge links a stats record to a badge it has earned.
type UserBadge struct {
	ID          int64     `json:"id" db:"id"`
	UserStatsID int64     `json:"user_stats_id" db:"user_stats_id"`
	BadgeID     int64     `json:"badge_id" db:"badge_id"`
	AwardedAt   time.Time `json:"awarded_at" db:"awarded_at"`
}

// Reward is a catalog item that can be redeemed with points.
type Reward struct {
	ID          int64  `json:"reward_id" db:"id" yaml:"-"`
	Title       string `json:"title" db:"title" yaml:"title"`
	Description string `json:"description" db:"description" yaml:"description"`
	CostPoints  int    `json:"cost_points" db:"cost_points" yaml:"cost_points"`
}

// UserReward is one entry in the append-only redemption log.
type UserReward struct {
	ID          int64     `json:"id" db:"id"`
	UserStatsID int64     `json:"user_stats_id" db:"user_stats_id"`
	RewardID    int64     `json:"reward_id" db:"reward_id"`
	RedeemedAt  time.Time `json:"redeemed_at" db:"redeemed_at"`
}

// AwardedBadge is a UserBadge joined with its badge reference data.
type AwardedBadge struct {
	Badge     *Badge    `json:"badge"`
	AwardedAt time.Time `json:"awarded_at"`
}

// RedeemedReward is a UserReward joined with its reward reference data.
type RedeemedReward struct {
	Reward     *Reward   `json:"reward"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

// StatsSnapshot is a consistent read of a stats row together with
// everything hanging off it.
type StatsSnapshot struct {
	Stats   *UserStats
	Badges  []AwardedBadge
	Rewards []RedeemedReward
}

// LeaderboardRow is the raw ranking row produced by the store. DisplayName
// is empty when the store has no user record to join.
type LeaderboardRow struct {
	UserID      int64  `db:"user_id"`
	DisplayName string `db:"display_name"`
	Points      int    `db:"points"`
}

// ===============================
// RESPONSE VIEWS
// ===============================

// BadgeView is the public shape of an earned badge
type BadgeView struct {
	BadgeID     int64     `json:"badge_id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IconURL     string    `json:"icon_url"`
	AwardedAt   time.Time `json:"awarded_at"`
}

// RewardView is the public shape of a catalog reward or a redemption
type RewardView struct {
	RewardID    int64      `json:"reward_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	CostPoints  int        `json:"cost_points"`
	RedeemedAt  *time.Time `json:"redeemed_at,omitempty"`
}

// UserStatsView is returned by every stats-producing operation
type UserStatsView struct {
	UserID          int64        `json:"user_id"`
	Points          int          `json:"points"`
	Streak          int          `json:"streak"`
	LastActivity    time.Time    `json:"last_activity"`
	LastCheckIn     *time.Time   `json:"last_check_in,omitempty"`
	Badges          []BadgeView  `json:"badges"`
	RewardsRedeemed []RewardView `json:"rewards_redeemed"`
}

// GamePlayResult is the outcome of a mini-game round
type GamePlayResult struct {
	Success       bool           `json:"success"`
	PointsAwarded int            `json:"points_awarded"`
	Message       string         `json:"message"`
	NewStats      *UserStatsView `json:"new_stats"`
}

// RedeemResult is the outcome of a reward redemption
type RedeemResult struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	NewStats *UserStatsView `json:"new_stats"`
}

// CheckInResult is the outcome of a daily check-in
type CheckInResult struct {
	StreakChanged bool           `json:"streak_changed"`
	NewStats      *UserStatsView `json:"new_stats"`
}

// LeaderboardEntry represents a user's position on the leaderboard
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	Points      int    `json:"points"`
}

// ToView projects a snapshot onto the public stats view.
func (s *StatsSnapshot) ToView() *UserStatsView {
	view := &UserStatsView{
		UserID:          s.Stats.UserID,
		Points:          s.Stats.Points,
		Streak:          s.Stats.Streak,
		LastActivity:    s.Stats.LastActivity,
		LastCheckIn:     s.Stats.LastCheckIn,
		Badges:          make([]BadgeView, 0, len(s.Badges)),
		RewardsRedeemed: make([]RewardView, 0, len(s.Rewards)),
	}

	for _, b := range s.Badges {
		view.Badges = append(view.Badges, BadgeView{
			BadgeID:     b.Badge.ID,
			Code:        b.Badge.Code,
			Name:        b.Badge.Name,
			Description: b.Badge.Description,
			IconURL:     b.Badge.IconURL,
			AwardedAt:   b.AwardedAt,
		})
	}

	for _, r := range s.Rewards {
		redeemedAt := r.RedeemedAt
		view.RewardsRedeemed = append(view.RewardsRedeemed, RewardView{
			RewardID:   r.Reward.ID,
			Title:      r.Reward.Title,
			CostPoints: r.Reward.CostPoints,
			RedeemedAt: &redeemedAt,
		})
	}

	return view
}
