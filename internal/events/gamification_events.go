package events

import "time"

// Gamification event types
const (
	EventPointsAdded    = "points.added"
	EventMiniGamePlayed = "minigame.played"
	EventRewardRedeemed = "reward.redeemed"
	EventBadgeAwarded   = "badge.awarded"
	EventStreakUpdated  = "streak.updated"
)

// PointsAddedEvent is emitted after a direct point grant commits
type PointsAddedEvent struct {
	BaseEvent
	Points  int `json:"points"`
	Balance int `json:"balance"`
}

// NewPointsAddedEvent creates a new points added event
func NewPointsAddedEvent(userID int64, points, balance int, at time.Time) *PointsAddedEvent {
	return &PointsAddedEvent{
		BaseEvent: NewBaseEvent(EventPointsAdded, userID, at),
		Points:    points,
		Balance:   balance,
	}
}

// MiniGamePlayedEvent is emitted after a mini-game round commits
type MiniGamePlayedEvent struct {
	BaseEvent
	GameType      string `json:"game_type"`
	PointsAwarded int    `json:"points_awarded"`
	Balance       int    `json:"balance"`
}

// NewMiniGamePlayedEvent creates a new mini-game played event
func NewMiniGamePlayedEvent(userID int64, gameType string, awarded, balance int, at time.Time) *MiniGamePlayedEvent {
	return &MiniGamePlayedEvent{
		BaseEvent:     NewBaseEvent(EventMiniGamePlayed, userID, at),
		GameType:      gameType,
		PointsAwarded: awarded,
		Balance:       balance,
	}
}

// RewardRedeemedEvent is emitted after a redemption commits
type RewardRedeemedEvent struct {
	BaseEvent
	RewardID   int64  `json:"reward_id"`
	Title      string `json:"title"`
	CostPoints int    `json:"cost_points"`
	Balance    int    `json:"balance"`
}

// NewRewardRedeemedEvent creates a new reward redeemed event
func NewRewardRedeemedEvent(userID, rewardID int64, title string, cost, balance int, at time.Time) *RewardRedeemedEvent {
	return &RewardRedeemedEvent{
		BaseEvent:  NewBaseEvent(EventRewardRedeemed, userID, at),
		RewardID:   rewardID,
		Title:      title,
		CostPoints: cost,
		Balance:    balance,
	}
}

// BadgeAwardedEvent is emitted once per newly unlocked badge
type BadgeAwardedEvent struct {
	BaseEvent
	BadgeID int64  `json:"badge_id"`
	Code    string `json:"code"`
	Name    string `json:"name"`
}

// NewBadgeAwardedEvent creates a new badge awarded event
func NewBadgeAwardedEvent(userID, badgeID int64, code, name string, at time.Time) *BadgeAwardedEvent {
	return &BadgeAwardedEvent{
		BaseEvent: NewBaseEvent(EventBadgeAwarded, userID, at),
		BadgeID:   badgeID,
		Code:      code,
		Name:      name,
	}
}

// StreakUpdatedEvent is emitted when a check-in changes the streak
type StreakUpdatedEvent struct {
	BaseEvent
	Previous int `json:"previous"`
	Streak   int `json:"streak"`
}

// NewStreakUpdatedEvent creates a new streak updated event
func NewStreakUpdatedEvent(userID int64, previous, streak int, at time.Time) *StreakUpdatedEvent {
	return &StreakUpdatedEvent{
		BaseEvent: NewBaseEvent(EventStreakUpdated, userID, at),
		Previous:  previous,
		Streak:    streak,
	}
}
