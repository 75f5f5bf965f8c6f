// file: internal/services/types.go
package services

// ===============================
// GAMIFICATION REQUEST TYPES
// ===============================

// AddPointsRequest grants points directly
type AddPointsRequest struct {
	UserID int64 `json:"user_id"`
	Points int   `json:"points" validate:"min=0,max=2147483647"`
}

// PlayMiniGameRequest plays one round of a mini-game. An empty game type means spin.
type PlayMiniGameRequest struct {
	UserID   int64  `json:"user_id"`
	GameType string `json:"game_type" validate:"omitempty,alphanum,max=32"`
}

// RedeemRewardRequest spends points on a catalog reward
type RedeemRewardRequest struct {
	UserID   int64 `json:"user_id"`
	RewardID int64 `json:"reward_id" validate:"gt=0"`
}

// LeaderboardRequest asks for the top of the leaderboard. A non-positive
// limit selects the default; larger than the maximum is capped.
type LeaderboardRequest struct {
	Limit int `json:"limit"`
}
