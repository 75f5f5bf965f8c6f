// ===============================
// FILE: internal/handlers/api/v1/gamification/gamification_controller.go
// ===============================

package gamification

import (
	"net/http"
	"strconv"
	"strings"

	"unigame/internal/response"
	"unigame/internal/services"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// GamificationController exposes the gamification service over HTTP
type GamificationController struct {
	service         services.GamificationService
	logger          *zap.Logger
	responseBuilder *response.Builder
}

// NewGamificationController creates a new gamification controller
func NewGamificationController(
	service services.GamificationService,
	logger *zap.Logger,
	responseBuilder *response.Builder,
) *GamificationController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GamificationController{
		service:         service,
		logger:          logger,
		responseBuilder: responseBuilder,
	}
}

// RegisterRoutes mounts the controller under r. r is expected to be the
// /api/v1/gamification subrouter.
func (c *GamificationController) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/user/{userId}", c.GetUserStats).Methods(http.MethodGet)
	r.HandleFunc("/user/{userId}/addpoints", c.AddPoints).Methods(http.MethodPost)
	r.HandleFunc("/user/{userId}/play", c.PlayMiniGame).Methods(http.MethodPost)
	r.HandleFunc("/user/{userId}/redeem/{rewardId}", c.RedeemReward).Methods(http.MethodPost)
	r.HandleFunc("/user/{userId}/checkin", c.CheckIn).Methods(http.MethodPost)
	r.HandleFunc("/leaderboard", c.GetLeaderboard).Methods(http.MethodGet)
	r.HandleFunc("/rewards", c.ListRewards).Methods(http.MethodGet)
}

// ===============================
// STATS
// ===============================

// GetUserStats handles GET /api/v1/gamification/user/{userId}
func (c *GamificationController) GetUserStats(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	stats, err := c.service.GetUserStats(r.Context(), userID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	c.responseBuilder.WriteSuccess(w, r, stats)
}

// ===============================
// MUTATIONS
// ===============================

// AddPoints handles POST /api/v1/gamification/user/{userId}/addpoints?points=N
func (c *GamificationController) AddPoints(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	raw := r.URL.Query().Get("points")
	if raw == "" {
		c.responseBuilder.WriteError(w, r, services.NewInvalidInputError("points", "is required"))
		return
	}
	points, err := strconv.Atoi(raw)
	if err != nil {
		c.responseBuilder.WriteError(w, r, services.NewInvalidInputError("points", "must be an integer"))
		return
	}

	stats, err := c.service.AddPoints(r.Context(), &services.AddPointsRequest{
		UserID: userID,
		Points: points,
	})
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	c.responseBuilder.WriteSuccess(w, r, stats)
}

// PlayMiniGame handles POST /api/v1/gamification/user/{userId}/play?gameType=spin
func (c *GamificationController) PlayMiniGame(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	result, err := c.service.PlayMiniGame(r.Context(), &services.PlayMiniGameRequest{
		UserID:   userID,
		GameType: strings.TrimSpace(r.URL.Query().Get("gameType")),
	})
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	c.logger.Debug("Mini-game played",
		zap.Int64("user_id", userID),
		zap.Int("points_awarded", result.PointsAwarded),
	)

	c.responseBuilder.WriteSuccess(w, r, result)
}

// RedeemReward handles POST /api/v1/gamification/user/{userId}/redeem/{rewardId}
func (c *GamificationController) RedeemReward(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	rewardID, err := pathID(r, "rewardId")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	result, err := c.service.RedeemReward(r.Context(), &services.RedeemRewardRequest{
		UserID:   userID,
		RewardID: rewardID,
	})
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	c.responseBuilder.WriteSuccess(w, r, result)
}

// CheckIn handles POST /api/v1/gamification/user/{userId}/checkin
func (c *GamificationController) CheckIn(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	result, err := c.service.CheckIn(r.Context(), userID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	c.responseBuilder.WriteSuccess(w, r, result)
}

// ===============================
// VIEWS
// ===============================

// GetLeaderboard handles GET /api/v1/gamification/leaderboard?limit=N
func (c *GamificationController) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	req := &services.LeaderboardRequest{}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			c.responseBuilder.WriteError(w, r, services.NewInvalidInputError("limit", "must be an integer"))
			return
		}
		req.Limit = limit
	}

	entries, err := c.service.GetLeaderboard(r.Context(), req)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	c.responseBuilder.WriteList(w, r, entries, len(entries))
}

// ListRewards handles GET /api/v1/gamification/rewards
func (c *GamificationController) ListRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := c.service.ListRewards(r.Context())
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	c.responseBuilder.WriteList(w, r, rewards, len(rewards))
}

// ===============================
// HELPER METHODS
// ===============================

func pathID(r *http.Request, name string) (int64, error) {
	raw, ok := mux.Vars(r)[name]
	if !ok || raw == "" {
		return 0, services.NewInvalidInputError(name, "is required")
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, services.NewInvalidInputError(name, "must be an integer")
	}
	return id, nil
}
