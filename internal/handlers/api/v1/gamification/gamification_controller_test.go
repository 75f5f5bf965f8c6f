package gamification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"unigame/internal/models"
	"unigame/internal/response"
	"unigame/internal/services"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubService lets each test override only the calls it cares about
type stubService struct {
	getUserStats   func(ctx context.Context, userID int64) (*models.UserStatsView, error)
	addPoints      func(ctx context.Context, req *services.AddPointsRequest) (*models.UserStatsView, error)
	playMiniGame   func(ctx context.Context, req *services.PlayMiniGameRequest) (*models.GamePlayResult, error)
	redeemReward   func(ctx context.Context, req *services.RedeemRewardRequest) (*models.RedeemResult, error)
	checkIn        func(ctx context.Context, userID int64) (*models.CheckInResult, error)
	getLeaderboard func(ctx context.Context, req *services.LeaderboardRequest) ([]models.LeaderboardEntry, error)
	listRewards    func(ctx context.Context) ([]models.RewardView, error)
}

var errNotStubbed = errors.New("not stubbed")

func (s *stubService) GetUserStats(ctx context.Context, userID int64) (*models.UserStatsView, error) {
	if s.getUserStats == nil {
		return nil, errNotStubbed
	}
	return s.getUserStats(ctx, userID)
}

func (s *stubService) AddPoints(ctx context.Context, req *services.AddPointsRequest) (*models.UserStatsView, error) {
	if s.addPoints == nil {
		return nil, errNotStubbed
	}
	return s.addPoints(ctx, req)
}

func (s *stubService) PlayMiniGame(ctx context.Context, req *services.PlayMiniGameRequest) (*models.GamePlayResult, error) {
	if s.playMiniGame == nil {
		return nil, errNotStubbed
	}
	return s.playMiniGame(ctx, req)
}

func (s *stubService) RedeemReward(ctx context.Context, req *services.RedeemRewardRequest) (*models.RedeemResult, error) {
	if s.redeemReward == nil {
		return nil, errNotStubbed
	}
	return s.redeemReward(ctx, req)
}

func (s *stubService) CheckIn(ctx context.Context, userID int64) (*models.CheckInResult, error) {
	if s.checkIn == nil {
		return nil, errNotStubbed
	}
	return s.checkIn(ctx, userID)
}

func (s *stubService) GetLeaderboard(ctx context.Context, req *services.LeaderboardRequest) ([]models.LeaderboardEntry, error) {
	if s.getLeaderboard == nil {
		return nil, errNotStubbed
	}
	return s.getLeaderboard(ctx, req)
}

func (s *stubService) ListRewards(ctx context.Context) ([]models.RewardView, error) {
	if s.listRewards == nil {
		return nil, errNotStubbed
	}
	return s.listRewards(ctx)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Type    string                 `json:"type"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
	Meta *struct {
		Count int `json:"count"`
	} `json:"meta"`
}

func newTestRouter(svc services.GamificationService) *mux.Router {
	r := mux.NewRouter()
	NewGamificationController(svc, zap.NewNop(), response.NewBuilder(nil, zap.NewNop())).RegisterRoutes(r)
	return r
}

func serve(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func statsFor(userID int64, points int) *models.UserStatsView {
	return &models.UserStatsView{
		UserID:          userID,
		Points:          points,
		LastActivity:    time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC),
		Badges:          []models.BadgeView{},
		RewardsRedeemed: []models.RewardView{},
	}
}

func TestGetUserStats(t *testing.T) {
	svc := &stubService{
		getUserStats: func(ctx context.Context, userID int64) (*models.UserStatsView, error) {
			if userID != 42 {
				return nil, services.NewUserNotFoundError(userID)
			}
			return statsFor(42, 0), nil
		},
	}
	r := newTestRouter(svc)

	rec, env := serve(t, r, http.MethodGet, "/user/42")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	var view models.UserStatsView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, int64(42), view.UserID)
	assert.Empty(t, view.Badges)

	rec, env = serve(t, r, http.MethodGet, "/user/7")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, services.ErrTypeUserNotFound, env.Error.Type)

	rec, env = serve(t, r, http.MethodGet, "/user/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, services.ErrTypeInvalidInput, env.Error.Type)
}

func TestAddPoints(t *testing.T) {
	var got *services.AddPointsRequest
	svc := &stubService{
		addPoints: func(ctx context.Context, req *services.AddPointsRequest) (*models.UserStatsView, error) {
			got = req
			return statsFor(req.UserID, req.Points), nil
		},
	}
	r := newTestRouter(svc)

	rec, env := serve(t, r, http.MethodPost, "/user/42/addpoints?points=120")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	require.NotNil(t, got)
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, 120, got.Points)

	tests := map[string]string{
		"missing points":     "/user/42/addpoints",
		"non-integer points": "/user/42/addpoints?points=ten",
		"non-integer user":   "/user/x/addpoints?points=1",
	}
	for name, target := range tests {
		t.Run(name, func(t *testing.T) {
			got = nil
			rec, env := serve(t, r, http.MethodPost, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, services.ErrTypeInvalidInput, env.Error.Type)
			assert.Nil(t, got)
		})
	}
}

func TestAddPoints_WrongMethod(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&stubService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/user/42/addpoints?points=1", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPlayMiniGame_PassesGameType(t *testing.T) {
	var got *services.PlayMiniGameRequest
	svc := &stubService{
		playMiniGame: func(ctx context.Context, req *services.PlayMiniGameRequest) (*models.GamePlayResult, error) {
			got = req
			return &models.GamePlayResult{Success: true, PointsAwarded: 20, Message: "You earned 20 points!", NewStats: statsFor(req.UserID, 20)}, nil
		},
	}
	r := newTestRouter(svc)

	rec, env := serve(t, r, http.MethodPost, "/user/1/play?gameType=math")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "math", got.GameType)

	var result models.GamePlayResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 20, result.PointsAwarded)

	_, _ = serve(t, r, http.MethodPost, "/user/1/play")
	assert.Equal(t, "", got.GameType)
}

func TestRedeemReward_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"insufficient balance", services.NewInsufficientBalanceError(10, 60), http.StatusUnprocessableEntity},
		{"unknown reward", services.NewRewardNotFoundError(99), http.StatusNotFound},
		{"unknown user", services.NewUserNotFoundError(5), http.StatusNotFound},
		{"store down", services.NewStoreUnavailableError("redeem_reward", errors.New("connection refused")), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{
				redeemReward: func(ctx context.Context, req *services.RedeemRewardRequest) (*models.RedeemResult, error) {
					return nil, tt.err
				},
			}
			rec, env := serve(t, newTestRouter(svc), http.MethodPost, "/user/1/redeem/1")
			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
		})
	}
}

func TestRedeemReward_Success(t *testing.T) {
	var got *services.RedeemRewardRequest
	svc := &stubService{
		redeemReward: func(ctx context.Context, req *services.RedeemRewardRequest) (*models.RedeemResult, error) {
			got = req
			return &models.RedeemResult{Success: true, Message: "Redeemed Extra Quiz Attempt", NewStats: statsFor(req.UserID, 40)}, nil
		},
	}

	rec, env := serve(t, newTestRouter(svc), http.MethodPost, "/user/3/redeem/1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, int64(3), got.UserID)
	assert.Equal(t, int64(1), got.RewardID)

	rec, _ = serve(t, newTestRouter(svc), http.MethodPost, "/user/3/redeem/first")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckIn(t *testing.T) {
	svc := &stubService{
		checkIn: func(ctx context.Context, userID int64) (*models.CheckInResult, error) {
			stats := statsFor(userID, 0)
			stats.Streak = 1
			return &models.CheckInResult{StreakChanged: true, NewStats: stats}, nil
		},
	}

	rec, env := serve(t, newTestRouter(svc), http.MethodPost, "/user/2/checkin")
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.CheckInResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result.StreakChanged)
	assert.Equal(t, 1, result.NewStats.Streak)
}

func TestGetLeaderboard(t *testing.T) {
	var got *services.LeaderboardRequest
	svc := &stubService{
		getLeaderboard: func(ctx context.Context, req *services.LeaderboardRequest) ([]models.LeaderboardEntry, error) {
			got = req
			return []models.LeaderboardEntry{
				{Rank: 1, UserID: 1, DisplayName: "Amina", Points: 300},
				{Rank: 2, UserID: 3, DisplayName: "Chloe", Points: 300},
			}, nil
		},
	}
	r := newTestRouter(svc)

	rec, env := serve(t, r, http.MethodGet, "/leaderboard?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, got.Limit)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 2, env.Meta.Count)

	var entries []models.LeaderboardEntry
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	assert.Equal(t, "Amina", entries[0].DisplayName)

	_, _ = serve(t, r, http.MethodGet, "/leaderboard")
	assert.Equal(t, 0, got.Limit)

	rec, _ = serve(t, r, http.MethodGet, "/leaderboard?limit=all")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRewards(t *testing.T) {
	svc := &stubService{
		listRewards: func(ctx context.Context) ([]models.RewardView, error) {
			return []models.RewardView{{RewardID: 1, Title: "Extra Quiz Attempt", CostPoints: 60}}, nil
		},
	}

	rec, env := serve(t, newTestRouter(svc), http.MethodGet, "/rewards")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.Meta.Count)
}

func TestUnexpectedErrorIsInternal(t *testing.T) {
	rec, env := serve(t, newTestRouter(&stubService{}), http.MethodGet, "/rewards")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Type)
}
