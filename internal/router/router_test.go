package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"unigame/internal/config"
	"unigame/internal/response"
	"unigame/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Server:   config.ServerConfig{AllowedOrigin: "*"},
		Database: config.DatabaseConfig{Driver: config.StoreDriverMemory, MaxRetryAttempts: 3, RetryBackoff: time.Millisecond},
		Cache:    config.CacheConfig{Provider: "memory", TTL: time.Minute, MaxKeys: 100},
		Gamification: config.GamificationConfig{
			CatalogFile:             "../../config/catalog.yaml",
			LockShards:              16,
			DefaultLeaderboardLimit: 10,
			MaxLeaderboardLimit:     20,
			EventBufferSize:         32,
		},
	}

	sc, err := services.NewServiceCollection(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown(context.Background()) })

	return SetupRouter(sc, response.NewBuilder(nil, zap.NewNop()), zap.NewNop())
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestGamificationRoutesThroughMiddleware(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/gamification/user/42/addpoints?points=5", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var body struct {
		Success   bool   `json:"success"`
		RequestID string `json:"request_id"`
		Data      struct {
			Points int `json:"points"`
			Badges []struct {
				Code string `json:"code"`
			} `json:"badges"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "req-42", body.RequestID)
	assert.Equal(t, 5, body.Data.Points)
	require.Len(t, body.Data.Badges, 1)
	assert.Equal(t, "FIRST_WIN", body.Data.Badges[0].Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/gamification/user/999/addpoints?points=5", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRoutesAndMethods(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nothing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/gamification/rewards", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "Method not allowed")
}
