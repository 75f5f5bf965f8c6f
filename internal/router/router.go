package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"unigame/internal/handlers/api/v1/gamification"
	"unigame/internal/middleware"
	"unigame/internal/response"
	"unigame/internal/services"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const healthCheckTimeout = 5 * time.Second

// SetupRouter configures all HTTP routes and returns the main handler
func SetupRouter(serviceCollection *services.ServiceCollection, responseBuilder *response.Builder, logger *zap.Logger) http.Handler {
	r := mux.NewRouter()
	r.StrictSlash(true)

	// Health check endpoint
	r.HandleFunc("/health", healthHandler(serviceCollection)).Methods(http.MethodGet)

	// API v1
	api := r.PathPrefix("/api/v1/gamification").Subrouter()

	controller := gamification.NewGamificationController(
		serviceCollection.Gamification,
		logger.Named("gamification_api"),
		responseBuilder,
	)
	controller.RegisterRoutes(api)

	stream := gamification.NewEventStream(
		serviceCollection.EventBus,
		serviceCollection.Config.Server.AllowedOrigin,
		logger.Named("event_stream"),
	)
	api.Handle("/events", stream).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeStatus(w, http.StatusNotFound, "Resource not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeStatus(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return setupMiddlewareChain(r, serviceCollection.Config.Server.AllowedOrigin, logger)
}

// setupMiddlewareChain wraps the router so the request id is assigned first
// and CORS headers are set before any route runs.
func setupMiddlewareChain(handler http.Handler, allowedOrigin string, logger *zap.Logger) http.Handler {
	handler = middleware.CORS(allowedOrigin)(handler)
	handler = middleware.RecoverPanic(logger)(handler)
	handler = middleware.EnhancedLogging(logger)(handler)
	handler = middleware.RequestID(logger)(handler)
	return handler
}

func healthHandler(sc *services.ServiceCollection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		health := sc.HealthCheck(ctx)

		status := http.StatusOK
		if health.Status == "unhealthy" {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(health)
	}
}

func writeStatus(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error": map[string]string{
			"type":    http.StatusText(status),
			"message": message,
		},
	})
}
