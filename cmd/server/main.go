package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"unigame/internal/config"
	"unigame/internal/response"
	"unigame/internal/router"
	"unigame/internal/services"
	"unigame/internal/utils/appinfo"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting gamification engine",
		zap.String("environment", cfg.Server.Environment),
		zap.String("version", appinfo.Version()),
		zap.String("store_driver", cfg.Database.Driver),
	)

	// Initialize services
	initCtx, initCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout+10*time.Second)
	serviceCollection, err := services.NewServiceCollection(initCtx, cfg, logger)
	initCancel()
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}

	// Response builder for API controllers
	responseConfig := response.DefaultConfig()
	responseConfig.PrettyJSON = cfg.IsDevelopment()
	responseConfig.MaskInternalErrors = cfg.IsProduction()
	responseBuilder := response.NewBuilder(responseConfig, logger.Named("response"))

	handler := router.SetupRouter(serviceCollection, responseBuilder, logger)

	// HTTP server
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown setup
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server",
			zap.String("address", server.Addr),
			zap.String("health_check", "/health"),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Shutting down application...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	} else {
		logger.Info("Server shutdown completed")
	}

	if err := serviceCollection.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to release service resources", zap.Error(err))
	}

	logger.Info("Application shutdown completed")
}

// initLogger builds the structured logger from the logging configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zcfg zap.Config

	switch strings.ToLower(cfg.Format) {
	case "json":
		zcfg = zap.NewProductionConfig()
	default:
		zcfg = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
