// file: internal/services/service_collection.go
package services

import (
	"context"
	"fmt"
	"time"

	"unigame/internal/cache"
	"unigame/internal/config"
	"unigame/internal/database"
	"unigame/internal/events"
	"unigame/internal/repositories"

	"go.uber.org/zap"
)

// ServiceCollection wires the gamification service to its infrastructure
type ServiceCollection struct {
	Gamification GamificationService

	Repository repositories.GamificationRepository
	Directory  repositories.UserDirectory
	Cache      cache.Cache
	EventBus   events.EventBus
	DBManager  *database.Manager
	Logger     *zap.Logger
	Config     *config.Config

	startTime time.Time
}

// ServiceHealth represents the health status of the service collection
type ServiceHealth struct {
	Status       string                   `json:"status"`
	Timestamp    time.Time                `json:"timestamp"`
	Dependencies map[string]ServiceStatus `json:"dependencies"`
	Uptime       time.Duration            `json:"uptime"`
	Issues       []string                 `json:"issues,omitempty"`
}

// ServiceStatus represents the status of an individual dependency
type ServiceStatus struct {
	Status       string        `json:"status"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
}

// NewServiceCollection builds the store selected by configuration, seeds the
// catalog and creates the gamification service.
func NewServiceCollection(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ServiceCollection, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	sc := &ServiceCollection{
		Config:    cfg,
		Logger:    logger,
		startTime: time.Now(),
	}

	catalog, err := LoadCatalog(cfg.Gamification.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	if err := sc.initializeInfrastructure(ctx, catalog); err != nil {
		sc.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize infrastructure: %w", err)
	}

	if err := sc.Repository.SeedCatalog(ctx, catalog.Badges, catalog.Rewards); err != nil {
		sc.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to seed catalog: %w", err)
	}

	sc.Gamification, err = NewGamificationService(GamificationDeps{
		Repository: sc.Repository,
		Directory:  sc.Directory,
		EventBus:   sc.EventBus,
		Logger:     logger.Named("gamification"),
		Config:     &cfg.Gamification,
	})
	if err != nil {
		sc.Shutdown(context.Background())
		return nil, err
	}

	logger.Info("Service collection initialized",
		zap.String("store_driver", cfg.Database.Driver),
		zap.String("cache_provider", cfg.Cache.Provider),
		zap.Int("badges", len(catalog.Badges)),
		zap.Int("rewards", len(catalog.Rewards)),
	)

	return sc, nil
}

// initializeInfrastructure sets up the store, directory, cache and event bus
func (sc *ServiceCollection) initializeInfrastructure(ctx context.Context, catalog *CatalogFile) error {
	cfg := sc.Config
	retry := repositories.RetryPolicy{
		MaxAttempts:     cfg.Database.MaxRetryAttempts,
		InitialInterval: cfg.Database.RetryBackoff,
	}

	c, err := cache.NewCache(&cfg.Cache, sc.Logger.Named("cache"))
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	sc.Cache = c

	switch cfg.Database.Driver {
	case config.StoreDriverPostgres:
		manager, err := database.Connect(ctx, &cfg.Database, sc.Logger.Named("database"))
		if err != nil {
			return err
		}
		sc.DBManager = manager
		sc.Repository = repositories.NewPostgresStore(manager, sc.Logger.Named("store"), retry)
		sc.Directory = repositories.NewCachedDirectory(
			repositories.NewSQLDirectory(manager, sc.Logger.Named("directory")),
			sc.Cache,
			cfg.Cache.TTL,
			sc.Logger.Named("directory"),
		)
	case config.StoreDriverMemory:
		sc.Repository = repositories.NewMemoryStore(sc.Logger.Named("store"), retry)
		sc.Directory = repositories.NewStaticDirectory(catalog.UserNames())
	default:
		return fmt.Errorf("unsupported store driver: %s", cfg.Database.Driver)
	}

	busConfig := events.DefaultEventBusConfig()
	busConfig.BufferSize = cfg.Gamification.EventBufferSize
	sc.EventBus = events.NewInMemoryEventBus(busConfig, sc.Logger.Named("events"))
	return sc.EventBus.Start(ctx)
}

// HealthCheck probes the store, cache and event bus
func (sc *ServiceCollection) HealthCheck(ctx context.Context) *ServiceHealth {
	health := &ServiceHealth{
		Status:       "healthy",
		Timestamp:    time.Now(),
		Dependencies: make(map[string]ServiceStatus),
		Uptime:       time.Since(sc.startTime),
	}

	checks := map[string]func(context.Context) error{
		"store": sc.Repository.Ping,
		"cache": sc.Cache.Health,
		"events": func(context.Context) error {
			return sc.EventBus.Health()
		},
	}

	for name, check := range checks {
		start := time.Now()
		status := ServiceStatus{Status: "healthy"}
		if err := check(ctx); err != nil {
			status.Status = "unhealthy"
			status.Error = err.Error()
			health.Issues = append(health.Issues, fmt.Sprintf("%s: %s", name, err))
		}
		status.ResponseTime = time.Since(start)
		health.Dependencies[name] = status
	}

	switch {
	case health.Dependencies["store"].Status != "healthy":
		health.Status = "unhealthy"
	case len(health.Issues) > 0:
		health.Status = "degraded"
	}

	return health
}

// Shutdown stops the event bus and releases connections
func (sc *ServiceCollection) Shutdown(ctx context.Context) error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if sc.EventBus != nil {
		record(sc.EventBus.Stop(ctx))
	}
	if sc.Cache != nil {
		record(sc.Cache.Close())
	}
	if sc.DBManager != nil {
		record(sc.DBManager.Close())
	}

	sc.Logger.Info("Service collection shut down")
	return firstErr
}
