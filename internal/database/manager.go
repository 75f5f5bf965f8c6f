package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"unigame/internal/config"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Health status values
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus is the result of a connectivity probe
type HealthStatus struct {
	Status          string          `json:"status"`
	ResponseTime    time.Duration   `json:"response_time"`
	OpenConnections int             `json:"open_connections"`
	InUse           int             `json:"in_use"`
	Errors          []string        `json:"errors,omitempty"`
	Queries         MetricsSnapshot `json:"queries"`
}

// Manager owns the PostgreSQL connection pool
type Manager struct {
	db      *sql.DB
	logger  *zap.Logger
	config  *config.DatabaseConfig
	metrics *Metrics
	mu      sync.RWMutex
}

// NewManager opens a connection pool. It does not wait for the server;
// see Connect for the startup path.
func NewManager(cfg *config.DatabaseConfig, logger *zap.Logger) (*Manager, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	configureConnectionPool(db, cfg)

	m := &Manager{
		db:     db,
		logger: logger,
		config: cfg,
	}
	m.metrics = NewMetrics(m.SlowQueryThreshold())
	return m, nil
}

// configureConnectionPool applies pool limits from configuration
func configureConnectionPool(db *sql.DB, cfg *config.DatabaseConfig) {
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
}

// DB returns the underlying database connection
func (m *Manager) DB() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

// Metrics returns the statement counters for this pool
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// SlowQueryThreshold is the duration above which queries are logged as slow
func (m *Manager) SlowQueryThreshold() time.Duration {
	if m.config.SlowQueryThreshold > 0 {
		return m.config.SlowQueryThreshold
	}
	return 100 * time.Millisecond
}

// Migrate runs database migrations using a separate connection
func (m *Manager) Migrate(migrationsPath string) error {
	m.logger.Info("Starting database migrations", zap.String("path", migrationsPath))

	// The migrator closes the connection it is given, so it gets its own.
	migrationDB, err := sql.Open("postgres", m.config.URL)
	if err != nil {
		return fmt.Errorf("failed to create migration connection: %w", err)
	}
	defer migrationDB.Close()

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer migrator.Close()

	currentVersion, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		m.logger.Warn("Database is in dirty state", zap.Uint("version", currentVersion))
		return fmt.Errorf("database is in dirty state at version %d", currentVersion)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	newVersion, _, err := migrator.Version()
	if err != nil {
		return fmt.Errorf("failed to get new migration version: %w", err)
	}

	m.logger.Info("Migrations completed successfully",
		zap.Uint("from_version", currentVersion),
		zap.Uint("to_version", newVersion),
	)

	return nil
}

// QueryContext executes a query that returns rows
func (m *Manager) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := time.Now()
	rows, err := m.DB().QueryContext(ctx, query, args...)
	m.observe("query", query, start, err)
	return rows, err
}

// QueryRowContext executes a single-row query
func (m *Manager) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	start := time.Now()
	row := m.DB().QueryRowContext(ctx, query, args...)
	m.observe("query_row", query, start, row.Err())
	return row
}

// BeginTx starts a new transaction
func (m *Manager) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := m.DB().BeginTx(ctx, opts)
	if err != nil {
		m.logger.Error("Failed to begin transaction", zap.Error(err))
	}
	return tx, err
}

func (m *Manager) observe(kind, query string, start time.Time, err error) {
	duration := time.Since(start)
	m.metrics.RecordQuery(kind, duration, err)
	if duration > m.SlowQueryThreshold() {
		m.logger.Warn("Slow query detected",
			zap.String("type", kind),
			zap.Duration("duration", duration),
			zap.String("query", truncateQuery(query)),
		)
	}

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		m.logger.Error("Query execution failed",
			zap.String("type", kind),
			zap.Error(err),
			zap.String("query", truncateQuery(query)),
		)
	}
}

// Health pings the database and reports pool usage
func (m *Manager) Health(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{Status: StatusHealthy}

	if err := m.DB().PingContext(ctx); err != nil {
		status.Status = StatusUnhealthy
		status.Errors = append(status.Errors, err.Error())
	}

	stats := m.DB().Stats()
	status.ResponseTime = time.Since(start)
	status.OpenConnections = stats.OpenConnections
	status.InUse = stats.InUse
	status.Queries = m.metrics.Snapshot()

	return status
}

// Close closes the database connection
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		summary := m.metrics.Snapshot()
		m.logger.Info("Closing database connection",
			zap.Int64("queries", summary.QueryCount),
			zap.Int64("errors", summary.ErrorCount),
			zap.Int64("slow_queries", summary.SlowQueryCount),
			zap.Duration("avg_query_duration", summary.AvgQueryDuration),
		)
		return m.db.Close()
	}

	return nil
}

// truncateQuery truncates long queries for logging
func truncateQuery(query string) string {
	const maxLength = 200
	if len(query) <= maxLength {
		return query
	}
	return query[:maxLength] + "..."
}
