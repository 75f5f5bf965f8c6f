package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers understood by the server entrypoint
const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Cache        CacheConfig
	Logging      LoggingConfig
	Gamification GamificationConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Environment     string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
	MaxHeaderBytes  int
	AllowedOrigin   string
}

// DatabaseConfig holds the store configuration
type DatabaseConfig struct {
	Driver             string
	URL                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	SlowQueryThreshold time.Duration
	MigrationsPath     string
	RunMigrations      bool
	ConnectTimeout     time.Duration

	// Optimistic-concurrency retry budget for a single user mutation
	MaxRetryAttempts int
	RetryBackoff     time.Duration
}

// CacheConfig holds cache configuration for directory lookups
type CacheConfig struct {
	Provider      string // memory, redis
	TTL           time.Duration
	MaxKeys       int
	RedisURL      string
	RedisPassword string
	RedisDB       int
	PoolSize      int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// GamificationConfig holds engine tuning knobs
type GamificationConfig struct {
	CatalogFile             string
	LockShards              int
	DefaultLeaderboardLimit int
	MaxLeaderboardLimit     int
	EventBufferSize         int
}

// Load reads configuration from the environment (and .env files outside production)
func Load() (*Config, error) {
	env := getEnv("GO_ENV", "development")
	if env != "production" {
		envFile := fmt.Sprintf(".env.%s", env)
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
		} else {
			_ = godotenv.Load() // fallback to .env
		}
	}

	config := &Config{
		Server:       loadServerConfig(env),
		Database:     loadDatabaseConfig(env),
		Cache:        loadCacheConfig(),
		Logging:      loadLoggingConfig(env),
		Gamification: loadGamificationConfig(),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadServerConfig(env string) ServerConfig {
	config := ServerConfig{
		Port:            getEnv("PORT", "9000"),
		Environment:     env,
		Host:            getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		GracefulTimeout: getDurationEnv("GRACEFUL_TIMEOUT", 30*time.Second),
		MaxHeaderBytes:  getIntEnv("MAX_HEADER_BYTES", 1<<20),
		AllowedOrigin:   getEnv("CORS_ALLOWED_ORIGIN", "*"),
	}

	if env == "development" {
		config.GracefulTimeout = 10 * time.Second
	}

	return config
}

// 🗄️ DATABASE CONFIGURATION
func loadDatabaseConfig(env string) DatabaseConfig {
	var defaultMaxOpen, defaultMaxIdle int
	var defaultConnLifetime time.Duration

	switch env {
	case "production":
		defaultMaxOpen = 50
		defaultMaxIdle = 20
		defaultConnLifetime = 15 * time.Minute
	case "staging":
		defaultMaxOpen = 25
		defaultMaxIdle = 10
		defaultConnLifetime = 10 * time.Minute
	default: // development
		defaultMaxOpen = 10
		defaultMaxIdle = 5
		defaultConnLifetime = 5 * time.Minute
	}

	driver := StoreDriverMemory
	if os.Getenv("DATABASE_URL") != "" {
		driver = StoreDriverPostgres
	}

	return DatabaseConfig{
		Driver:             strings.ToLower(getEnv("STORE_DRIVER", driver)),
		URL:                os.Getenv("DATABASE_URL"),
		MaxOpenConns:       getIntEnv("DB_MAX_OPEN_CONNS", defaultMaxOpen),
		MaxIdleConns:       getIntEnv("DB_MAX_IDLE_CONNS", defaultMaxIdle),
		ConnMaxLifetime:    getDurationEnv("DB_CONN_MAX_LIFETIME", defaultConnLifetime),
		ConnMaxIdleTime:    getDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		SlowQueryThreshold: getDurationEnv("DB_SLOW_QUERY_THRESHOLD", 100*time.Millisecond),
		MigrationsPath:     getEnv("DB_MIGRATIONS_PATH", "./migrations"),
		RunMigrations:      getBoolEnv("DB_RUN_MIGRATIONS", true),
		ConnectTimeout:     getDurationEnv("DB_CONNECT_TIMEOUT", 30*time.Second),
		MaxRetryAttempts:   getIntEnv("DB_MAX_RETRY_ATTEMPTS", 3),
		RetryBackoff:       getDurationEnv("DB_RETRY_BACKOFF", 20*time.Millisecond),
	}
}

func loadCacheConfig() CacheConfig {
	provider := "memory"
	if os.Getenv("REDIS_URL") != "" {
		provider = "redis"
	}

	return CacheConfig{
		Provider:      strings.ToLower(getEnv("CACHE_PROVIDER", provider)),
		TTL:           getDurationEnv("CACHE_TTL", 5*time.Minute),
		MaxKeys:       getIntEnv("CACHE_MAX_KEYS", 10000),
		RedisURL:      os.Getenv("REDIS_URL"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		PoolSize:      getIntEnv("REDIS_POOL_SIZE", 10),
	}
}

func loadLoggingConfig(env string) LoggingConfig {
	return LoggingConfig{
		Level:  getEnv("LOG_LEVEL", getDefaultLogLevel(env)),
		Format: getEnv("LOG_FORMAT", getDefaultLogFormat(env)),
	}
}

// 🎮 GAMIFICATION CONFIGURATION
func loadGamificationConfig() GamificationConfig {
	return GamificationConfig{
		CatalogFile:             getEnv("CATALOG_FILE", "./config/catalog.yaml"),
		LockShards:              getIntEnv("GAMIFICATION_LOCK_SHARDS", 256),
		DefaultLeaderboardLimit: getIntEnv("LEADERBOARD_DEFAULT_LIMIT", 50),
		MaxLeaderboardLimit:     getIntEnv("LEADERBOARD_MAX_LIMIT", 100),
		EventBufferSize:         getIntEnv("EVENT_BUFFER_SIZE", 256),
	}
}

// ===============================
// VALIDATION
// ===============================

// Validate validates the entire configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := c.Gamification.Validate(); err != nil {
		return fmt.Errorf("gamification config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if s.ReadTimeout <= 0 {
		return fmt.Errorf("ReadTimeout must be positive")
	}

	if s.WriteTimeout <= 0 {
		return fmt.Errorf("WriteTimeout must be positive")
	}

	return nil
}

// Validate validates database configuration
func (d *DatabaseConfig) Validate() error {
	switch d.Driver {
	case StoreDriverMemory:
		return nil
	case StoreDriverPostgres:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", d.Driver)
	}

	if d.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres driver")
	}

	if d.MaxOpenConns <= 0 {
		return fmt.Errorf("MaxOpenConns must be positive")
	}

	if d.MaxIdleConns > d.MaxOpenConns {
		return fmt.Errorf("MaxIdleConns cannot be greater than MaxOpenConns")
	}

	if d.MaxRetryAttempts < 0 {
		return fmt.Errorf("MaxRetryAttempts cannot be negative")
	}

	return nil
}

// Validate validates cache configuration
func (c *CacheConfig) Validate() error {
	switch c.Provider {
	case "memory", "":
		return nil
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis cache provider")
		}
		return nil
	default:
		return fmt.Errorf("unsupported CACHE_PROVIDER %q", c.Provider)
	}
}

// Validate validates engine configuration
func (g *GamificationConfig) Validate() error {
	if g.LockShards <= 0 {
		return fmt.Errorf("GAMIFICATION_LOCK_SHARDS must be positive")
	}

	if g.DefaultLeaderboardLimit <= 0 || g.MaxLeaderboardLimit <= 0 {
		return fmt.Errorf("leaderboard limits must be positive")
	}

	if g.DefaultLeaderboardLimit > g.MaxLeaderboardLimit {
		return fmt.Errorf("LEADERBOARD_DEFAULT_LIMIT cannot exceed LEADERBOARD_MAX_LIMIT")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// ===============================
// HELPERS
// ===============================

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getDefaultLogLevel(env string) string {
	switch env {
	case "production":
		return "info"
	default:
		return "debug"
	}
}

func getDefaultLogFormat(env string) string {
	switch env {
	case "production":
		return "json"
	default:
		return "console"
	}
}
