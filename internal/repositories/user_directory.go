package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"unigame/internal/cache"
	"unigame/internal/database"

	"go.uber.org/zap"
)

// ===============================
// STATIC DIRECTORY
// ===============================

// StaticDirectory is an in-memory user directory
type StaticDirectory struct {
	mu    sync.RWMutex
	names map[int64]string
}

// NewStaticDirectory creates a directory holding the given id → display name pairs
func NewStaticDirectory(users map[int64]string) *StaticDirectory {
	names := make(map[int64]string, len(users))
	for id, name := range users {
		names[id] = name
	}
	return &StaticDirectory{names: names}
}

// Add registers or renames a user
func (d *StaticDirectory) Add(userID int64, displayName string) {
	d.mu.Lock()
	d.names[userID] = displayName
	d.mu.Unlock()
}

func (d *StaticDirectory) Exists(ctx context.Context, userID int64) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.names[userID]
	return ok, nil
}

func (d *StaticDirectory) DisplayName(ctx context.Context, userID int64) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.names[userID]
	if !ok {
		return "", ErrNotFound
	}
	return name, nil
}

// ===============================
// SQL DIRECTORY
// ===============================

// SQLDirectory reads users from the PostgreSQL users table
type SQLDirectory struct {
	*BaseRepository
}

// NewSQLDirectory creates a directory backed by the users table
func NewSQLDirectory(db *database.Manager, logger *zap.Logger) *SQLDirectory {
	return &SQLDirectory{BaseRepository: NewBaseRepository(db, logger)}
}

func (d *SQLDirectory) Exists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := d.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

func (d *SQLDirectory) DisplayName(ctx context.Context, userID int64) (string, error) {
	var name string
	err := d.QueryRowContext(ctx,
		`SELECT COALESCE(NULLIF(display_name, ''), username) FROM users WHERE id = $1`, userID).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read display name: %w", err)
	}
	return name, nil
}

// ===============================
// CACHED DIRECTORY
// ===============================

// CachedDirectory memoizes positive lookups of another directory. Unknown
// users are never cached so newly registered accounts are seen immediately,
// and a miss from the wrapped directory evicts whatever is still cached for
// that user.
type CachedDirectory struct {
	next   UserDirectory
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedDirectory wraps next with a cache
func NewCachedDirectory(next UserDirectory, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachedDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedDirectory{next: next, cache: c, ttl: ttl, logger: logger}
}

func existsKey(userID int64) string { return "user:exists:" + strconv.FormatInt(userID, 10) }
func nameKey(userID int64) string   { return "user:name:" + strconv.FormatInt(userID, 10) }

func (d *CachedDirectory) Exists(ctx context.Context, userID int64) (bool, error) {
	if _, ok := d.cache.Get(ctx, existsKey(userID)); ok {
		return true, nil
	}

	exists, err := d.next.Exists(ctx, userID)
	if err != nil {
		return false, err
	}
	if !exists {
		d.forget(ctx, userID)
		return false, nil
	}

	if err := d.cache.Set(ctx, existsKey(userID), "1", d.ttl); err != nil {
		d.logger.Warn("Failed to cache user existence", zap.Int64("user_id", userID), zap.Error(err))
	}
	return true, nil
}

func (d *CachedDirectory) DisplayName(ctx context.Context, userID int64) (string, error) {
	if name, ok := d.cache.Get(ctx, nameKey(userID)); ok {
		return name, nil
	}

	name, err := d.next.DisplayName(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			d.forget(ctx, userID)
		}
		return "", err
	}

	if err := d.cache.Set(ctx, nameKey(userID), name, d.ttl); err != nil {
		d.logger.Warn("Failed to cache display name", zap.Int64("user_id", userID), zap.Error(err))
	}
	return name, nil
}

func (d *CachedDirectory) forget(ctx context.Context, userID int64) {
	for _, key := range []string{existsKey(userID), nameKey(userID)} {
		if err := d.cache.Delete(ctx, key); err != nil {
			d.logger.Warn("Failed to evict directory entry", zap.String("key", key), zap.Error(err))
		}
	}
}
