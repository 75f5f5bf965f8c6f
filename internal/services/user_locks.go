package services

import "sync"

const defaultLockShards = 256

// userLocks serializes work per user over a fixed set of mutex shards.
// Two users may share a shard; a user never maps to two.
type userLocks struct {
	shards []sync.Mutex
}

func newUserLocks(shards int) *userLocks {
	if shards <= 0 {
		shards = defaultLockShards
	}
	return &userLocks{shards: make([]sync.Mutex, shards)}
}

func (l *userLocks) shard(userID int64) *sync.Mutex {
	idx := uint64(userID) % uint64(len(l.shards))
	return &l.shards[idx]
}

// withLock runs fn while holding userID's shard
func (l *userLocks) withLock(userID int64, fn func() error) error {
	m := l.shard(userID)
	m.Lock()
	defer m.Unlock()
	return fn()
}
