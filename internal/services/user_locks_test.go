package services

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserLocks_SerializesSameUser(t *testing.T) {
	locks := newUserLocks(4)

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locks.withLock(7, func() error {
				v := counter
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestUserLocks_ReturnsFnError(t *testing.T) {
	locks := newUserLocks(0)
	boom := errors.New("boom")

	assert.ErrorIs(t, locks.withLock(1, func() error { return boom }), boom)
	assert.Len(t, locks.shards, defaultLockShards)

	// The lock is released after an error.
	assert.NoError(t, locks.withLock(1, func() error { return nil }))
}

func TestUserLocks_StableShard(t *testing.T) {
	locks := newUserLocks(8)

	assert.Same(t, locks.shard(3), locks.shard(3))
	assert.Same(t, locks.shard(3), locks.shard(11))
	assert.NotSame(t, locks.shard(3), locks.shard(4))
}
