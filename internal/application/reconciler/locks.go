package reconciler

import (
	"context"
	"sync"
	"time"

	"plexward/internal/shared/errors"
)

// keyedLocks serializes event processing per (provider, subscription id).
// Waiters queue on a per-key semaphore; a waiter that cannot acquire within
// the timeout gives up so a stuck side effect cannot pile up goroutines.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
	timeout time.Duration
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func newKeyedLocks(timeout time.Duration) *keyedLocks {
	return &keyedLocks{
		entries: make(map[string]*lockEntry),
		timeout: timeout,
	}
}

// acquire blocks until the key is free, the timeout fires, or ctx ends.
// The returned release function must be called exactly once.
func (k *keyedLocks) acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	timer := time.NewTimer(k.timeout)
	defer timer.Stop()

	select {
	case entry.sem <- struct{}{}:
		return func() {
			<-entry.sem
			k.releaseRef(key, entry)
		}, nil
	case <-timer.C:
		k.releaseRef(key, entry)
		return nil, errors.NewUnavailableError("timed out waiting for in-flight event on " + key)
	case <-ctx.Done():
		k.releaseRef(key, entry)
		return nil, ctx.Err()
	}
}

func (k *keyedLocks) releaseRef(key string, entry *lockEntry) {
	k.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()
}
