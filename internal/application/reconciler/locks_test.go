package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plexward/internal/shared/errors"
)

func TestKeyedLocks_SerializesSameKey(t *testing.T) {
	locks := newKeyedLocks(time.Second)
	ctx := context.Background()

	release, err := locks.acquire(ctx, "stripe:sub_1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := locks.acquire(ctx, "stripe:sub_1")
		assert.NoError(t, err)
		close(acquired)
		second()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire must wait for the first release")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never completed after release")
	}
}

func TestKeyedLocks_IndependentKeysDoNotBlock(t *testing.T) {
	locks := newKeyedLocks(time.Second)
	ctx := context.Background()

	releaseA, err := locks.acquire(ctx, "stripe:sub_a")
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := locks.acquire(ctx, "stripe:sub_b")
	require.NoError(t, err)
	releaseB()
}

func TestKeyedLocks_TimeoutReturnsUnavailable(t *testing.T) {
	locks := newKeyedLocks(30 * time.Millisecond)
	ctx := context.Background()

	release, err := locks.acquire(ctx, "paypal:I-1")
	require.NoError(t, err)
	defer release()

	_, err = locks.acquire(ctx, "paypal:I-1")
	require.Error(t, err)
	assert.True(t, errors.IsUnavailableError(err))
}

func TestKeyedLocks_ContextCancellation(t *testing.T) {
	locks := newKeyedLocks(time.Minute)

	release, err := locks.acquire(context.Background(), "paypal:I-1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = locks.acquire(ctx, "paypal:I-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKeyedLocks_EntryFreedOnLastRelease(t *testing.T) {
	locks := newKeyedLocks(time.Second)

	release, err := locks.acquire(context.Background(), "stripe:sub_1")
	require.NoError(t, err)
	release()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.entries)
}
