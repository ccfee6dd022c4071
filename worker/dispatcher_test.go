package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(limit int) *Dispatcher {
	d := NewDispatcher(DispatcherConfig{Log: zerolog.Nop(), QueueLimit: limit})
	d.Start(context.Background())
	return d
}

func TestDispatcherKeepsPerUserOrder(t *testing.T) {
	d := newTestDispatcher(100)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		require.NoError(t, d.Submit(1, func(context.Context) {
			if i%7 == 0 {
				time.Sleep(time.Millisecond)
			}
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	d.Stop()

	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
	assert.Zero(t, d.Active())
}

func TestDispatcherRunsUsersInParallel(t *testing.T) {
	d := newTestDispatcher(0)
	defer d.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Submit(1, func(context.Context) {
		close(started)
		<-release
	}))
	<-started

	done := make(chan struct{})
	require.NoError(t, d.Submit(2, func(context.Context) { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("user 2 was blocked by user 1")
	}
	close(release)
}

func TestDispatcherNeverOverlapsOneUser(t *testing.T) {
	d := newTestDispatcher(0)

	var mu sync.Mutex
	running := map[int64]int{}
	overlap := false
	var wg sync.WaitGroup
	for user := int64(1); user <= 5; user++ {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			user := user
			require.NoError(t, d.Submit(user, func(context.Context) {
				defer wg.Done()
				mu.Lock()
				running[user]++
				if running[user] > 1 {
					overlap = true
				}
				mu.Unlock()
				time.Sleep(100 * time.Microsecond)
				mu.Lock()
				running[user]--
				mu.Unlock()
			}))
		}
	}
	wg.Wait()
	d.Stop()
	assert.False(t, overlap)
}

func TestDispatcherQueueLimit(t *testing.T) {
	d := newTestDispatcher(2)
	defer d.Stop()

	release := make(chan struct{})
	block := func(context.Context) { <-release }
	assert.NoError(t, d.Submit(1, block))
	assert.NoError(t, d.Submit(1, block))
	assert.ErrorIs(t, d.Submit(1, block), ErrQueueFull)
	assert.NoError(t, d.Submit(2, func(context.Context) {}))
	close(release)
}

func TestDispatcherStop(t *testing.T) {
	d := newTestDispatcher(0)

	var ran bool
	require.NoError(t, d.Submit(1, func(context.Context) {
		time.Sleep(10 * time.Millisecond)
		ran = true
	}))
	d.Stop()
	assert.True(t, ran, "Stop must wait for queued tasks")
	assert.ErrorIs(t, d.Submit(1, func(context.Context) {}), ErrStopped)

	// Stopping twice is a no-op.
	d.Stop()
}

func TestDispatcherRecoversPanics(t *testing.T) {
	d := newTestDispatcher(0)

	done := make(chan struct{})
	require.NoError(t, d.Submit(1, func(context.Context) { panic("boom") }))
	require.NoError(t, d.Submit(1, func(context.Context) { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queue stalled after a panic")
	}
	d.Stop()
}

func TestDispatcherNotStarted(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Log: zerolog.Nop()})
	assert.ErrorIs(t, d.Submit(1, func(context.Context) {}), ErrStopped)
	d.Stop()
}
