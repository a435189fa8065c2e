package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadInput(t *testing.T) {
	noop := func(context.Context) error { return nil }

	_, err := New("not a spec", "UTC", "t", noop)
	assert.Error(t, err)

	_, err = New("@every 1h", "Mars/Olympus", "t", noop)
	assert.Error(t, err)
}

func TestRunNowAndStop(t *testing.T) {
	var calls atomic.Int32
	ran := make(chan struct{}, 1)

	s, err := New("@every 1h", "America/New_York", "t", func(ctx context.Context) error {
		calls.Add(1)
		ran <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	s.Start(true)
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run on start")
	}
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.Next(), time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, int32(1), calls.Load())
}

func TestOverlappingTicksAreSkipped(t *testing.T) {
	var running, maxRunning atomic.Int32
	s, err := New("@every 1s", "", "t", func(ctx context.Context) error {
		n := running.Add(1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		time.Sleep(2500 * time.Millisecond)
		running.Add(-1)
		return nil
	})
	require.NoError(t, err)

	s.Start(false)
	time.Sleep(3500 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, int32(1), maxRunning.Load())
}

func TestStartupRunRecoversFromPanic(t *testing.T) {
	var calls atomic.Int32
	s, err := New("@every 1h", "", "t", func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return nil
	})
	require.NoError(t, err)

	s.Start(true)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, int32(1), calls.Load())
}

func TestStartupRunBlocksScheduledTick(t *testing.T) {
	var running, maxRunning, calls atomic.Int32
	s, err := New("@every 1s", "", "t", func(ctx context.Context) error {
		calls.Add(1)
		n := running.Add(1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		time.Sleep(2500 * time.Millisecond)
		running.Add(-1)
		return nil
	})
	require.NoError(t, err)

	s.Start(true)
	time.Sleep(2 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, int32(1), maxRunning.Load())
	assert.Equal(t, int32(1), calls.Load())
}
