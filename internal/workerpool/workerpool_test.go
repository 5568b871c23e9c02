package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/eventbus"
)

func TestDefaultSizeIsWithinBounds(t *testing.T) {
	size := DefaultSize()
	assert.GreaterOrEqual(t, size, 1)
	assert.LessOrEqual(t, size, 4)
}

func TestPoolRunsSubmittedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := New(ctx, 2, 4, nil, "test")

	var count int32
	var wg sync.WaitGroup
	wg.Add(5)
	for i := 0; i < 5; i++ {
		job := Job{Name: "increment", Run: func(ctx context.Context) error {
			atomic.AddInt32(&count, 1)
			wg.Done()
			return nil
		}}
		require.NoError(t, pool.Submit(ctx, job))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs did not complete in time")
	}

	assert.EqualValues(t, 5, atomic.LoadInt32(&count))
}

func TestPoolPublishesErrorOnJobFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.New(eventbus.DefaultCapacity, nil)
	go bus.Run(ctx)

	errEvents := make(chan eventbus.Event, 1)
	bus.Subscribe(eventbus.KindError, func(ctx context.Context, e eventbus.Event) error {
		errEvents <- e
		return nil
	})

	pool := New(ctx, 1, 1, bus, "test-pool")
	require.NoError(t, pool.Submit(ctx, Job{Name: "failing", Run: func(ctx context.Context) error {
		return errors.New("boom")
	}}))

	select {
	case <-errEvents:
	case <-time.After(time.Second):
		t.Fatal("expected an Error event for the failed job")
	}
}

func TestPoolSubmitRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := New(ctx, 1, 1, nil, "test")

	require.NoError(t, pool.Submit(ctx, Job{Name: "block", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}}))

	cancel()

	submitCtx, submitCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer submitCancel()
	_ = pool.Submit(submitCtx, Job{Name: "never-runs", Run: func(ctx context.Context) error { return nil }})
}
