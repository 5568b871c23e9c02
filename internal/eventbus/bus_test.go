package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runBus(t *testing.T, b *Bus) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	return cancel
}

func TestPriorityOrdering(t *testing.T) {
	b := New(16, nil)
	cancel := runBus(t, b)
	defer cancel()

	var mu sync.Mutex
	var order []Kind
	done := make(chan struct{})

	b.Subscribe(KindMaintenanceAlert, func(ctx context.Context, ev Event) error {
		mu.Lock()
		order = append(order, ev.Kind)
		if len(order) == 2 {
			close(done)
		}
		mu.Unlock()
		return nil
	})
	b.Subscribe(KindSystemFailure, func(ctx context.Context, ev Event) error {
		mu.Lock()
		order = append(order, ev.Kind)
		if len(order) == 2 {
			close(done)
		}
		mu.Unlock()
		return nil
	})

	require.NoError(t, b.Publish(New(KindMaintenanceAlert, "s1", PriorityLow, nil)))
	require.NoError(t, b.Publish(New(KindSystemFailure, "s1", PriorityCritical, nil)))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 2)
	assert.Equal(t, KindSystemFailure, order[0], "priority 0 must deliver before priority 3")
	assert.Equal(t, KindMaintenanceAlert, order[1])
}

func TestFIFOWithinPriorityAndSourceAndKind(t *testing.T) {
	b := New(16, nil)
	cancel := runBus(t, b)
	defer cancel()

	var mu sync.Mutex
	var seen []int
	done := make(chan struct{})

	b.Subscribe(KindSensorDataUpdated, func(ctx context.Context, ev Event) error {
		mu.Lock()
		seen = append(seen, ev.Payload.(int))
		if len(seen) == 5 {
			close(done)
		}
		mu.Unlock()
		return nil
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Publish(New(KindSensorDataUpdated, "sensor-1", PriorityNormal, i)))
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, seen)
}

func TestBackpressureFullRejectsNonCritical(t *testing.T) {
	b := New(2, nil)

	require.NoError(t, b.Publish(New(KindMaintenanceAlert, "s", PriorityLow, nil)))
	require.NoError(t, b.Publish(New(KindMaintenanceAlert, "s", PriorityLow, nil)))

	err := b.Publish(New(KindMaintenanceAlert, "s", PriorityLow, nil))
	assert.ErrorIs(t, err, ErrBackpressureFull)
}

func TestCriticalPublishEvictsLowestPriority(t *testing.T) {
	b := New(2, nil)

	require.NoError(t, b.Publish(New(KindMaintenanceAlert, "s", PriorityLow, "low")))
	require.NoError(t, b.Publish(New(KindMaintenanceAlert, "s", PriorityNormal, "normal")))

	err := b.Publish(New(KindSystemFailure, "s", PriorityCritical, "critical"))
	require.NoError(t, err)

	assert.Equal(t, 2, b.QueueLen())
	assert.Empty(t, b.queues[PriorityLow], "the low-priority event should have been evicted")
}

func TestUnknownKindRejected(t *testing.T) {
	b := New(16, nil)
	err := b.Publish(Event{Kind: "NotARealKind", Priority: PriorityNormal})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestSlowHandlerEmitsMetaEvent(t *testing.T) {
	b := New(16, nil)
	cancel := runBus(t, b)
	defer cancel()

	done := make(chan Event, 1)
	b.Subscribe(KindSlowHandler, func(ctx context.Context, ev Event) error {
		done <- ev
		return nil
	})
	b.Subscribe(KindMaintenanceAlert, func(ctx context.Context, ev Event) error {
		time.Sleep(60 * time.Millisecond)
		return nil
	})

	require.NoError(t, b.Publish(New(KindMaintenanceAlert, "s", PriorityNormal, nil)))

	select {
	case ev := <-done:
		payload, ok := ev.Payload.(SlowHandlerPayload)
		require.True(t, ok)
		assert.Equal(t, KindMaintenanceAlert, payload.HandlerKind)
		assert.Greater(t, payload.Duration, SlowHandlerThreshold)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for SlowHandler meta-event")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(16, nil)
	cancel := runBus(t, b)
	defer cancel()

	var count int
	var mu sync.Mutex
	id := b.Subscribe(KindMaintenanceAlert, func(ctx context.Context, ev Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	require.NoError(t, b.Publish(New(KindMaintenanceAlert, "s", PriorityNormal, nil)))
	time.Sleep(50 * time.Millisecond)

	b.Unsubscribe(id)
	require.NoError(t, b.Publish(New(KindMaintenanceAlert, "s", PriorityNormal, nil)))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}
