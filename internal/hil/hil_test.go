package hil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/eventbus"
)

func constantSource(position [3]float64, value float64) SampleSource {
	return func(ctx context.Context) ([3]float64, float64, map[string][]float64, error) {
		return position, value, nil, nil
	}
}

func TestBackpressureStreamDropsOldestOnOverflow(t *testing.T) {
	bus := eventbus.New(eventbus.DefaultCapacity, nil)
	go bus.Run(context.Background())

	dropped := make(chan eventbus.Event, 8)
	bus.Subscribe(eventbus.KindSensorDropped, func(ctx context.Context, e eventbus.Event) error {
		dropped <- e
		return nil
	})

	stream := NewBackpressureStream("sensor-1", 2, bus)
	stream.Push(Sample{Value: 1})
	stream.Push(Sample{Value: 2})
	stream.Push(Sample{Value: 3})

	select {
	case <-dropped:
	case <-time.After(time.Second):
		t.Fatal("expected SensorDropped event")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	ch := stream.Channel(ctx)

	first := <-ch
	second := <-ch
	assert.Equal(t, 2.0, first.Value)
	assert.Equal(t, 3.0, second.Value)
}

func TestSimulatedConnectDisconnectLifecycle(t *testing.T) {
	s := NewSimulated("imu", 10, constantSource([3]float64{1, 2, 3}, 42), nil)

	ok, err := s.Connect(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	sample, err := s.ReadSample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42.0, sample.Value)

	require.NoError(t, s.Disconnect(context.Background()))

	_, err = s.ReadSample(context.Background())
	assert.Error(t, err)
}

func TestSimulatedReadSampleRejectsWhenDisconnected(t *testing.T) {
	s := NewSimulated("sensor", 10, constantSource([3]float64{}, 0), nil)
	_, err := s.ReadSample(context.Background())
	assert.Error(t, err)
}

func TestSimulatedStreamDeliversSamples(t *testing.T) {
	s := NewSimulated("sensor", 50, constantSource([3]float64{1, 1, 1}, 7), nil)
	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	ch, err := s.Stream(ctx)
	require.NoError(t, err)

	select {
	case sample := <-ch:
		assert.Equal(t, 7.0, sample.Value)
	case <-time.After(time.Second):
		t.Fatal("expected a streamed sample")
	}
}

func TestSimulatedCalibrationRoundTrip(t *testing.T) {
	s := NewSimulated("sensor", 10, constantSource([3]float64{}, 0), nil)
	custom := CalibrationMatrix{{1, 0, 0, 5}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
	s.SetCalibration(custom)

	got, err := s.Calibrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, custom, got)
}
