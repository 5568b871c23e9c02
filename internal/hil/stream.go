package hil

import (
	"context"
	"sync"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/eventbus"
)

// StreamBufferSize bounds the backpressure channel every Interface
// implementation should stream through.
const StreamBufferSize = 64

// BackpressureStream is a bounded, drop-oldest producer/consumer channel:
// a producer's Push never blocks. When the consumer falls behind, the
// oldest queued sample is discarded and a SensorDropped event is
// published, per spec.md §4.9.
type BackpressureStream struct {
	mu       sync.Mutex
	buf      []Sample
	capacity int
	notify   chan struct{}

	sensorID string
	bus      *eventbus.Bus
}

// NewBackpressureStream returns a stream with the given capacity; a
// capacity below 1 selects StreamBufferSize.
func NewBackpressureStream(sensorID string, capacity int, bus *eventbus.Bus) *BackpressureStream {
	if capacity < 1 {
		capacity = StreamBufferSize
	}
	return &BackpressureStream{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
		sensorID: sensorID,
		bus:      bus,
	}
}

// Push enqueues s, never blocking. If the buffer is at capacity the
// oldest sample is dropped and SensorDropped is published.
func (s *BackpressureStream) Push(sample Sample) {
	s.mu.Lock()
	dropped := false
	if len(s.buf) >= s.capacity {
		s.buf = s.buf[1:]
		dropped = true
	}
	s.buf = append(s.buf, sample)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}

	if dropped {
		s.publishDropped()
	}
}

func (s *BackpressureStream) publishDropped() {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(eventbus.New(eventbus.KindSensorDropped, s.sensorID, eventbus.PriorityHigh, s.sensorID))
}

// pop removes and returns the oldest buffered sample, if any.
func (s *BackpressureStream) pop() (Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		return Sample{}, false
	}
	sample := s.buf[0]
	s.buf = s.buf[1:]
	return sample, true
}

// Channel returns a channel of samples drained from the buffer until ctx
// is cancelled, at which point the channel is closed. Calling Channel
// again after cancellation starts a fresh drain goroutine, satisfying
// Stream()'s restartable requirement.
func (s *BackpressureStream) Channel(ctx context.Context) <-chan Sample {
	out := make(chan Sample)
	go func() {
		defer close(out)
		for {
			for {
				sample, ok := s.pop()
				if !ok {
					break
				}
				select {
				case out <- sample:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-s.notify:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
