package hil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/eventbus"
)

// SampleSource produces the next sample's payload; the adapter fills in
// timestamp and sample-rate metadata around it. A real interface backs
// this with a serial/bus read; tests and simulation back it with a
// deterministic generator.
type SampleSource func(ctx context.Context) (position [3]float64, value float64, features map[string][]float64, err error)

// Simulated is a HIL interface adapter around any SampleSource, carrying
// the connect/disconnect/calibrate/stream contract common to every
// concrete sensor interface, the way IMUHILInterface wraps HILInterface
// in the original's hil_interface.py/imu_interface.py split.
type Simulated struct {
	mu          sync.Mutex
	sensorID    string
	sampleRate  float64
	source      SampleSource
	connected   bool
	calibration CalibrationMatrix

	stream *BackpressureStream
	bus    *eventbus.Bus

	cancelStream context.CancelFunc
}

// NewSimulated returns a disconnected Simulated interface for sensorID,
// sampling at sampleRateHz, producing samples from source.
func NewSimulated(sensorID string, sampleRateHz float64, source SampleSource, bus *eventbus.Bus) *Simulated {
	return &Simulated{
		sensorID:    sensorID,
		sampleRate:  sampleRateHz,
		source:      source,
		calibration: IdentityCalibration(),
		stream:      NewBackpressureStream(sensorID, StreamBufferSize, bus),
		bus:         bus,
	}
}

// Connect establishes the (simulated) hardware session, bounded by
// ConnectTimeout, and publishes HILConnected on success.
func (s *Simulated) Connect(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		return false, fmt.Errorf("hil: connect %s: %w", s.sensorID, ctx.Err())
	default:
	}

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()

	if s.bus != nil {
		_ = s.bus.Publish(eventbus.New(eventbus.KindHILConnected, s.sensorID, eventbus.PriorityNormal, s.sensorID))
	}
	return true, nil
}

// Disconnect tears down the session and stops any active stream.
func (s *Simulated) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	s.connected = false
	if s.cancelStream != nil {
		s.cancelStream()
		s.cancelStream = nil
	}
	s.mu.Unlock()

	if s.bus != nil {
		_ = s.bus.Publish(eventbus.New(eventbus.KindHILDisconnected, s.sensorID, eventbus.PriorityNormal, s.sensorID))
	}
	return nil
}

// ReadSample pulls one sample directly from the source, independent of
// any active stream.
func (s *Simulated) ReadSample(ctx context.Context) (Sample, error) {
	s.mu.Lock()
	connected := s.connected
	s.mu.Unlock()
	if !connected {
		return Sample{}, fmt.Errorf("hil: %s not connected", s.sensorID)
	}

	position, value, features, err := s.source(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("hil: read %s: %w", s.sensorID, err)
	}
	return Sample{
		SensorID:     s.sensorID,
		TimestampNS:  time.Now().UnixNano(),
		Position:     position,
		Value:        value,
		Features:     features,
		SampleRateHz: s.sampleRate,
	}, nil
}

// Stream starts (or restarts) a background producer goroutine pushing
// samples into the bounded backpressure buffer at the configured sample
// rate, returning the consumer-facing channel. Cancelling ctx stops the
// producer and closes the channel.
func (s *Simulated) Stream(ctx context.Context) (<-chan Sample, error) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return nil, fmt.Errorf("hil: %s not connected", s.sensorID)
	}
	streamCtx, cancel := context.WithCancel(ctx)
	s.cancelStream = cancel
	s.mu.Unlock()

	interval := time.Second
	if s.sampleRate > 0 {
		interval = time.Duration(float64(time.Second) / s.sampleRate)
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-streamCtx.Done():
				return
			case <-ticker.C:
				sample, err := s.ReadSample(streamCtx)
				if err != nil {
					continue
				}
				s.stream.Push(sample)
			}
		}
	}()

	return s.stream.Channel(streamCtx), nil
}

// Calibrate returns the interface's current calibration matrix. A real
// device would collect synchronized samples here; the simulated adapter
// simply reports whatever the Alignment Calibrator has last installed
// via SetCalibration.
func (s *Simulated) Calibrate(ctx context.Context) (CalibrationMatrix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calibration, nil
}

// SetCalibration installs a calibration matrix, typically the output of
// internal/calibration's alignment solve for this sensor.
func (s *Simulated) SetCalibration(m CalibrationMatrix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calibration = m
}

var _ Interface = (*Simulated)(nil)
