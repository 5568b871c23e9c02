// Package hil implements the Hardware-In-the-Loop streaming contract:
// connect/disconnect/read/stream/calibrate against a sensor interface,
// with bounded, drop-oldest backpressure on the stream so a slow
// consumer never blocks a producer, matching spec.md §4.9.
package hil

import (
	"context"
	"time"
)

// CalibrationMatrix is the transform an interface's Calibrate() produces,
// consumed by the Alignment Calibrator (internal/calibration).
type CalibrationMatrix [4][4]float64

// IdentityCalibration returns the no-op calibration matrix.
func IdentityCalibration() CalibrationMatrix {
	var m CalibrationMatrix
	for i := 0; i < 4; i++ {
		m[i][i] = 1
	}
	return m
}

// Sample is one reading from a HIL interface, carrying the interface's
// per-sample metadata (sampling rate) alongside the payload.
type Sample struct {
	SensorID      string
	TimestampNS   int64
	Position      [3]float64
	Value         float64
	Features      map[string][]float64
	SampleRateHz  float64
}

// ConnectTimeout bounds how long Connect may take before the caller
// treats the attempt as failed, per spec.md §5.
const ConnectTimeout = 2 * time.Second

// Interface is the contract every HIL sensor adapter implements.
// Stream's returned channel is infinite and restartable: closing it (via
// ctx cancellation) and calling Stream again starts a fresh one.
type Interface interface {
	Connect(ctx context.Context) (bool, error)
	Disconnect(ctx context.Context) error
	ReadSample(ctx context.Context) (Sample, error)
	Stream(ctx context.Context) (<-chan Sample, error)
	Calibrate(ctx context.Context) (CalibrationMatrix, error)
}
