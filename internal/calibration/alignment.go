package calibration

import (
	"context"
	"fmt"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/eventbus"
)

// AlignmentCompletePayload is published as SensorAlignmentComplete.
type AlignmentCompletePayload struct {
	Sensor     string  `json:"sensor"`
	Reference  string  `json:"reference"`
	Error      float64 `json:"error"`
	Confidence float64 `json:"confidence"`
}

// Calibrator runs the Sensor Alignment Calibrator: the first sensor in
// a call to PerformAlignment is treated as the reference, and every
// other sensor is aligned to it.
type Calibrator struct {
	bus *eventbus.Bus
}

// NewCalibrator returns a Calibrator. bus may be nil for isolated tests.
func NewCalibrator(bus *eventbus.Bus) *Calibrator {
	return &Calibrator{bus: bus}
}

// PerformAlignment aligns every sensor in sensors[1:] against
// sensors[0], given synchronized sample pairs keyed by sensor name.
// Requires at least two sensors.
func (c *Calibrator) PerformAlignment(ctx context.Context, sensors []string, samples map[string][]Sample) (map[string]Result, error) {
	if len(sensors) < 2 {
		return nil, fmt.Errorf("calibration: at least two sensors required for alignment")
	}

	reference := sensors[0]
	results := make(map[string]Result, len(sensors)-1)

	for _, sensor := range sensors[1:] {
		result, err := AlignToReference(sensor, samples[sensor])
		if err != nil {
			return nil, fmt.Errorf("calibration: align %s to %s: %w", sensor, reference, err)
		}
		results[sensor] = result

		if c.bus != nil {
			_ = c.bus.Publish(eventbus.New(eventbus.KindSensorAlignmentDone, "calibration", eventbus.PriorityNormal,
				AlignmentCompletePayload{
					Sensor:     sensor,
					Reference:  reference,
					Error:      result.ResidualError,
					Confidence: result.Confidence,
				}))
		}
	}

	return results, nil
}
