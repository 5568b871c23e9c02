package calibration

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rotateZ90(p [3]float64) [3]float64 {
	return [3]float64{-p[1], p[0], p[2]}
}

func identicalPointsSamples(n int) []Sample {
	samples := make([]Sample, n)
	for i := 0; i < n; i++ {
		p := [3]float64{float64(i), float64(i % 3), float64(-i)}
		samples[i] = Sample{Reference: p, Sensor: p}
	}
	return samples
}

func TestAlignToReferenceRejectsTooFewSamples(t *testing.T) {
	_, err := AlignToReference("imu", identicalPointsSamples(3))
	assert.Error(t, err)
}

func TestAlignToReferenceIdentityForIdenticalPoints(t *testing.T) {
	result, err := AlignToReference("imu", identicalPointsSamples(12))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Greater(t, result.Confidence, ConfidenceThreshold)
	assert.InDelta(t, 0.0, result.ResidualError, 1e-6)

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			expected := 0.0
			if i == j {
				expected = 1.0
			}
			assert.InDelta(t, expected, result.Transform[i][j], 1e-4)
		}
	}
}

func TestAlignToReferenceRecoversKnownRotation(t *testing.T) {
	samples := make([]Sample, 12)
	for i := 0; i < 12; i++ {
		sensorPoint := [3]float64{float64(i + 1), float64((i % 4) - 1), float64(i % 5)}
		samples[i] = Sample{Reference: rotateZ90(sensorPoint), Sensor: sensorPoint}
	}

	result, err := AlignToReference("spectral", samples)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Less(t, result.ResidualError, 0.05)

	transformed := applyRotation(
		[3][3]float64{
			{result.Transform[0][0], result.Transform[0][1], result.Transform[0][2]},
			{result.Transform[1][0], result.Transform[1][1], result.Transform[1][2]},
			{result.Transform[2][0], result.Transform[2][1], result.Transform[2][2]},
		},
		samples[0].Sensor,
	)
	assert.InDelta(t, samples[0].Reference[0], transformed[0], 0.05)
	assert.InDelta(t, samples[0].Reference[1], transformed[1], 0.05)
}

func TestAlignToReferenceLowConfidenceOnNoise(t *testing.T) {
	samples := make([]Sample, 15)
	for i := 0; i < 15; i++ {
		ref := [3]float64{float64(i), 0, 0}
		noisy := [3]float64{float64(i), math.Mod(float64(i*7), 3) - 1.5, math.Mod(float64(i*13), 5) - 2.5}
		samples[i] = Sample{Reference: ref, Sensor: noisy}
	}

	result, err := AlignToReference("noisy", samples)
	require.NoError(t, err)
	assert.LessOrEqual(t, result.Confidence, 1.0)
}

func TestPerformAlignmentRequiresAtLeastTwoSensors(t *testing.T) {
	c := NewCalibrator(nil)
	_, err := c.PerformAlignment(context.Background(), []string{"only-one"}, nil)
	assert.Error(t, err)
}

func TestPerformAlignmentAlignsEachNonReferenceSensor(t *testing.T) {
	c := NewCalibrator(nil)
	samples := map[string][]Sample{
		"magnetic": identicalPointsSamples(12),
		"spectral": identicalPointsSamples(12),
	}

	results, err := c.PerformAlignment(context.Background(), []string{"lidar", "magnetic", "spectral"}, samples)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, results, "magnetic")
	assert.Contains(t, results, "spectral")
}
