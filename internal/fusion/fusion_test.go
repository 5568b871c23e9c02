package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterTemporalDropsOutOfWindowSamples(t *testing.T) {
	base := int64(1_000_000_000)
	samples := []Sample{
		{Kind: SensorLiDAR, TimestampNS: base},
		{Kind: SensorMagnetic, TimestampNS: base + int64(10*time.Millisecond)},
		{Kind: SensorSpectral, TimestampNS: base + int64(200*time.Millisecond)},
	}

	out := RegisterTemporal(samples)
	require.Len(t, out, 2)
	for _, s := range out {
		assert.NotEqual(t, SensorSpectral, s.Kind)
	}
}

func TestRegisterSpatialAppliesTransform(t *testing.T) {
	translate := IdentityTransform()
	translate[0][3] = 5
	translate[1][3] = -2

	samples := []RegisteredSample{
		{Sample: Sample{Kind: SensorLiDAR, Position: [3]float64{0, 0, 0}}},
	}
	out := RegisterSpatial(samples, map[SensorKind]Transform{SensorLiDAR: translate})
	assert.Equal(t, [3]float64{5, -2, 0}, out[0].Position)
}

func TestRegisterSpatialDefaultsToIdentity(t *testing.T) {
	samples := []RegisteredSample{
		{Sample: Sample{Kind: SensorSpectral, Position: [3]float64{1, 2, 3}}},
	}
	out := RegisterSpatial(samples, map[SensorKind]Transform{})
	assert.Equal(t, [3]float64{1, 2, 3}, out[0].Position)
}

func TestPrioritiesSumToOne(t *testing.T) {
	p := NewPrioritizer()
	env := EnvironmentContext{
		VisibilityMeters:       800,
		PrecipitationMMPerHour: 10,
		EMNoiseNormalized:      0.2,
		TemperatureKelvin:      290,
		AtmosphericClarity:     0.9,
	}
	health := map[SensorKind]float64{SensorLiDAR: 1, SensorMagnetic: 1, SensorSpectral: 1}

	priorities := p.Priorities(env, health)

	sum := 0.0
	for _, v := range priorities {
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestDegradeLowersSensorPriority(t *testing.T) {
	p := NewPrioritizer()
	env := EnvironmentContext{VisibilityMeters: 1000, EMNoiseNormalized: 0.1, TemperatureKelvin: 273.15, AtmosphericClarity: 1}
	health := map[SensorKind]float64{SensorLiDAR: 1, SensorMagnetic: 1, SensorSpectral: 1}

	before := p.Priorities(env, health)[SensorLiDAR]
	p.Degrade(SensorLiDAR, 0.1)
	after := p.Priorities(env, health)[SensorLiDAR]

	assert.Less(t, after, before)
}

func TestCrossValidatorCorrelatesIdenticalSignals(t *testing.T) {
	cv := NewCrossValidator()
	for i := 0; i < 10; i++ {
		v := float64(i)
		cv.Record(SensorLiDAR, v)
		cv.Record(SensorMagnetic, v)
	}
	corr := cv.Correlate(SensorLiDAR, SensorMagnetic, 1.0)
	assert.InDelta(t, 1.0, corr, 1e-6)
}

func TestCrossValidatorPenalizesUncorrelatedSignals(t *testing.T) {
	cv := NewCrossValidator()
	for i := 0; i < 10; i++ {
		cv.Record(SensorLiDAR, float64(i))
		cv.Record(SensorMagnetic, float64(9-i%3))
	}
	confidence := map[SensorKind]float64{SensorLiDAR: 1, SensorMagnetic: 1, SensorSpectral: 1}
	penalties := cv.Validate(confidence)
	assert.Positive(t, penalties[SensorLiDAR])
	assert.Positive(t, penalties[SensorMagnetic])
}

func TestMatchSignatureAcceptsIdenticalFeatures(t *testing.T) {
	features := FusedFeatures{
		Thermal:   []float64{1, 2, 3},
		EM:        []float64{0.5, 0.5},
		Geometric: []float64{4, 5},
		Spectral:  []float64{0.1, 0.2, 0.3},
	}
	sig := Signature{Name: "known-target", Features: features}

	score, matched := MatchSignature(features, sig)
	assert.True(t, matched)
	assert.GreaterOrEqual(t, score, SignatureMatchThreshold)
}

func TestMatchSignatureRejectsDissimilarFeatures(t *testing.T) {
	fused := FusedFeatures{Spectral: []float64{1, 0, 0}, EM: []float64{1, 0}}
	sig := Signature{Name: "other", Features: FusedFeatures{Spectral: []float64{0, 1, 0}, EM: []float64{0, 1}}}

	_, matched := MatchSignature(fused, sig)
	assert.False(t, matched)
}

func TestEstimatorConvergesTowardRepeatedMeasurement(t *testing.T) {
	e := NewEstimatorState()
	target := [3]float64{10, 20, 30}
	for i := 0; i < 50; i++ {
		e.Update(target, 1.0)
	}
	assert.InDelta(t, target[0], e.Position[0], 0.5)
	assert.InDelta(t, target[1], e.Position[1], 0.5)
	assert.InDelta(t, target[2], e.Position[2], 0.5)
	assert.Less(t, e.Variance[0], 1.0)
}

func TestConfidenceHistoryBlendsTemporalAndFeature(t *testing.T) {
	var h ConfidenceHistory
	for i := 0; i < 5; i++ {
		h.Record(1.0, 0.0)
	}
	assert.InDelta(t, 0.6, h.FusionConfidence(), 1e-9)
}

func TestPipelineRunCycleProducesFusedState(t *testing.T) {
	p := NewPipeline("fusion-test", nil, []Signature{
		{Name: "target-a", Features: FusedFeatures{Spectral: []float64{1, 1, 1}}},
	})

	env := EnvironmentContext{
		VisibilityMeters:       900,
		PrecipitationMMPerHour: 5,
		EMNoiseNormalized:      0.1,
		TemperatureKelvin:      280,
		AtmosphericClarity:     0.95,
	}
	health := map[SensorKind]float64{SensorLiDAR: 0.9, SensorMagnetic: 0.9, SensorSpectral: 0.9}

	base := int64(5_000_000_000)
	samples := []Sample{
		{Kind: SensorLiDAR, TimestampNS: base, Position: [3]float64{1, 1, 1}, Health: 0.9,
			Features: Features{SpectralIndices: []float64{1, 1, 1}}},
		{Kind: SensorMagnetic, TimestampNS: base + int64(2*time.Millisecond), Position: [3]float64{1, 1, 1}, Health: 0.9},
		{Kind: SensorSpectral, TimestampNS: base + int64(3*time.Millisecond), Position: [3]float64{1, 1, 1}, Health: 0.9,
			Features: Features{SpectralIndices: []float64{1, 1, 1}}},
	}

	var state FusedState
	for i := 0; i < 3; i++ {
		state = p.RunCycle(env, health, samples)
	}

	assert.InDelta(t, 1.0, state.Position[0], 1.0)
	assert.GreaterOrEqual(t, state.Confidence, 0.0)
	assert.LessOrEqual(t, state.Confidence, 1.0)
}
