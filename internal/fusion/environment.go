// Package fusion implements the Sensor Fusion Pipeline's six stages:
// temporal registration, spatial registration, adaptive prioritization,
// cross-validation, feature fusion, and state estimation, adapted from
// original_source/src/core/sensors/fusion/adaptive_prioritizer.py and
// sibling files in that package.
package fusion

// EnvironmentContext summarizes the ambient conditions the Adaptive
// Prioritizer reacts to, trimmed from the original's full
// UnifiedEnvironment/WeatherConditions/AtmosphericProperties hierarchy
// down to exactly the fields Stage C's env_score formula consumes.
type EnvironmentContext struct {
	VisibilityMeters       float64
	PrecipitationMMPerHour float64
	EMNoiseNormalized      float64 // 0..1
	TemperatureKelvin      float64
	AtmosphericClarity     float64 // 0..1, 1 = perfectly clear
}

// thresholds holds the dynamically-adjusted per-factor comparison points
// Stage C's env_score normalizes against, per spec.md §4.7: "the
// threshold moves by ±5% per cycle toward the observed conditions,
// clamped to plausible bounds."
type thresholds struct {
	visibility     float64
	precipitation  float64
	emNoise        float64
	temperature    float64
}

func defaultThresholds() thresholds {
	return thresholds{
		visibility:    1000.0,
		precipitation: 25.0,
		emNoise:       0.1,
		temperature:   273.15,
	}
}

const adaptationRate = 0.05

// adjust moves each threshold 5% toward the observed condition, per the
// original's _adjust_thresholds, then clamps to plausible bounds.
func (t *thresholds) adjust(env EnvironmentContext) {
	if env.VisibilityMeters < t.visibility {
		t.visibility *= 1 - adaptationRate
	} else {
		t.visibility *= 1 + adaptationRate
	}

	if env.PrecipitationMMPerHour > t.precipitation {
		t.precipitation *= 1 + adaptationRate
	} else {
		t.precipitation *= 1 - adaptationRate
	}

	if env.EMNoiseNormalized > t.emNoise {
		t.emNoise *= 1 + adaptationRate
	} else {
		t.emNoise *= 1 - adaptationRate
	}

	if env.TemperatureKelvin > t.temperature {
		t.temperature *= 1 + adaptationRate
	} else {
		t.temperature *= 1 - adaptationRate
	}

	t.clamp()
}

func (t *thresholds) clamp() {
	t.visibility = clamp(t.visibility, 50.0, 50000.0)
	t.precipitation = clamp(t.precipitation, 1.0, 200.0)
	t.emNoise = clamp(t.emNoise, 0.01, 1.0)
	t.temperature = clamp(t.temperature, 173.15, 373.15)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
