package fusion

import (
	"math"
	"sync"
)

// ValidationWindow is the number of recent measurements retained per
// sensor for cross-validation, per spec.md §4.7 Stage D.
const ValidationWindow = 10

// TemporalDecayTau is the exponential decay time constant, in samples.
const TemporalDecayTau = 5.0

// ValidationThreshold is the minimum acceptable weighted correlation
// between any two sensor kinds' histories.
const ValidationThreshold = 0.75

// CrossValidator implements Stage D: weighted Pearson correlation between
// sensor pairs over a rolling window, penalizing sensors whose mutual
// correlation falls below ValidationThreshold.
type CrossValidator struct {
	mu      sync.Mutex
	history map[SensorKind][]float64
}

// NewCrossValidator returns an empty CrossValidator.
func NewCrossValidator() *CrossValidator {
	return &CrossValidator{history: make(map[SensorKind][]float64)}
}

// Record appends a scalar summary of kind's latest measurement to its
// rolling window, evicting the oldest entry past ValidationWindow.
func (c *CrossValidator) Record(kind SensorKind, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := append(c.history[kind], value)
	if len(h) > ValidationWindow {
		h = h[len(h)-ValidationWindow:]
	}
	c.history[kind] = h
}

// Correlate returns the weighted Pearson correlation between sensor1 and
// sensor2's recorded histories. Weights combine the supplied confidence
// (typically min(env-factor confidence) of the pair) with an exponential
// temporal decay favoring recent samples.
func (c *CrossValidator) Correlate(sensor1, sensor2 SensorKind, confidence float64) float64 {
	c.mu.Lock()
	h1 := append([]float64(nil), c.history[sensor1]...)
	h2 := append([]float64(nil), c.history[sensor2]...)
	c.mu.Unlock()

	n := len(h1)
	if len(h2) < n {
		n = len(h2)
	}
	if n == 0 {
		return 0
	}
	h1 = h1[len(h1)-n:]
	h2 = h2[len(h2)-n:]

	weights := make([]float64, n)
	sumW := 0.0
	for i := 0; i < n; i++ {
		age := n - 1 - i
		w := confidence * math.Exp(-float64(age)/TemporalDecayTau)
		weights[i] = w
		sumW += w
	}
	if sumW == 0 {
		return 0
	}
	for i := range weights {
		weights[i] /= sumW
	}

	mean1, mean2 := weightedMean(h1, weights), weightedMean(h2, weights)
	var cov, var1, var2 float64
	for i := 0; i < n; i++ {
		d1, d2 := h1[i]-mean1, h2[i]-mean2
		cov += weights[i] * d1 * d2
		var1 += weights[i] * d1 * d1
		var2 += weights[i] * d2 * d2
	}
	denom := math.Sqrt(var1*var2) + 1e-8
	return clamp(cov/denom, 0.0, 1.0)
}

func weightedMean(v, w []float64) float64 {
	sum := 0.0
	for i := range v {
		sum += v[i] * w[i]
	}
	return sum
}

// Validate checks every sensor-kind pair's correlation against
// ValidationThreshold and returns, per sensor, the largest
// deficit-proportional confidence penalty incurred across its pairings.
func (c *CrossValidator) Validate(confidence map[SensorKind]float64) map[SensorKind]float64 {
	penalty := make(map[SensorKind]float64)
	for i, a := range AllSensorKinds {
		for _, b := range AllSensorKinds[i+1:] {
			conf := math.Min(confidence[a], confidence[b])
			corr := c.Correlate(a, b, conf)
			if corr < ValidationThreshold {
				deficit := ValidationThreshold - corr
				if deficit > penalty[a] {
					penalty[a] = deficit
				}
				if deficit > penalty[b] {
					penalty[b] = deficit
				}
			}
		}
	}
	return penalty
}
