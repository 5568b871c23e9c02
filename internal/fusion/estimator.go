package fusion

// EstimatorState is a simplified per-axis (diagonal-covariance) Kalman
// filter standing in for a full Unscented Kalman Filter: no
// linear-algebra/matrix-square-root library exists anywhere in the
// corpus (the same constraint documented for the Alignment Calibrator's
// use of Horn's closed-form method instead of SVD-based Procrustes), so
// each position axis is tracked independently with its own scalar
// variance instead of a full state covariance matrix.
type EstimatorState struct {
	Position [3]float64
	Variance [3]float64

	initialized bool
}

// NewEstimatorState returns an estimator with high initial uncertainty.
func NewEstimatorState() *EstimatorState {
	return &EstimatorState{Variance: [3]float64{1e6, 1e6, 1e6}}
}

// processNoise and measurementNoise are fixed diagonal terms; the
// original's adaptive process/measurement noise scaling is collapsed to
// constants since no per-sensor noise model survived the distillation.
const (
	processNoise     = 0.05
	measurementNoise = 0.5
)

// Update performs one predict+correct step against a weighted-average
// measurement, where measurementWeight is typically the fused cycle's
// priority-weighted reliability (0..1, lower means less trusted,
// widening the effective measurement noise).
func (e *EstimatorState) Update(measurement [3]float64, measurementWeight float64) {
	if !e.initialized {
		e.Position = measurement
		e.initialized = true
		return
	}
	if measurementWeight <= 0 {
		measurementWeight = 0.01
	}
	effectiveMeasurementNoise := measurementNoise / measurementWeight

	for i := 0; i < 3; i++ {
		predictedVariance := e.Variance[i] + processNoise

		gain := predictedVariance / (predictedVariance + effectiveMeasurementNoise)
		e.Position[i] += gain * (measurement[i] - e.Position[i])
		e.Variance[i] = (1 - gain) * predictedVariance
	}
}

// ConfidenceHistory blends temporal stability (low recent variance) with
// feature-match confidence over a rolling window, weighted 6:4 per
// spec.md §4.7 Stage F.
type ConfidenceHistory struct {
	temporal []float64
	feature  []float64
}

// HistoryWindow is the number of cycles ConfidenceHistory retains.
const HistoryWindow = 10

// Record appends this cycle's temporal confidence (derived from
// estimator variance) and feature-match confidence, evicting beyond
// HistoryWindow.
func (h *ConfidenceHistory) Record(temporalConfidence, featureConfidence float64) {
	h.temporal = appendBounded(h.temporal, temporalConfidence, HistoryWindow)
	h.feature = appendBounded(h.feature, featureConfidence, HistoryWindow)
}

func appendBounded(v []float64, x float64, max int) []float64 {
	v = append(v, x)
	if len(v) > max {
		v = v[len(v)-max:]
	}
	return v
}

// FusionConfidence returns the 6:4 temporal:feature blended confidence
// over the retained window. With no history yet, it returns 0.
func (h *ConfidenceHistory) FusionConfidence() float64 {
	if len(h.temporal) == 0 {
		return 0
	}
	return clamp(0.6*average(h.temporal)+0.4*average(h.feature), 0.0, 1.0)
}

func average(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// TemporalConfidence converts an estimator's diagonal variance into a
// 0..1 confidence score: low variance -> confidence near 1.
func TemporalConfidence(variance [3]float64) float64 {
	avgVar := (variance[0] + variance[1] + variance[2]) / 3
	return clamp(1.0/(1.0+avgVar), 0.0, 1.0)
}
