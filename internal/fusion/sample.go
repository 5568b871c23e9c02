package fusion

// SensorKind is one of the three fused sensor types spec.md §4.7 names.
type SensorKind string

const (
	SensorLiDAR    SensorKind = "lidar"
	SensorMagnetic SensorKind = "magnetic"
	SensorSpectral SensorKind = "spectral"
)

// AllSensorKinds enumerates the closed set of fused sensor kinds.
var AllSensorKinds = []SensorKind{SensorLiDAR, SensorMagnetic, SensorSpectral}

// Transform is a 4x4 rigid-body homogeneous transform, row-major, as
// Stage B (Spatial Registration) applies per sensor.
type Transform [4][4]float64

// IdentityTransform returns the no-op transform.
func IdentityTransform() Transform {
	var t Transform
	for i := 0; i < 4; i++ {
		t[i][i] = 1
	}
	return t
}

// Apply transforms point p by t, dropping the homogeneous coordinate.
func (t Transform) Apply(p [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = t[i][0]*p[0] + t[i][1]*p[1] + t[i][2]*p[2] + t[i][3]
	}
	return out
}

// Features is a sensor's extracted feature set, Stage E's input.
type Features struct {
	ThermalProfile       []float64
	EMEmissions          []float64
	GeometricDescriptors []float64
	SpectralIndices      []float64
}

// Sample is one timestamped reading from a single sensor, in the
// sensor's own frame, before temporal/spatial registration.
type Sample struct {
	Kind        SensorKind
	TimestampNS int64
	Position    [3]float64
	Health      float64 // 0..1
	Features    Features
}

// RegisteredSample is a Sample after Stage A/B: it carries the cycle's
// shared reference timestamp and a position in the common frame.
type RegisteredSample struct {
	Sample
	ReferenceTimestampNS int64
}

// FusedState is Stage F's output, published as FusedStateUpdated.
type FusedState struct {
	TimestampNS    int64
	Position       [3]float64
	Confidence     float64
	SignatureMatch string
	SignatureScore float64
}
