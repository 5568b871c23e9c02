package fusion

import (
	"sync"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/eventbus"
)

// Pipeline orchestrates Stages A-F over a batch of raw samples arriving
// once per fusion cycle, publishing FusedStateUpdated on completion.
type Pipeline struct {
	mu sync.Mutex

	transforms  map[SensorKind]Transform
	prioritizer *Prioritizer
	validator   *CrossValidator
	estimator   *EstimatorState
	confidence  ConfidenceHistory
	signatures  []Signature

	sourceID string
	bus      *eventbus.Bus
}

// NewPipeline returns a Pipeline with identity spatial transforms; call
// SetTransform to install calibrated transforms per sensor kind.
func NewPipeline(sourceID string, bus *eventbus.Bus, signatures []Signature) *Pipeline {
	return &Pipeline{
		transforms:  make(map[SensorKind]Transform),
		prioritizer: NewPrioritizer(),
		validator:   NewCrossValidator(),
		estimator:   NewEstimatorState(),
		signatures:  signatures,
		sourceID:    sourceID,
		bus:         bus,
	}
}

// SetTransform installs the spatial-registration transform for kind.
func (p *Pipeline) SetTransform(kind SensorKind, t Transform) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transforms[kind] = t
}

// Degrade forwards a sensor-fault degradation to the Stage C prioritizer.
func (p *Pipeline) Degrade(kind SensorKind, factor float64) {
	p.prioritizer.Degrade(kind, factor)
}

// featureScalar reduces a sample's feature set to the single scalar
// Stage D correlates on: the mean of all feature components. This lets
// cross-validation compare heterogeneous feature vectors across sensor
// kinds without assuming a shared feature space.
func featureScalar(f Features) float64 {
	all := append(append(append([]float64{}, f.ThermalProfile...), f.EMEmissions...), f.GeometricDescriptors...)
	all = append(all, f.SpectralIndices...)
	return average(all)
}

// RunCycle executes Stages A-F against one batch of raw samples and the
// current environment/health readings, publishing FusedStateUpdated and
// returning the resulting state.
func (p *Pipeline) RunCycle(env EnvironmentContext, health map[SensorKind]float64, samples []Sample) FusedState {
	p.mu.Lock()
	transforms := make(map[SensorKind]Transform, len(p.transforms))
	for k, v := range p.transforms {
		transforms[k] = v
	}
	p.mu.Unlock()

	registeredTemporal := RegisterTemporal(samples)
	registered := RegisterSpatial(registeredTemporal, transforms)

	priorities := p.prioritizer.Priorities(env, health)

	for _, s := range registered {
		p.validator.Record(s.Kind, featureScalar(s.Features))
	}
	penalties := p.validator.Validate(priorities)
	adjustedConfidence := make(map[SensorKind]float64, len(priorities))
	for kind, pr := range priorities {
		adjustedConfidence[kind] = clamp(pr-penalties[kind], 0.0, 1.0)
	}

	fused := CombineFeatures(registered, priorities)
	sigName, sigScore, _ := BestMatch(fused, p.signatures)

	var referenceTS int64
	var meanPosition [3]float64
	if len(registered) > 0 {
		referenceTS = registered[0].ReferenceTimestampNS
		for _, s := range registered {
			meanPosition[0] += s.Position[0]
			meanPosition[1] += s.Position[1]
			meanPosition[2] += s.Position[2]
		}
		n := float64(len(registered))
		meanPosition[0] /= n
		meanPosition[1] /= n
		meanPosition[2] /= n
	}

	overallReliability := average(mapValues(adjustedConfidence))
	p.estimator.Update(meanPosition, overallReliability)

	p.confidence.Record(TemporalConfidence(p.estimator.Variance), sigScore)
	fusionConfidence := p.confidence.FusionConfidence()

	state := FusedState{
		TimestampNS:    referenceTS,
		Position:       p.estimator.Position,
		Confidence:     fusionConfidence,
		SignatureMatch: sigName,
		SignatureScore: sigScore,
	}

	if p.bus != nil {
		_ = p.bus.Publish(eventbus.New(eventbus.KindFusedStateUpdated, p.sourceID, eventbus.PriorityNormal, state))
	}

	return state
}

func mapValues(m map[SensorKind]float64) []float64 {
	out := make([]float64, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
