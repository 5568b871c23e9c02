package fusion

import "sync"

// Prioritizer implements Stage C: per-cycle env_score/reliability/priority
// for each sensor kind, ported from AdaptivePrioritizer in
// adaptive_prioritizer.py.
type Prioritizer struct {
	mu          sync.Mutex
	baseWeights map[SensorKind]float64
	th          thresholds
}

// NewPrioritizer returns a Prioritizer with spec.md §4.7's base weights:
// LiDAR 0.35, Magnetic 0.35, Spectral 0.30.
func NewPrioritizer() *Prioritizer {
	return &Prioritizer{
		baseWeights: map[SensorKind]float64{
			SensorLiDAR:    0.35,
			SensorMagnetic: 0.35,
			SensorSpectral: 0.30,
		},
		th: defaultThresholds(),
	}
}

func (p *Prioritizer) envScore(kind SensorKind, env EnvironmentContext) float64 {
	visImpact := clamp(env.VisibilityMeters/p.th.visibility, 0.1, 1.0)
	precipImpact := clamp(1.0-env.PrecipitationMMPerHour/p.th.precipitation, 0.1, 1.0)
	atmImpact := clamp(env.AtmosphericClarity, 0.1, 1.0)
	emImpact := clamp(1.0-env.EMNoiseNormalized/p.th.emNoise, 0.1, 1.0)

	switch kind {
	case SensorLiDAR:
		return (visImpact + precipImpact + atmImpact) / 3
	case SensorMagnetic:
		tempImpact := clamp(env.TemperatureKelvin/p.th.temperature, 0.1, 1.0)
		return (emImpact + tempImpact) / 2
	case SensorSpectral:
		return (atmImpact + visImpact) / 2
	default:
		return 0.1
	}
}

func (p *Prioritizer) degradation(kind SensorKind, env EnvironmentContext) float64 {
	switch kind {
	case SensorLiDAR:
		return 0.2 * (1.0 - clamp(env.VisibilityMeters/p.th.visibility, 0.1, 1.0))
	case SensorMagnetic:
		return 0.3 * clamp(1.0-env.EMNoiseNormalized/p.th.emNoise, 0.1, 1.0)
	case SensorSpectral:
		return 0.25 * (1.0 - clamp(env.AtmosphericClarity, 0.1, 1.0))
	default:
		return 0.0
	}
}

func (p *Prioritizer) reliability(kind SensorKind, health float64, env EnvironmentContext) float64 {
	return health * (1.0 - p.degradation(kind, env))
}

// Priorities computes the normalized priority vector for the given
// environment and per-kind health, and advances the dynamic thresholds
// for next cycle.
func (p *Prioritizer) Priorities(env EnvironmentContext, health map[SensorKind]float64) map[SensorKind]float64 {
	p.mu.Lock()
	p.th.adjust(env)
	weights := make(map[SensorKind]float64, len(p.baseWeights))
	for k, v := range p.baseWeights {
		weights[k] = v
	}
	p.mu.Unlock()

	raw := make(map[SensorKind]float64, len(weights))
	total := 0.0
	for kind, base := range weights {
		pr := base * p.envScore(kind, env) * p.reliability(kind, health[kind], env)
		raw[kind] = pr
		total += pr
	}
	if total > 0 {
		for k := range raw {
			raw[k] /= total
		}
	}
	return raw
}

// Degrade permanently scales kind's base weight by factor (e.g. 0.1 on a
// sensor fault). No error-fabric recovery strategy calls it; callers
// invoke it directly.
func (p *Prioritizer) Degrade(kind SensorKind, factor float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.baseWeights[kind]; ok {
		p.baseWeights[kind] = w * factor
	}
}
