// Package app wires the runtime's sensor-facing components: each
// FusionNode owns one hil.Interface per sensor kind and drains its
// stream into the fusion pipeline once per Update tick, the way the
// teacher's system.Service implementations each own one external
// resource and get ticked by a shared scheduler.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/component"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/fusion"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/hil"
)

// SensorSource pairs a fusion.SensorKind with the HIL interface that
// produces its samples.
type SensorSource struct {
	Kind      fusion.SensorKind
	Interface hil.Interface
}

// FusionNode is a component.Component that connects every configured
// sensor interface, keeps its latest sample buffered, and runs a fusion
// cycle each Update tick over the newest buffered sample per kind. The
// buffer is not cleared between ticks, so a kind that has stopped
// producing keeps contributing its last sample.
type FusionNode struct {
	mu       sync.Mutex
	sources  []SensorSource
	pipeline Pipeline
	latest   map[fusion.SensorKind]fusion.Sample
	env      fusion.EnvironmentContext
	health   map[fusion.SensorKind]float64

	cancel context.CancelFunc
}

// Pipeline is the subset of *fusion.Pipeline's surface FusionNode needs,
// so tests can substitute a recording stub.
type Pipeline interface {
	RunCycle(env fusion.EnvironmentContext, health map[fusion.SensorKind]float64, samples []fusion.Sample) fusion.FusedState
	Degrade(kind fusion.SensorKind, factor float64)
}

// NewFusionNode returns a FusionNode driving pipeline from sources.
func NewFusionNode(sources []SensorSource, pipeline Pipeline) *FusionNode {
	return &FusionNode{
		sources:  sources,
		pipeline: pipeline,
		latest:   make(map[fusion.SensorKind]fusion.Sample),
		health:   make(map[fusion.SensorKind]float64),
		env: fusion.EnvironmentContext{
			VisibilityMeters:   10000,
			AtmosphericClarity: 1,
		},
	}
}

// Descriptor advertises this node as a sensor-fusion participant.
func (n *FusionNode) Descriptor() component.Descriptor {
	return component.Descriptor{Name: "fusion-node", Capabilities: []string{"sensor", "fusion"}}
}

// Initialize connects every sensor interface and starts its stream,
// draining it into latest as samples arrive.
func (n *FusionNode) Initialize(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	for _, src := range n.sources {
		if _, err := src.Interface.Connect(ctx); err != nil {
			cancel()
			return err
		}
		ch, err := src.Interface.Stream(streamCtx)
		if err != nil {
			cancel()
			return err
		}
		go n.drain(src.Kind, ch)
	}
	return nil
}

func (n *FusionNode) drain(kind fusion.SensorKind, ch <-chan hil.Sample) {
	for sample := range ch {
		n.mu.Lock()
		n.latest[kind] = toFusionSample(kind, sample)
		n.health[kind] = 1.0
		n.mu.Unlock()
	}
}

func toFusionSample(kind fusion.SensorKind, s hil.Sample) fusion.Sample {
	return fusion.Sample{
		Kind:        kind,
		TimestampNS: s.TimestampNS,
		Position:    s.Position,
		Health:      1.0,
		Features: fusion.Features{
			ThermalProfile:       s.Features["thermal"],
			EMEmissions:          s.Features["em"],
			GeometricDescriptors: s.Features["geometric"],
			SpectralIndices:      s.Features["spectral"],
		},
	}
}

// Update runs one fusion cycle over the latest sample from every source
// that has produced one since startup.
func (n *FusionNode) Update(ctx context.Context, dt time.Duration) error {
	n.mu.Lock()
	samples := make([]fusion.Sample, 0, len(n.latest))
	for _, s := range n.latest {
		samples = append(samples, s)
	}
	health := make(map[fusion.SensorKind]float64, len(n.health))
	for k, v := range n.health {
		health[k] = v
	}
	env := n.env
	n.mu.Unlock()

	if len(samples) == 0 {
		return nil
	}
	n.pipeline.RunCycle(env, health, samples)
	return nil
}

// SetEnvironment updates the ambient conditions fed to the prioritizer.
func (n *FusionNode) SetEnvironment(env fusion.EnvironmentContext) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.env = env
}

// Shutdown disconnects every sensor interface and stops its stream.
func (n *FusionNode) Shutdown(ctx context.Context) error {
	if n.cancel != nil {
		n.cancel()
	}
	var firstErr error
	for _, src := range n.sources {
		if err := src.Interface.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ component.Component = (*FusionNode)(nil)
