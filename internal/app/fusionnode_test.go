package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/fusion"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/hil"
)

type recordingPipeline struct {
	cycles  int
	samples []fusion.Sample
}

func (r *recordingPipeline) RunCycle(env fusion.EnvironmentContext, health map[fusion.SensorKind]float64, samples []fusion.Sample) fusion.FusedState {
	r.cycles++
	r.samples = samples
	return fusion.FusedState{}
}

func (r *recordingPipeline) Degrade(kind fusion.SensorKind, factor float64) {}

func constantSource(pos [3]float64, value float64) hil.SampleSource {
	return func(ctx context.Context) ([3]float64, float64, map[string][]float64, error) {
		return pos, value, map[string][]float64{"thermal": {value}}, nil
	}
}

func TestFusionNodeRunsCycleOnceSamplesArrive(t *testing.T) {
	lidar := hil.NewSimulated("lidar-0", 200, constantSource([3]float64{1, 2, 3}, 0.5), nil)
	node := NewFusionNode([]SensorSource{{Kind: fusion.SensorLiDAR, Interface: lidar}}, &recordingPipeline{})

	require.NoError(t, node.Initialize(context.Background()))
	defer node.Shutdown(context.Background())

	require.Eventually(t, func() bool {
		return node.Update(context.Background(), 10*time.Millisecond) == nil && len(node.latest) == 1
	}, time.Second, 5*time.Millisecond)

	pipeline := node.pipeline.(*recordingPipeline)
	require.NoError(t, node.Update(context.Background(), 10*time.Millisecond))
	assert.Greater(t, pipeline.cycles, 0)
}

func TestFusionNodeUpdateIsNoopWithoutSamples(t *testing.T) {
	node := NewFusionNode(nil, &recordingPipeline{})
	require.NoError(t, node.Update(context.Background(), time.Millisecond))
}

func TestFusionNodeShutdownDisconnectsInterfaces(t *testing.T) {
	lidar := hil.NewSimulated("lidar-1", 50, constantSource([3]float64{0, 0, 0}, 0), nil)
	node := NewFusionNode([]SensorSource{{Kind: fusion.SensorLiDAR, Interface: lidar}}, &recordingPipeline{})

	require.NoError(t, node.Initialize(context.Background()))
	assert.NoError(t, node.Shutdown(context.Background()))
}
