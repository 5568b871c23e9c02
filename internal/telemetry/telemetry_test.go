package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/gateway"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNewRegistersAllCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := New(registry)
	assert.NotNil(t, c)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRecordBlockObservesSuccessOnly(t *testing.T) {
	c := New(prometheus.NewRegistry())
	c.RecordBlock("success", 50*time.Millisecond)
	c.RecordBlock("rejected", 50*time.Millisecond)

	assert.EqualValues(t, 1, counterValue(t, c.BlocksTotal.WithLabelValues("success")))
	assert.EqualValues(t, 1, counterValue(t, c.BlocksTotal.WithLabelValues("rejected")))

	var hist dto.Metric
	require.NoError(t, c.BlockCreationTime.Write(&hist))
	assert.EqualValues(t, 1, hist.GetHistogram().GetSampleCount())
}

func TestSyncCountermeasuresReflectsActiveTags(t *testing.T) {
	c := New(prometheus.NewRegistry())
	set := gateway.NewSet(30 * time.Second)
	set.Activate(gateway.TagEnhancedValidation)

	c.SyncCountermeasures(set)

	assert.Equal(t, 1.0, gaugeValue(t, c.CountermeasureState.WithLabelValues(string(gateway.TagEnhancedValidation))))
	assert.Equal(t, 0.0, gaugeValue(t, c.CountermeasureState.WithLabelValues(string(gateway.TagCommandLockdown))))
}

func TestRecordFusionConfidenceSetsGauge(t *testing.T) {
	c := New(prometheus.NewRegistry())
	c.RecordFusionConfidence(0.92)
	assert.InDelta(t, 0.92, gaugeValue(t, c.FusionConfidence), 1e-9)
}

func TestRecordUptimeIsMonotonicallyNonNegative(t *testing.T) {
	c := New(prometheus.NewRegistry())
	start := time.Now().Add(-5 * time.Second)
	c.RecordUptime(start)
	assert.GreaterOrEqual(t, gaugeValue(t, c.ComponentUptime), 5.0)
}
