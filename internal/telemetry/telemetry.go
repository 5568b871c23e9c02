// Package telemetry exposes the runtime's Prometheus collectors,
// grounded on the teacher's infrastructure/metrics.Metrics constructor
// — a struct of registered collectors built once and handed to callers,
// rather than a global singleton, since every Collectors instance here
// is scoped to one running Runtime.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/gateway"
)

// Collectors holds every metric the runtime publishes.
type Collectors struct {
	WorkerQueueDepth    prometheus.Gauge
	BlockCreationTime   prometheus.Histogram
	BlocksTotal         *prometheus.CounterVec
	ConsensusSwaps      prometheus.Counter
	CountermeasureState *prometheus.GaugeVec
	FusionConfidence    prometheus.Gauge
	SensorDropped       *prometheus.CounterVec
	ErrorsTotal         *prometheus.CounterVec
	ComponentUptime     prometheus.Gauge
}

// New builds and registers Collectors against registerer. A nil
// registerer uses prometheus.DefaultRegisterer, matching the teacher's
// NewWithRegistry/New split.
func New(registerer prometheus.Registerer) *Collectors {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	c := &Collectors{
		WorkerQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_worker_queue_depth",
			Help: "Current number of jobs pending in the bounded worker pool.",
		}),
		BlockCreationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_block_creation_seconds",
			Help:    "Time to mine and append a ledger block.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		BlocksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_blocks_total",
			Help: "Total blocks appended, by outcome.",
		}, []string{"outcome"}),
		ConsensusSwaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_consensus_swaps_total",
			Help: "Total number of consensus chain swaps performed.",
		}),
		CountermeasureState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sentinel_countermeasure_active",
			Help: "1 if the named countermeasure tag is currently active.",
		}, []string{"tag"}),
		FusionConfidence: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_fusion_confidence",
			Help: "Most recent blended fusion-state confidence score.",
		}),
		SensorDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_sensor_samples_dropped_total",
			Help: "Total samples dropped by a backpressure stream, by sensor.",
		}, []string{"sensor"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_errors_total",
			Help: "Total classified errors dispatched, by category and severity.",
		}, []string{"category", "severity"}),
		ComponentUptime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_uptime_seconds",
			Help: "Seconds since the runtime started.",
		}),
	}

	registerer.MustRegister(
		c.WorkerQueueDepth,
		c.BlockCreationTime,
		c.BlocksTotal,
		c.ConsensusSwaps,
		c.CountermeasureState,
		c.FusionConfidence,
		c.SensorDropped,
		c.ErrorsTotal,
		c.ComponentUptime,
	)

	for _, tag := range []gateway.Tag{
		gateway.TagCommandLockdown,
		gateway.TagEmergencyBeacon,
		gateway.TagEnhancedValidation,
		gateway.TagParameterLockdown,
	} {
		c.CountermeasureState.WithLabelValues(string(tag)).Set(0)
	}

	return c
}

// RecordBlock observes a block-creation duration and increments the
// outcome counter ("success" or "rejected").
func (c *Collectors) RecordBlock(outcome string, duration time.Duration) {
	c.BlocksTotal.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		c.BlockCreationTime.Observe(duration.Seconds())
	}
}

// RecordConsensusSwap increments the consensus-swap counter.
func (c *Collectors) RecordConsensusSwap() {
	c.ConsensusSwaps.Inc()
}

// SyncCountermeasures reflects set's current activation state into the
// countermeasure gauge vector.
func (c *Collectors) SyncCountermeasures(set *gateway.Set) {
	for _, tag := range []gateway.Tag{
		gateway.TagCommandLockdown,
		gateway.TagEmergencyBeacon,
		gateway.TagEnhancedValidation,
		gateway.TagParameterLockdown,
	} {
		value := 0.0
		if set != nil && set.IsActive(tag) {
			value = 1.0
		}
		c.CountermeasureState.WithLabelValues(string(tag)).Set(value)
	}
}

// RecordFusionConfidence sets the latest blended confidence score.
func (c *Collectors) RecordFusionConfidence(confidence float64) {
	c.FusionConfidence.Set(confidence)
}

// RecordSensorDropped increments the per-sensor drop counter.
func (c *Collectors) RecordSensorDropped(sensorID string) {
	c.SensorDropped.WithLabelValues(sensorID).Inc()
}

// RecordError increments the classified-error counter.
func (c *Collectors) RecordError(category, severity string) {
	c.ErrorsTotal.WithLabelValues(category, severity).Inc()
}

// RecordUptime sets the uptime gauge relative to startedAt.
func (c *Collectors) RecordUptime(startedAt time.Time) {
	c.ComponentUptime.Set(time.Since(startedAt).Seconds())
}
