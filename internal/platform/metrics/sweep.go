// Package metrics defines the prometheus collectors flowkeeper exports
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flowkeeper"

// SweepMetrics covers maintenance sweeps and their sub-steps
type SweepMetrics struct {
	// Runs counts finished sweeps by terminal status (success, partial_failure)
	Runs *prometheus.CounterVec

	// Duration observes end-to-end sweep time
	Duration prometheus.Histogram

	// StepFailures counts failed sub-steps by step and error code
	StepFailures *prometheus.CounterVec

	// StepDuration observes per sub-step time
	StepDuration *prometheus.HistogramVec

	// PartitionsDropped counts partitions removed by retention
	PartitionsDropped prometheus.Counter

	// CacheEntriesRemoved counts orphaned shard cache rows deleted
	CacheEntriesRemoved prometheus.Counter

	// EngineChanges counts partitions moved to the default engine
	EngineChanges prometheus.Counter

	// NewRecords counts records seen by watermark advances
	NewRecords prometheus.Counter

	// WatermarkSequence is the last persisted sequence
	WatermarkSequence prometheus.Gauge

	// LastSweep is the unix time of the last finished sweep
	LastSweep prometheus.Gauge
}

// NewSweepMetrics registers with the default registry
func NewSweepMetrics() *SweepMetrics {
	return NewSweepMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewSweepMetricsWithRegistry registers with reg, so tests can use a private registry
func NewSweepMetricsWithRegistry(reg prometheus.Registerer) *SweepMetrics {
	f := promauto.With(reg)
	return &SweepMetrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sweep", Name: "runs_total",
			Help: "Finished maintenance sweeps by terminal status.",
		}, []string{"status"}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "sweep", Name: "duration_seconds",
			Help:    "End-to-end maintenance sweep duration.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		StepFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sweep", Name: "step_failures_total",
			Help: "Failed sweep sub-steps by step and error code.",
		}, []string{"step", "code"}),
		StepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "sweep", Name: "step_duration_seconds",
			Help:    "Sweep sub-step duration.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"step"}),
		PartitionsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "retention", Name: "partitions_dropped_total",
			Help: "Partitions dropped because their suffix fell before the retention cutoff.",
		}),
		CacheEntriesRemoved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "shard_cache", Name: "entries_removed_total",
			Help: "Shard cache entries removed because their table no longer exists.",
		}),
		EngineChanges: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "engine", Name: "changes_total",
			Help: "Partitions converted to the default storage engine.",
		}),
		NewRecords: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "watermark", Name: "new_records_total",
			Help: "Records observed past the watermark.",
		}),
		WatermarkSequence: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "watermark", Name: "sequence",
			Help: "Last persisted watermark sequence.",
		}),
		LastSweep: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "sweep", Name: "last_timestamp_seconds",
			Help: "Unix time the last sweep finished.",
		}),
	}
}

// ObserveSweep records a finished sweep
func (m *SweepMetrics) ObserveSweep(status string, elapsed time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(status).Inc()
	m.Duration.Observe(elapsed.Seconds())
	m.LastSweep.Set(float64(finished.Unix()))
}

// ObserveStep records one sub-step; code is empty on success
func (m *SweepMetrics) ObserveStep(step string, elapsed time.Duration, code string) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(step).Observe(elapsed.Seconds())
	if code != "" {
		m.StepFailures.WithLabelValues(step, code).Inc()
	}
}

// AddCounts records the per-sweep work counters
func (m *SweepMetrics) AddCounts(dropped, removed, altered int, records int64) {
	if m == nil {
		return
	}
	m.PartitionsDropped.Add(float64(dropped))
	m.CacheEntriesRemoved.Add(float64(removed))
	m.EngineChanges.Add(float64(altered))
	m.NewRecords.Add(float64(records))
}

// SetWatermark records the persisted sequence
func (m *SweepMetrics) SetWatermark(seq int64) {
	if m == nil {
		return
	}
	m.WatermarkSequence.Set(float64(seq))
}
