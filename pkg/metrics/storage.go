package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	AppendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_log_appends_total",
			Help: "Total number of log appends",
		},
		[]string{"result"}, // ok, error
	)

	AppendLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "strata_append_latency_seconds",
		Help:    "Histogram of append command latency, log write plus catalog insert",
		Buckets: prometheus.DefBuckets,
	})

	SegmentRotations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "strata_segment_rotations_total",
		Help: "Total number of log segment rotations",
	})

	ActiveSegmentBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "strata_active_segment_bytes",
		Help: "Bytes written to the active log segment",
	})

	GenerationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_generations_created_total",
			Help: "Total number of table generations produced",
		},
		[]string{"mutability"}, // mutable, immutable
	)

	GenerationsSealed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "strata_generations_sealed_total",
		Help: "Total number of generations moved to the sealed set",
	})

	UntaggedBatches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "strata_untagged_batches_total",
		Help: "Total number of batches rejected for a missing table name tag",
	})

	SchemaConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "strata_schema_conflicts_total",
		Help: "Total number of merges rejected for incompatible field types",
	})

	FlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_flushes_total",
			Help: "Total number of generation flushes",
		},
		[]string{"result"}, // ok, error
	)

	CommandQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "strata_command_queue_depth",
		Help: "Commands waiting in the actor queue",
	})
)

// ObserveAppend records the outcome and latency of one append command.
func ObserveAppend(ok bool, elapsedSeconds float64) {
	AppendsTotal.WithLabelValues(resultLabel(ok)).Inc()
	AppendLatency.Observe(elapsedSeconds)
}

// ObserveGeneration records a newly produced generation.
func ObserveGeneration(mutable bool) {
	if mutable {
		GenerationsCreated.WithLabelValues("mutable").Inc()
		return
	}
	GenerationsCreated.WithLabelValues("immutable").Inc()
}

func ObserveFlush(ok bool) {
	FlushesTotal.WithLabelValues(resultLabel(ok)).Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
