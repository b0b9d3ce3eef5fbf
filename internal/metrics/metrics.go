package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wikiflow"

// Metrics is the centralized registry of pipeline metrics. Drop counters are
// split by stage (and by field for projection) so every drop reason stays
// observable instead of being silently absorbed.
type Metrics struct {
	// Bus.
	Consumed      prometheus.Counter
	Published     prometheus.Counter
	PublishErrors prometheus.Counter

	// Per-stage drops.
	DecodeErrors    prometheus.Counter
	CanaryDropped   prometheus.Counter
	FilteredByType  prometheus.Counter
	ProjectionDrops *prometheus.CounterVec
	EnrichDrops     prometheus.Counter
	DedupHits       prometheus.Counter

	// Sink.
	RowsWritten prometheus.Counter
	WriteErrors prometheus.Counter

	// Runtime.
	ProcessLatency   prometheus.Histogram
	QueueUtilization prometheus.Gauge
}

// New registers all pipeline metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Consumed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bus", Name: "messages_consumed_total",
			Help: "Total messages pulled from the bus.",
		}),
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bus", Name: "messages_published_total",
			Help: "Total messages published to the bus by the ingest bridge.",
		}),
		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bus", Name: "publish_errors_total",
			Help: "Total publish attempts that failed after retries.",
		}),
		DecodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "decode_errors_total",
			Help: "Total payloads dropped as malformed JSON.",
		}),
		CanaryDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "canary_dropped_total",
			Help: "Total synthetic canary events discarded.",
		}),
		FilteredByType: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "filtered_by_type_total",
			Help: "Total events discarded for not being edits.",
		}),
		ProjectionDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "projection_drops_total",
			Help: "Total events dropped for a missing required field, by field.",
		}, []string{"field"}),
		EnrichDrops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "enrich_drops_total",
			Help: "Total records dropped on timestamp normalization failure.",
		}),
		DedupHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "dedup_hits_total",
			Help: "Total duplicate event_ids dropped before the sink write.",
		}),
		RowsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sink", Name: "rows_written_total",
			Help: "Total rows appended to the destination table.",
		}),
		WriteErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sink", Name: "write_errors_total",
			Help: "Total sink writes that failed.",
		}),
		ProcessLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "process_latency_seconds",
			Help:    "Per-record latency from bus read to ack.",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		QueueUtilization: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "engine", Name: "queue_utilization_ratio",
			Help: "Current worker queue utilization (0-1).",
		}),
	}
}

// GlobalMetrics is the shared metrics instance.
var GlobalMetrics = New()
