package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline.
type Metrics struct {
	PacketsReceived   *prometheus.CounterVec // labels: source={udp,cloud}
	ParseErrors       prometheus.Counter
	ReadingsPublished prometheus.Counter
	PublishErrors     prometheus.Counter
	UpdatesSkipped    prometheus.Counter
	PipelineRunning   prometheus.Gauge

	// Entity state metrics.
	EntitiesTracked     prometheus.Gauge
	EntitiesUnavailable prometheus.Gauge

	// Cloud polling metrics.
	PollDuration prometheus.Histogram
	AuthRetries  prometheus.Counter
}

// NewMetrics creates and registers all bridge metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tempest_bridge",
			Name:      "packets_received_total",
			Help:      "Total raw packets received, by transport.",
		}, []string{"source"}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tempest_bridge",
			Name:      "parse_errors_total",
			Help:      "Total malformed packets dropped.",
		}),
		ReadingsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tempest_bridge",
			Name:      "readings_published_total",
			Help:      "Total reading updates pushed to sinks.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tempest_bridge",
			Name:      "publish_errors_total",
			Help:      "Total sink publish failures.",
		}),
		UpdatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tempest_bridge",
			Name:      "updates_skipped_total",
			Help:      "Total reading updates suppressed because the value was unchanged.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tempest_bridge",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		EntitiesTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tempest_bridge",
			Name:      "entities_tracked",
			Help:      "Number of entities with a last-known reading.",
		}),
		EntitiesUnavailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tempest_bridge",
			Name:      "entities_unavailable",
			Help:      "Number of entities past the expiry window.",
		}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tempest_bridge",
			Name:      "poll_duration_seconds",
			Help:      "Duration of a cloud REST poll.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		AuthRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tempest_bridge",
			Name:      "auth_retries_total",
			Help:      "Total token refresh attempts triggered by 401 responses.",
		}),
	}

	prometheus.MustRegister(
		m.PacketsReceived,
		m.ParseErrors,
		m.ReadingsPublished,
		m.PublishErrors,
		m.UpdatesSkipped,
		m.PipelineRunning,
		m.EntitiesTracked,
		m.EntitiesUnavailable,
		m.PollDuration,
		m.AuthRetries,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		PacketsReceived:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "tempest_bridge", Name: "packets_received_total"}, []string{"source"}),
		ParseErrors:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "tempest_bridge", Name: "parse_errors_total"}),
		ReadingsPublished:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "tempest_bridge", Name: "readings_published_total"}),
		PublishErrors:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "tempest_bridge", Name: "publish_errors_total"}),
		UpdatesSkipped:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "tempest_bridge", Name: "updates_skipped_total"}),
		PipelineRunning:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "tempest_bridge", Name: "pipeline_running"}),
		EntitiesTracked:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "tempest_bridge", Name: "entities_tracked"}),
		EntitiesUnavailable: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "tempest_bridge", Name: "entities_unavailable"}),
		PollDuration:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "tempest_bridge", Name: "poll_duration_seconds"}),
		AuthRetries:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "tempest_bridge", Name: "auth_retries_total"}),
	}
}
