package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	EventsPublished      *prometheus.CounterVec
	EventPublishFailures prometheus.Counter
	EventsJournaled      *prometheus.CounterVec
	EventsMalformed      prometheus.Counter
	EventsDeadLettered   prometheus.Counter
	ConsumeDuration      prometheus.Histogram
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on a specific registerer. Tests pass a fresh
// registry to avoid duplicate-registration panics across cases.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicle_events_published_total",
			Help: "Total number of domain events handed to the durable log.",
		}, []string{"event_type"}),
		EventPublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_events_publish_failures_total",
			Help: "Total number of publish attempts that failed and were dropped.",
		}),
		EventsJournaled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicle_events_journaled_total",
			Help: "Total number of events appended to the journal store.",
		}, []string{"event_type"}),
		EventsMalformed: factory.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_events_malformed_total",
			Help: "Total number of consumed messages that failed deserialization.",
		}),
		EventsDeadLettered: factory.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_events_dead_lettered_total",
			Help: "Total number of poison messages routed to the dead-letter topic.",
		}),
		ConsumeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chronicle_consume_duration_seconds",
			Help:    "Time spent processing a single consumed message.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
