package publisher

import (
	"context"
	"log/slog"

	"chronicle/internal/event"
	"chronicle/internal/platform/metrics"
)

// Producer is the durable-log append dependency.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Publisher serializes domain events and hands them to the durable log,
// keyed by user id so that per-user order is preserved.
//
// Publish is fire-and-forget: the caller's mutation has already committed,
// and a publish failure must not roll it back. Failures are logged and
// counted, never returned.
type Publisher struct {
	producer Producer
	topic    string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New creates a publisher for the given topic.
func New(producer Producer, topic string, logger *slog.Logger, m *metrics.Metrics) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
		metrics:  m,
	}
}

// Publish serializes and appends one event. Serialization and transport
// errors are swallowed after logging.
func (p *Publisher) Publish(ctx context.Context, e *event.UserEvent) {
	value, err := event.Encode(e)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to serialize event, dropping",
			"event_type", e.EventType,
			"error", err,
		)
		p.metrics.EventPublishFailures.Inc()
		return
	}

	headers := map[string]string{event.TypeHeader: event.EnvelopeType}
	if err := p.producer.Produce(ctx, p.topic, e.Key(), value, headers); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish event, dropping",
			"event_type", e.EventType,
			"topic", p.topic,
			"error", err,
		)
		p.metrics.EventPublishFailures.Inc()
		return
	}

	p.metrics.EventsPublished.WithLabelValues(string(e.EventType)).Inc()
	p.logger.DebugContext(ctx, "published event",
		"event_type", e.EventType,
		"topic", p.topic,
	)
}
