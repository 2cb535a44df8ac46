// Package consumer turns consumed user events into journal entries. It is
// the journal's only writer.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"chronicle/internal/event"
	"chronicle/internal/journal/models"
	"chronicle/internal/journal/store"
	"chronicle/internal/platform/kafka/consumer"
	"chronicle/internal/platform/metrics"
)

// DeadLetterer routes poison messages to a durable sink so an unprocessable
// message never silently disappears.
type DeadLetterer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Handler appends one journal entry per consumed event.
//
// Failure policy: a payload that cannot be decoded or canonicalized is
// dead-lettered and committed, because redelivering a poison message can
// never succeed. A store failure is returned, leaving the offset uncommitted
// so the consumer group redelivers; under at-least-once this may produce
// duplicate entries, which the journal's contract accepts.
type Handler struct {
	store       store.Store
	deadLetters DeadLetterer
	dlqTopic    string
	logger      *slog.Logger
	metrics     *metrics.Metrics
	clock       func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock overrides the received-timestamp clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(h *Handler) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// New creates the journal writer. deadLetters may be nil, in which case
// poison messages are only logged before being dropped.
func New(s store.Store, deadLetters DeadLetterer, dlqTopic string, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		store:       s,
		deadLetters: deadLetters,
		dlqTopic:    dlqTopic,
		logger:      logger,
		metrics:     m,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle processes a single delivery. Multiple partition workers call this
// concurrently; all shared state lives in the store.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	start := h.clock()
	defer func() {
		h.metrics.ConsumeDuration.Observe(time.Since(start).Seconds())
	}()

	if tag, ok := msg.Headers[event.TypeHeader]; ok && tag != event.EnvelopeType {
		h.logger.ErrorContext(ctx, "unexpected envelope type, dead-lettering",
			"envelope_type", tag,
			"offset", msg.Offset,
		)
		h.metrics.EventsMalformed.Inc()
		h.deadLetter(ctx, msg, fmt.Sprintf("unexpected envelope type %q", tag))
		return nil
	}

	e, err := event.Decode(msg.Value)
	if err != nil {
		// Poison message: never crash the consumer or stall the partition.
		h.logger.ErrorContext(ctx, "failed to decode event, dead-lettering",
			"offset", msg.Offset,
			"partition", msg.Partition,
			"error", err,
		)
		h.metrics.EventsMalformed.Inc()
		h.deadLetter(ctx, msg, err.Error())
		return nil
	}

	var detailsJSON *string
	if e.Details != nil {
		canonical, err := json.Marshal(e.Details)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to canonicalize event details, dead-lettering",
				"event_type", e.EventType,
				"details", fmt.Sprintf("%v", e.Details),
				"error", err,
			)
			h.metrics.EventsMalformed.Inc()
			h.deadLetter(ctx, msg, err.Error())
			return nil
		}
		s := string(canonical)
		detailsJSON = &s
	}

	entry := &models.JournalEntry{
		EventType:         string(e.EventType),
		UserID:            e.UserID,
		Username:          e.Username,
		EventTimestamp:    e.Timestamp,
		DetailsJSON:       detailsJSON,
		ReceivedTimestamp: h.clock(),
	}

	id, err := h.store.Append(ctx, entry)
	if err != nil {
		// Returned for redelivery: a transient store outage must not turn
		// into silent message loss.
		return fmt.Errorf("append journal entry for %s event (user %v): %w", e.EventType, e.UserID, err)
	}

	h.metrics.EventsJournaled.WithLabelValues(string(e.EventType)).Inc()
	h.logger.DebugContext(ctx, "persisted journal entry",
		"entry_id", id,
		"event_type", e.EventType,
	)
	return nil
}

// deadLetter forwards the raw payload with diagnostic headers. Best-effort:
// a sink failure logs at error level and the message is still committed.
func (h *Handler) deadLetter(ctx context.Context, msg *consumer.Message, reason string) {
	if h.deadLetters == nil {
		return
	}
	headers := map[string]string{
		"dlq-event-id":     uuid.NewString(),
		"dlq-error":        reason,
		"dlq-source-topic": msg.Topic,
		"dlq-partition":    strconv.FormatInt(int64(msg.Partition), 10),
		"dlq-offset":       strconv.FormatInt(msg.Offset, 10),
	}
	if err := h.deadLetters.Produce(ctx, h.dlqTopic, msg.Key, msg.Value, headers); err != nil {
		h.logger.ErrorContext(ctx, "failed to dead-letter message",
			"topic", h.dlqTopic,
			"offset", msg.Offset,
			"error", err,
		)
		return
	}
	h.metrics.EventsDeadLettered.Inc()
}
