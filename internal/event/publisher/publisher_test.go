package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/internal/event"
	"chronicle/internal/platform/metrics"
)

type fakeProducer struct {
	topic   string
	key     []byte
	value   []byte
	headers map[string]string
	calls   int
	err     error
}

func (f *fakeProducer) Produce(_ context.Context, topic string, key, value []byte, headers map[string]string) error {
	f.calls++
	f.topic = topic
	f.key = key
	f.value = value
	f.headers = headers
	return f.err
}

func newTestPublisher(producer *fakeProducer) *Publisher {
	logger := slog.New(slog.DiscardHandler)
	m := metrics.NewWith(prometheus.NewRegistry())
	return New(producer, "user-events", logger, m)
}

func int64Ptr(v int64) *int64 { return &v }
func strPtr(s string) *string { return &s }

func TestPublish_KeyedByUserID(t *testing.T) {
	producer := &fakeProducer{}
	pub := newTestPublisher(producer)

	pub.Publish(context.Background(), &event.UserEvent{
		EventType: event.TypeUserCreated,
		UserID:    int64Ptr(42),
		Username:  strPtr("alice"),
		Timestamp: time.Now(),
		Details:   map[string]any{"email": "a@x.com"},
	})

	require.Equal(t, 1, producer.calls)
	assert.Equal(t, "user-events", producer.topic)
	assert.Equal(t, []byte("42"), producer.key)
	assert.Equal(t, event.EnvelopeType, producer.headers[event.TypeHeader])

	var decoded event.UserEvent
	require.NoError(t, json.Unmarshal(producer.value, &decoded))
	assert.Equal(t, event.TypeUserCreated, decoded.EventType)
	assert.Equal(t, "a@x.com", decoded.Details["email"])
}

func TestPublish_NilUserIDHasNoKey(t *testing.T) {
	producer := &fakeProducer{}
	pub := newTestPublisher(producer)

	pub.Publish(context.Background(), &event.UserEvent{
		EventType: event.TypeUserDeleted,
		Timestamp: time.Now(),
	})

	require.Equal(t, 1, producer.calls)
	assert.Nil(t, producer.key)
}

func TestPublish_TransportErrorIsSwallowed(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker unreachable")}
	pub := newTestPublisher(producer)

	// Must not panic and must not propagate: publish is fire-and-forget.
	pub.Publish(context.Background(), &event.UserEvent{
		EventType: event.TypeUserUpdated,
		UserID:    int64Ptr(7),
		Timestamp: time.Now(),
	})

	assert.Equal(t, 1, producer.calls)
}

func TestPublish_MissingEventTypeIsDropped(t *testing.T) {
	producer := &fakeProducer{}
	pub := newTestPublisher(producer)

	pub.Publish(context.Background(), &event.UserEvent{Timestamp: time.Now()})

	assert.Zero(t, producer.calls, "invalid events must not reach the log")
}
