// Package consumer wraps a franz-go consumer group with per-partition
// dispatch and at-least-once commit semantics.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Message is a single record delivered from the durable log.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes one message. Returning nil commits the offset; returning
// an error leaves it uncommitted so the group redelivers after a backoff.
// Handlers for different partitions run concurrently and must not share
// mutable state beyond their store.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Config holds consumer group settings.
type Config struct {
	Brokers []string
	Topic   string
	Group   string
	// ProcessTimeout bounds a single Handle call so a stuck store call
	// cannot stall the partition forever. Zero disables the bound.
	ProcessTimeout time.Duration
	// RetryBackoff is the pause before re-polling after a handler error.
	RetryBackoff time.Duration
}

// Consumer runs a consumer group session, dispatching each partition's batch
// in order to the handler.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	cfg     Config
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New joins the consumer group for the configured topic.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Second
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{
		client:  client,
		handler: handler,
		cfg:     cfg,
		logger:  logger,
		tracer:  otel.Tracer("chronicle/kafka"),
	}, nil
}

// Run polls until the context is cancelled or the client is closed. Each
// partition in a poll is processed by its own goroutine, preserving order
// within the partition and independence across partitions.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var (
			mu        sync.Mutex
			wg        sync.WaitGroup
			processed []*kgo.Record
			rewinds   = make(map[string]map[int32]kgo.EpochOffset)
		)

		fetches.EachPartition(func(ftp kgo.FetchTopicPartition) {
			if len(ftp.Records) == 0 {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				done, failedAt := c.processPartition(ctx, ftp.Records)
				mu.Lock()
				defer mu.Unlock()
				processed = append(processed, done...)
				if failedAt != nil {
					byPartition, ok := rewinds[failedAt.Topic]
					if !ok {
						byPartition = make(map[int32]kgo.EpochOffset)
						rewinds[failedAt.Topic] = byPartition
					}
					byPartition[failedAt.Partition] = kgo.EpochOffset{
						Epoch:  failedAt.LeaderEpoch,
						Offset: failedAt.Offset,
					}
				}
			}()
		})
		wg.Wait()

		if len(processed) > 0 {
			if err := c.client.CommitRecords(ctx, processed...); err != nil {
				// At-least-once: the records will simply be redelivered.
				c.logger.Error("commit failed", "error", err)
			}
		}
		if len(rewinds) > 0 {
			c.client.SetOffsets(rewinds)
			select {
			case <-time.After(c.cfg.RetryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// processPartition handles records in order, stopping at the first failure.
// It returns the successfully handled records and, when a handler errored,
// the record to rewind to.
func (c *Consumer) processPartition(ctx context.Context, records []*kgo.Record) ([]*kgo.Record, *kgo.Record) {
	var done []*kgo.Record
	for _, record := range records {
		if err := c.handle(ctx, record); err != nil {
			c.logger.Error("message processing failed, scheduling redelivery",
				"topic", record.Topic,
				"partition", record.Partition,
				"offset", record.Offset,
				"error", err,
			)
			return done, record
		}
		done = append(done, record)
	}
	return done, nil
}

func (c *Consumer) handle(ctx context.Context, record *kgo.Record) error {
	if c.cfg.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ProcessTimeout)
		defer cancel()
	}

	ctx, span := c.tracer.Start(ctx, "kafka.consume", trace.WithAttributes(
		attribute.String("messaging.destination.name", record.Topic),
		attribute.Int64("messaging.kafka.offset", record.Offset),
		attribute.Int64("messaging.kafka.partition", int64(record.Partition)),
	))
	defer span.End()

	headers := make(map[string]string, len(record.Headers))
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	msg := &Message{
		Topic:     record.Topic,
		Partition: record.Partition,
		Offset:    record.Offset,
		Key:       record.Key,
		Value:     record.Value,
		Headers:   headers,
		Timestamp: record.Timestamp,
	}

	if err := c.handler.Handle(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	c.client.Close()
}
