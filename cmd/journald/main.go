// Command journald runs the journal service: it consumes user events from
// the durable log, appends them to the journal, and serves the admin-only
// read API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	journalconsumer "chronicle/internal/journal/consumer"
	journalhandler "chronicle/internal/journal/handler"
	journalservice "chronicle/internal/journal/service"
	journalstore "chronicle/internal/journal/store"
	"chronicle/internal/platform/config"
	"chronicle/internal/platform/httpserver"
	"chronicle/internal/platform/kafka/consumer"
	"chronicle/internal/platform/kafka/producer"
	"chronicle/internal/platform/logger"
	"chronicle/internal/platform/metrics"
	"chronicle/internal/token"
)

func main() {
	cfg := config.JournalFromEnv()
	log := logger.New("journald")

	codec, err := token.NewCodec(cfg.JWTSigningKey, time.Hour)
	if err != nil {
		log.Error("invalid token configuration", "error", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	setupCtx, setupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := journalstore.EnsureSchema(setupCtx, db); err != nil {
		setupCancel()
		log.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	setupCancel()

	// The producer here only serves the dead-letter topic.
	deadLetters, err := producer.New(cfg.Kafka.Brokers, log)
	if err != nil {
		log.Error("failed to create kafka producer", "error", err)
		os.Exit(1)
	}
	defer deadLetters.Close()

	m := metrics.New()
	store := journalstore.NewPostgres(db)
	handler := journalconsumer.New(store, deadLetters, cfg.Kafka.DeadLetterTopic, log, m)

	kafkaConsumer, err := consumer.New(consumer.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.EventTopic,
		Group:          cfg.Kafka.ConsumerGroup,
		ProcessTimeout: cfg.ProcessTimeout,
	}, handler, log)
	if err != nil {
		log.Error("failed to create kafka consumer", "error", err)
		os.Exit(1)
	}
	defer kafkaConsumer.Close()

	router := chi.NewRouter()
	journalhandler.New(journalservice.New(store), codec, log).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting journald",
		"addr", cfg.Addr,
		"event_topic", cfg.Kafka.EventTopic,
		"consumer_group", cfg.Kafka.ConsumerGroup,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return kafkaConsumer.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("journald exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("journald stopped")
}
