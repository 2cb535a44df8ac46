// Command userd runs the identity-owning service: registration, login, user
// management, and user event publication to the durable log.
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

	"chronicle/internal/event/publisher"
	"chronicle/internal/platform/config"
	"chronicle/internal/platform/httpserver"
	"chronicle/internal/platform/kafka/producer"
	"chronicle/internal/platform/logger"
	"chronicle/internal/platform/metrics"
	"chronicle/internal/token"
	userhandler "chronicle/internal/user/handler"
	userservice "chronicle/internal/user/service"
	userstore "chronicle/internal/user/store"
)

func main() {
	cfg := config.UserServiceFromEnv()
	log := logger.New("userd")

	codec, err := token.NewCodec(cfg.JWTSigningKey, cfg.TokenTTL)
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := userstore.EnsureSchema(ctx, db); err != nil {
		cancel()
		log.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	cancel()

	kafkaProducer, err := producer.New(cfg.Kafka.Brokers, log)
	if err != nil {
		log.Error("failed to create kafka producer", "error", err)
		os.Exit(1)
	}
	defer kafkaProducer.Close()

	m := metrics.New()
	events := publisher.New(kafkaProducer, cfg.Kafka.EventTopic, log, m)
	users := userservice.New(userstore.NewPostgres(db), events, codec, log)

	router := chi.NewRouter()
	userhandler.New(users, codec, log).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting userd",
		"addr", cfg.Addr,
		"event_topic", cfg.Kafka.EventTopic,
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("userd stopped")
}
