package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chronicle/internal/audit"
	kafkasink "chronicle/internal/audit/sink/kafka"
	"chronicle/internal/audit/store/memory"
	pgstore "chronicle/internal/audit/store/postgres"
	"chronicle/internal/platform/config"
	"chronicle/internal/platform/httpserver"
	"chronicle/internal/platform/logger"
	"chronicle/internal/platform/metrics"
	"chronicle/internal/platform/middleware/auth"
	platformredis "chronicle/internal/platform/redis"
	httptransport "chronicle/internal/transport/http"
)

// main wires dependencies and keeps the server lifecycle small. Shutdown
// flushes the pending audit batch before the process exits so accepted
// entries are not lost.
func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)
	m := metrics.New()

	store, cleanup, err := openStore(cfg, log)
	if err != nil {
		log.Error("open record store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	opts := []audit.Option{
		audit.WithLogger(log),
		audit.WithMetrics(m),
		audit.WithConfig(audit.Config{
			BatchSize:     cfg.Batch.BatchSize,
			BatchInterval: cfg.Batch.BatchInterval,
			ChunkSize:     cfg.Batch.ChunkSize,
			ChunkPause:    cfg.Batch.ChunkPause,
			WriteTimeout:  cfg.Batch.WriteTimeout,
			MaxRetries:    cfg.Batch.MaxRetries,
		}),
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		opts = append(opts, audit.WithCache(platformredis.NewCache(redisClient, "chronicle")))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := kafkasink.New(cfg.Kafka.Brokers, cfg.Kafka.Topic,
			kafkasink.WithLogger(log),
			kafkasink.WithMetrics(m),
		)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		opts = append(opts, audit.WithSink(sink))
	}

	svc, err := audit.New(store, opts...)
	if err != nil {
		log.Error("build audit service", "error", err)
		os.Exit(1)
	}

	handler := httptransport.NewHandler(svc, log)
	router := httptransport.NewRouter(handler, auth.NewHMACValidator(cfg.JWTSigningKey))
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting chronicle", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	// Final flush: entries accepted on the deferred path must reach the
	// store before exit.
	if err := svc.Close(); err != nil {
		log.Error("audit service close failed", "error", err)
	}
}

func openStore(cfg config.Config, log *slog.Logger) (audit.Store, func(), error) {
	if cfg.PostgresDSN == "" {
		log.Warn("no postgres DSN configured, using in-memory record store")
		return memory.NewStore(), func() {}, nil
	}
	store, err := pgstore.Open(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := store.EnsureSchema(context.Background()); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}
