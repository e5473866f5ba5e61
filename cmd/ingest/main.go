package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/forecast-point-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/forecast-point-service/internal/adapter/kafka"
	"github.com/couchcryptid/forecast-point-service/internal/config"
	"github.com/couchcryptid/forecast-point-service/internal/ingest"
	"github.com/couchcryptid/forecast-point-service/internal/observability"
	"github.com/couchcryptid/forecast-point-service/internal/query"
	"github.com/couchcryptid/forecast-point-service/internal/registry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.UpstreamURL == "" {
		slog.Error("UPSTREAM_URL is required for the ingest daemon")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	reg, err := registry.Load(cfg, logger)
	if err != nil {
		logger.Error("failed to load model registry", "error", err)
		os.Exit(1)
	}
	defer reg.Cache.Close()

	// Publish run events when Kafka is configured.
	var publisher ingest.RunPublisher
	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger)
		publisher = kafkaWriter
		logger.Info("run event publishing enabled", "topic", cfg.KafkaTopic)
	} else {
		logger.Info("run event publishing disabled")
	}

	source := ingest.NewHTTPSource(cfg.UpstreamURL, cfg.UpstreamTimeout, logger)
	pipeline := ingest.New(reg, source, publisher, logger, metrics)

	// The ingest daemon serves health and metrics on the same surface as
	// the API, minus the forecast route's traffic.
	svc := query.New(reg, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, pipeline, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	sched := ingest.NewScheduler(pipeline, cfg.IngestInterval, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start ingest scheduler", "error", err)
		os.Exit(1)
	}

	// First cycle immediately so fresh deployments serve data without
	// waiting out the interval.
	go func() {
		if err := pipeline.Cycle(ctx); err != nil {
			logger.Error("initial ingest cycle failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
