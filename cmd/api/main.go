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
	"github.com/couchcryptid/forecast-point-service/internal/config"
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

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	reg, err := registry.Load(cfg, logger)
	if err != nil {
		logger.Error("failed to load model registry", "error", err)
		os.Exit(1)
	}
	defer reg.Cache.Close()

	svc := query.New(reg, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, reg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
