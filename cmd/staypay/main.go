package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"staypay/internal/app/schedule"
	"staypay/internal/infra/config"
	ginserver "staypay/internal/infra/http/gin"
	"staypay/internal/infra/obs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger(os.Getenv("APP_ENV")).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("application bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.close()

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, app.health, app.handlers)

	var wg sync.WaitGroup
	runBackground(ctx, &wg, logger, "reconciliation sweeper", (&schedule.Sweeper{
		Commands: app.commands,
		Interval: cfg.ReconcileInterval,
		MinAge:   cfg.ReconcileMinAge,
		Batch:    cfg.ReconcileBatch,
		Logger:   logger.With("component", "sweeper"),
	}).Run)
	if app.relay != nil {
		runBackground(ctx, &wg, logger, "outbox relay", app.relay.Run)
	} else {
		logger.Info("outbox relay disabled, KAFKA_BROKERS not set")
	}
	if app.replay != nil {
		topics := []string{cfg.KafkaVerifyTopic}
		runBackground(ctx, &wg, logger, "verification replay consumer", func(ctx context.Context) error {
			return app.replay.Run(ctx, topics)
		})
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver, "gateway", cfg.GatewayMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		stop()
		wg.Wait()
		os.Exit(1)
	}
	wg.Wait()
	logger.Info("HTTP server stopped")
}

func runBackground(ctx context.Context, wg *sync.WaitGroup, logger *slog.Logger, name string, run func(context.Context) error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("background task started", "task", name)
		if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("background task stopped", "task", name, "error", err)
			return
		}
		logger.Info("background task stopped", "task", name)
	}()
}
