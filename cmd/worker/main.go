package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"promptfusion/internal/bootstrap"
	"promptfusion/internal/infra"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cfg.QueueDriver {
	case "memory", "none":
		logger.Fatal().Str("queue", cfg.QueueDriver).Msg("worker: a standalone worker needs QUEUE_DRIVER=pgmq")
	}

	backend, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to open backend")
	}
	defer backend.Close()

	runner, err := backend.Runner(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to build pipeline")
	}

	logger.Info().
		Int("concurrency", cfg.WorkerConcurrency).
		Int("rate_limit", cfg.WorkerRateLimit).
		Dur("rate_window", cfg.WorkerRateWindow).
		Str("textgen", cfg.TextGenProvider).
		Msg("worker: pipeline ready")
	if err := backend.Pool(runner).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker: stopped with error")
		return
	}
	logger.Info().Msg("worker: stopped")
}
