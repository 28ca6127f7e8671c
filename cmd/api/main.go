package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"promptfusion/internal/bootstrap"
	"promptfusion/internal/http/handlers"
	httpapi "promptfusion/internal/http/httpapi"
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

	backend, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to open backend")
	}
	defer backend.Close()

	app := handlers.NewApp(backend.Jobs(), backend.Credits, logger)
	app.Ready = func(r *http.Request) error { return backend.Ping(r.Context()) }

	opts := httpapi.Options{
		Logger:          logger,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		JWTSecret:       cfg.AuthJWTSecret,
	}
	if cfg.BlobDriver == "filesystem" {
		opts.StaticDir = cfg.StoragePath
	}
	if cfg.AuthJWTSecret == "" {
		logger.Warn().Msg("api: AUTH_JWT_SECRET not set, trusting X-User-ID")
	}
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, opts))

	// The in-memory queue only reaches workers in this process.
	workerDone := make(chan struct{})
	if cfg.QueueDriver == "memory" {
		runner, err := backend.Runner(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: failed to build embedded worker")
		}
		go func() {
			defer close(workerDone)
			if err := backend.Pool(runner).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("api: embedded worker stopped")
			}
		}()
	} else {
		close(workerDone)
	}

	logger.Info().Msgf("API listening on %s", server.Addr())
	if err := server.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("http server failed")
		stop()
	}
	<-workerDone
	logger.Info().Msg("server stopped")
}
