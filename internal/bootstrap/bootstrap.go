// Package bootstrap turns infra.Config into the running pieces shared by the
// binaries: the repository bundle, the ledger, the queue and the pipeline.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"promptfusion/internal/adapter/memstore"
	"promptfusion/internal/adapter/repo"
	"promptfusion/internal/domain"
	"promptfusion/internal/infra"
	"promptfusion/internal/infra/credentials"
	"promptfusion/internal/jobs"
	"promptfusion/internal/ledger"
	"promptfusion/internal/pipeline"
	"promptfusion/internal/providers/image"
	"promptfusion/internal/providers/textgen"
	"promptfusion/internal/queue"
	"promptfusion/internal/storage"
	"promptfusion/internal/worker"
)

// Backend is the state every binary needs.
type Backend struct {
	Config  *infra.Config
	Store   domain.Store
	Credits *ledger.Ledger
	Queue   queue.Queue
	// Creds is nil when running on the memory store.
	Creds *credentials.Store

	logger  zerolog.Logger
	pool    *pgxpool.Pool
	queueDB *sql.DB
}

// Open connects the store and the queue selected by cfg.
func Open(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Backend, error) {
	b := &Backend{Config: cfg, logger: logger}

	switch cfg.StoreDriver {
	case "memory":
		b.Store = memstore.New().Store()
		logger.Warn().Msg("bootstrap: using in-memory store, data is lost on exit")
	default:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.pool = pool
		runner := infra.NewSQLRunner(pool, logger)
		b.Store = repo.NewStore(runner)
		b.Creds = credentials.NewStore(runner)
	}

	b.Credits = ledger.New(b.Store.Ledger, b.Store.Users,
		ledger.WithLogger(logger),
		ledger.WithSignupGrant(cfg.SignupGrant),
		ledger.WithSessionAllowance(cfg.SessionReloadCredits),
	)

	q, err := b.openQueue(ctx)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Queue = q
	return b, nil
}

func (b *Backend) openQueue(ctx context.Context) (queue.Queue, error) {
	cfg := b.Config
	visibility := time.Duration(cfg.QueueVisibilitySec) * time.Second
	poll := time.Duration(cfg.QueuePollSec) * time.Second
	switch cfg.QueueDriver {
	case "none":
		b.logger.Warn().Msg("bootstrap: queue disabled, submitted jobs stay QUEUED")
		return queue.Offline{}, nil
	case "memory":
		return queue.NewMemory(visibility, poll), nil
	default:
		db, err := infra.NewQueueDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.queueDB = db
		q := queue.NewPGMQ(db, queue.PGMQOptions{
			Queue:      cfg.QueueName,
			DeadLetter: cfg.QueueDLQName,
			Visibility: visibility,
			Poll:       poll,
		})
		if err := q.Ensure(ctx); err != nil {
			return nil, err
		}
		return q, nil
	}
}

// Ping checks the database connections, if any.
func (b *Backend) Ping(ctx context.Context) error {
	if b.pool != nil {
		if err := b.pool.Ping(ctx); err != nil {
			return fmt.Errorf("store: %w", err)
		}
	}
	if b.queueDB != nil {
		if err := b.queueDB.PingContext(ctx); err != nil {
			return fmt.Errorf("queue: %w", err)
		}
	}
	return nil
}

func (b *Backend) Close() {
	if b.queueDB != nil {
		_ = b.queueDB.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

// Jobs builds the submission service.
func (b *Backend) Jobs() *jobs.Service {
	return jobs.NewService(b.Store, b.Credits, b.Queue,
		jobs.WithLogger(b.logger),
		jobs.WithProviders(b.Config.Providers),
	)
}

// Runner builds the pipeline with adapters and text models resolved from the
// environment first and the credential store second.
func (b *Backend) Runner(ctx context.Context) (*pipeline.Runner, error) {
	cfg := b.Config
	resolve := func(name, env string) (string, error) {
		return b.Creds.Resolve(ctx, name, env)
	}

	creds := image.Credentials{
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		GeminiModel:      cfg.GeminiModel,
		FluxBaseURL:      cfg.FluxBaseURL,
		FluxPollInterval: cfg.FluxPollInterval,
		FluxPollAttempts: cfg.FluxPollAttempts,
		IdeogramBaseURL:  cfg.IdeogramBaseURL,
	}
	for _, k := range []struct {
		name string
		env  string
		dst  *string
	}{
		{credentials.OpenAI, cfg.OpenAIAPIKey, &creds.OpenAIKey},
		{credentials.Gemini, cfg.GeminiAPIKey, &creds.GeminiKey},
		{credentials.Flux, cfg.FluxAPIKey, &creds.FluxKey},
		{credentials.Ideogram, cfg.IdeogramAPIKey, &creds.IdeogramKey},
	} {
		v, err := resolve(k.name, k.env)
		if err != nil {
			return nil, err
		}
		*k.dst = v
	}

	registry, err := image.Build(ctx, cfg.Providers, creds, b.logger)
	if err != nil {
		return nil, err
	}
	blobs, err := b.blobStore(ctx)
	if err != nil {
		return nil, err
	}
	fanout := pipeline.NewFanOut(b.Store, b.Credits, registry, image.NewMaterializer(blobs), pipeline.FanOutConfig{
		Timeout:     cfg.ProviderTimeout,
		Concurrency: cfg.FanOutConcurrency,
		Logger:      b.logger,
	})

	synth, grader, err := b.textStages(resolve)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(b.Store, b.Credits, synth, grader, fanout,
		pipeline.WithRunnerLogger(b.logger),
		pipeline.WithGradingIterations(cfg.WorkerGradingIterations),
		pipeline.WithProviders(cfg.Providers),
	), nil
}

func (b *Backend) textStages(resolve func(name, env string) (string, error)) (pipeline.Synthesizer, pipeline.Grader, error) {
	cfg := b.Config
	var gen textgen.Generator
	switch cfg.TextGenProvider {
	case "anthropic":
		key, err := resolve(credentials.Anthropic, cfg.AnthropicAPIKey)
		if err != nil {
			return nil, nil, err
		}
		if key != "" {
			gen = textgen.NewAnthropic(key, cfg.AnthropicModel)
		}
	case "openai":
		key, err := resolve(credentials.OpenAI, cfg.OpenAIAPIKey)
		if err != nil {
			return nil, nil, err
		}
		if key != "" {
			gen = textgen.NewOpenAI(key, cfg.OpenAIBaseURL, cfg.OpenAITextModel)
		}
	case "local":
	default:
		return nil, nil, fmt.Errorf("unsupported TEXTGEN_PROVIDER %q", cfg.TextGenProvider)
	}
	if gen == nil {
		if cfg.TextGenProvider != "local" {
			b.logger.Warn().Str("textgen", cfg.TextGenProvider).Msg("bootstrap: text model key missing, using local synthesis and grading")
		}
		return pipeline.NewLocalSynthesizer(b.logger), pipeline.LocalGrader{}, nil
	}
	return pipeline.NewModelSynthesizer(gen, b.logger), pipeline.NewModelGrader(gen, b.logger), nil
}

func (b *Backend) blobStore(ctx context.Context) (storage.BlobStore, error) {
	cfg := b.Config
	switch cfg.BlobDriver {
	case "filesystem":
		return storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	case "inline", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported BLOB_DRIVER %q", cfg.BlobDriver)
	}
}

// Pool builds the worker pool around runner.
func (b *Backend) Pool(runner *pipeline.Runner) *worker.Pool {
	cfg := b.Config
	return worker.NewPool(b.Queue, runner, worker.Config{
		Concurrency:   cfg.WorkerConcurrency,
		RateLimit:     cfg.WorkerRateLimit,
		RateWindow:    cfg.WorkerRateWindow,
		MaxDeliveries: cfg.WorkerMaxDeliveries,
		RetryDelay:    time.Duration(cfg.QueueVisibilitySec) * time.Second / 10,
		Logger:        b.logger,
	})
}
