package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"promptfusion/internal/domain"
	"promptfusion/internal/ledger"
	"promptfusion/internal/providers/image"
)

const defaultProviderTimeout = 5 * time.Minute

// FanOutConfig bounds the fan-out stage.
type FanOutConfig struct {
	// Timeout applies to each provider call, polling included.
	Timeout time.Duration
	// Concurrency caps simultaneous provider calls; 0 runs all at once.
	Concurrency int
	Logger      zerolog.Logger
}

// FanOut runs every requested provider for a job and records each attempt as
// a ModelRun. Provider failures stay inside their run.
type FanOut struct {
	store        domain.Store
	credits      *ledger.Ledger
	registry     *image.Registry
	materializer *image.Materializer
	timeout      time.Duration
	limit        int
	logger       zerolog.Logger
}

func NewFanOut(store domain.Store, credits *ledger.Ledger, registry *image.Registry, materializer *image.Materializer, cfg FanOutConfig) *FanOut {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProviderTimeout
	}
	return &FanOut{
		store:        store,
		credits:      credits,
		registry:     registry,
		materializer: materializer,
		timeout:      cfg.Timeout,
		limit:        cfg.Concurrency,
		logger:       cfg.Logger,
	}
}

// FanOutInput is the graded master prompt and its per-provider variants.
type FanOutInput struct {
	Job       *domain.Job
	Providers []domain.Provider
	Master    *domain.Prompt
	Variants  map[domain.Provider]string
}

// FanOutResult lists the finished runs in provider order.
type FanOutResult struct {
	Runs    []domain.ModelRun
	Charged int
}

// Run dispatches all providers concurrently and waits for every one of them.
// Providers that already have a run for this job, from an earlier delivery,
// are not created twice: finished runs are kept as they are and unfinished
// ones are attempted again. It only returns an error when a run could not be
// recorded.
func (f *FanOut) Run(ctx context.Context, in FanOutInput) (FanOutResult, error) {
	size := in.Job.AspectRatio
	if size == "" {
		size = domain.DefaultAspectRatio
	}
	recorded, err := f.store.Runs.ListByJob(ctx, in.Job.ID)
	if err != nil {
		return FanOutResult{}, domain.Persist("runs.list", err)
	}
	prior := make(map[domain.Provider]domain.ModelRun, len(recorded))
	for _, run := range recorded {
		prior[run.Provider] = run
	}

	runs := make([]domain.ModelRun, len(in.Providers))
	var g errgroup.Group
	if f.limit > 0 {
		g.SetLimit(f.limit)
	}
	for i, p := range in.Providers {
		var earlier *domain.ModelRun
		if run, ok := prior[p]; ok {
			earlier = &run
		}
		g.Go(func() error {
			run, err := f.runProvider(ctx, in, p, size, earlier)
			if run != nil {
				runs[i] = *run
			}
			return err
		})
	}
	err = g.Wait()

	var res FanOutResult
	for _, run := range runs {
		if run.ID == "" {
			continue
		}
		res.Runs = append(res.Runs, run)
		if run.Status == domain.RunStatusSucceeded {
			res.Charged += run.CostCredits
		}
	}
	return res, err
}

func (f *FanOut) runProvider(ctx context.Context, in FanOutInput, p domain.Provider, size string, earlier *domain.ModelRun) (*domain.ModelRun, error) {
	job := in.Job
	log := f.logger.With().Str("job_id", job.ID).Str("provider", p.String()).Logger()

	if earlier != nil && earlier.Status != domain.RunStatusRunning {
		run := earlier
		if run.Status == domain.RunStatusSucceeded {
			// The charge is idempotent per run; this covers a run whose
			// outputs were stored before the charge could be written.
			if err := f.charge(ctx, job, run); err != nil {
				return run, err
			}
		}
		log.Debug().Str("run_id", run.ID).Str("status", string(run.Status)).Msg("fanout: run already finished")
		return run, nil
	}

	run, text, err := f.start(ctx, in, p, earlier)
	if err != nil {
		return nil, err
	}
	log = log.With().Str("run_id", run.ID).Logger()

	started := time.Now()
	images, err := f.generate(ctx, job.ID, p, text, size)
	if err != nil {
		perr := &domain.ProviderError{Provider: p, Err: err}
		log.Warn().Err(err).Dur("elapsed", time.Since(started)).Bool("timeout", errors.Is(err, image.ErrPollTimeout) || errors.Is(err, context.DeadlineExceeded)).Msg("fanout: provider failed")
		if ferr := f.store.Runs.Fail(ctx, run.ID, perr.Error()); ferr != nil {
			return run, domain.Persist("runs.fail", ferr)
		}
		run.Status = domain.RunStatusFailed
		run.Error = perr.Error()
		return run, nil
	}

	outputs := make([]domain.ImageOutput, 0, len(images))
	for _, img := range images {
		outputs = append(outputs, toOutput(img, size))
	}
	if err := f.store.Runs.Succeed(ctx, run.ID, outputs); err != nil {
		return run, domain.Persist("runs.succeed", err)
	}
	run.Status = domain.RunStatusSucceeded
	run.Outputs = outputs
	if err := f.charge(ctx, job, run); err != nil {
		return run, err
	}
	log.Info().Int("images", len(outputs)).Int("cost", p.Cost()).Dur("elapsed", time.Since(started)).Msg("fanout: provider succeeded")
	return run, nil
}

// start records the provider prompt and a RUNNING run, or reuses the prompt
// of a run left unfinished by an earlier delivery.
func (f *FanOut) start(ctx context.Context, in FanOutInput, p domain.Provider, earlier *domain.ModelRun) (*domain.ModelRun, string, error) {
	if earlier != nil {
		prompt, err := f.store.Prompts.GetByID(ctx, earlier.PromptID)
		if err != nil {
			return nil, "", domain.Persist("prompts.get", err)
		}
		f.logger.Info().Str("job_id", in.Job.ID).Str("run_id", earlier.ID).Str("provider", p.String()).Msg("fanout: retrying unfinished run")
		return earlier, prompt.Text, nil
	}

	text := strings.TrimSpace(in.Variants[p])
	if text == "" {
		text = in.Master.Text
	}
	prompt := &domain.Prompt{
		JobID:    in.Job.ID,
		Kind:     domain.PromptKindProvider,
		Provider: p,
		Text:     text,
		Negative: in.Master.Negative,
		Style:    map[string]any{"provider": p.String(), "optimized": text != in.Master.Text},
	}
	if err := f.store.Prompts.Create(ctx, prompt); err != nil {
		return nil, "", domain.Persist("prompts.create", err)
	}
	run := &domain.ModelRun{
		JobID:       in.Job.ID,
		PromptID:    prompt.ID,
		Provider:    p,
		CostCredits: p.Cost(),
	}
	if err := f.store.Runs.Create(ctx, run); err != nil {
		return nil, "", domain.Persist("runs.create", err)
	}
	return run, text, nil
}

func (f *FanOut) charge(ctx context.Context, job *domain.Job, run *domain.ModelRun) error {
	if _, err := f.credits.Charge(ctx, ledger.Charge{
		UserID: job.UserID,
		Amount: run.CostCredits,
		Reason: ledger.ProviderReason(run.Provider),
		JobID:  job.ID,
		RunID:  run.ID,
	}); err != nil {
		return domain.Persist("ledger.charge", err)
	}
	return nil
}

// generate calls the adapter under the per-provider timeout and gives every
// image a durable URL. Adapter panics become errors.
func (f *FanOut) generate(ctx context.Context, jobID string, p domain.Provider, prompt, size string) (images []image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			images, err = nil, fmt.Errorf("adapter panic: %v", r)
		}
	}()
	adapter, err := f.registry.Adapter(p)
	if err != nil {
		return nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	images, err = adapter.Generate(callCtx, prompt, size)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, errors.New("no images returned")
	}
	return f.materializer.Materialize(callCtx, fmt.Sprintf("jobs/%s/%s", jobID, strings.ToLower(p.String())), images)
}

func toOutput(img image.Image, size string) domain.ImageOutput {
	out := domain.ImageOutput{
		URL:      img.URL,
		Width:    img.Width,
		Height:   img.Height,
		Seed:     img.Seed,
		Metadata: img.Metadata,
	}
	if out.Width == 0 || out.Height == 0 {
		if s, err := domain.ParseSize(size); err == nil {
			out.Width, out.Height = s.Width, s.Height
		}
	}
	return out
}
