// Package pipeline drives a claimed job through synthesis, grading and
// provider fan-out to a terminal status.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"promptfusion/internal/domain"
	"promptfusion/internal/ledger"
)

// WorkerGradingIterations is the refinement cap used for queued jobs.
const WorkerGradingIterations = 3

// Runner owns the per-job state machine.
type Runner struct {
	store      domain.Store
	credits    *ledger.Ledger
	synth      Synthesizer
	grader     Grader
	fanout     *FanOut
	providers  []domain.Provider
	iterations int
	logger     zerolog.Logger
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

func WithRunnerLogger(l zerolog.Logger) RunnerOption { return func(r *Runner) { r.logger = l } }

// WithGradingIterations caps the refinement loop.
func WithGradingIterations(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.iterations = n
		}
	}
}

// WithProviders sets the providers used by jobs that did not select any.
func WithProviders(ps []domain.Provider) RunnerOption {
	return func(r *Runner) {
		if len(ps) > 0 {
			r.providers = append([]domain.Provider(nil), ps...)
		}
	}
}

func NewRunner(store domain.Store, credits *ledger.Ledger, synth Synthesizer, grader Grader, fanout *FanOut, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:      store,
		credits:    credits,
		synth:      synth,
		grader:     grader,
		fanout:     fanout,
		providers:  domain.AllProviders(),
		iterations: WorkerGradingIterations,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var errCanceled = errors.New("job canceled")

// Process claims jobID and runs it to a terminal status, which it returns.
// Stage failures end the job as FAILED and are not returned. The error is
// ErrInvalidState when the job was not QUEUED, or a PersistenceError when a
// step could not be recorded; the job then keeps its last durable status.
func (r *Runner) Process(ctx context.Context, jobID string) (domain.JobStatus, error) {
	job, err := r.store.Jobs.Claim(ctx, jobID)
	if err != nil {
		return "", domain.Persist("jobs.claim", err)
	}
	log := r.logger.With().Str("job_id", job.ID).Str("user_id", job.UserID).Logger()
	log.Info().Bool("bypass", job.Bypass).Msg("worker: job claimed")
	return r.run(ctx, job, log)
}

// Resume handles a redelivered message. A job left RUNNING by a failed
// delivery continues from what it recorded: an attached graded prompt is
// reused and providers that already have a run are not dispatched again. A
// job that is still QUEUED is claimed as in Process, and a job that reached a
// terminal status before the failure only gets its hold released.
func (r *Runner) Resume(ctx context.Context, jobID string) (domain.JobStatus, error) {
	job, err := r.store.Jobs.Resume(ctx, jobID)
	if errors.Is(err, domain.ErrInvalidState) {
		return r.settle(ctx, jobID)
	}
	if err != nil {
		return "", domain.Persist("jobs.resume", err)
	}
	log := r.logger.With().Str("job_id", job.ID).Str("user_id", job.UserID).Logger()
	log.Warn().Bool("graded", job.GradedPromptID != "").Msg("worker: resuming job after failed delivery")
	return r.run(ctx, job, log)
}

func (r *Runner) settle(ctx context.Context, jobID string) (domain.JobStatus, error) {
	job, err := r.store.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return "", domain.Persist("jobs.get", err)
	}
	if !job.Status.Terminal() {
		return r.Process(ctx, jobID)
	}
	if _, err := r.credits.Release(ctx, job); err != nil {
		return job.Status, domain.Persist("ledger.release", err)
	}
	r.logger.Info().Str("job_id", job.ID).Str("status", string(job.Status)).Msg("worker: redelivered job already finished")
	return job.Status, nil
}

func (r *Runner) run(ctx context.Context, job *domain.Job, log zerolog.Logger) (domain.JobStatus, error) {
	status, err := r.drive(ctx, job, log)
	switch {
	case errors.Is(err, errCanceled):
		log.Info().Msg("worker: job canceled, stopping before next stage")
		status = domain.JobStatusCanceled
	case err != nil:
		var stage *domain.StageError
		if !errors.As(err, &stage) {
			return domain.JobStatusRunning, err
		}
		log.Error().Err(err).Msg("worker: stage failed")
		if status, err = r.finish(ctx, job, domain.JobStatusFailed, stage.Error(), log); err != nil {
			return domain.JobStatusRunning, err
		}
	}

	if _, err := r.credits.Release(ctx, job); err != nil {
		return status, domain.Persist("ledger.release", err)
	}
	log.Info().Str("status", string(status)).Msg("worker: job finished")
	return status, nil
}

func (r *Runner) drive(ctx context.Context, job *domain.Job, log zerolog.Logger) (domain.JobStatus, error) {
	providers := job.Providers
	if len(providers) == 0 {
		providers = r.providers
	}

	var (
		graded   *domain.Prompt
		variants map[domain.Provider]string
		err      error
	)
	switch {
	case job.GradedPromptID != "":
		graded, err = r.store.Prompts.GetByID(ctx, job.GradedPromptID)
		if err != nil {
			return "", domain.Persist("prompts.get", err)
		}
	case job.Bypass:
		graded, variants, err = r.bypass(ctx, job, providers)
	default:
		graded, variants, err = r.synthesizeAndGrade(ctx, job, providers, log)
	}
	if err != nil {
		return "", err
	}

	if err := r.checkCanceled(ctx, job.ID); err != nil {
		return "", err
	}
	res, err := r.fanout.Run(ctx, FanOutInput{Job: job, Providers: providers, Master: graded, Variants: variants})
	if err != nil {
		return "", err
	}
	counts := domain.CountRuns(res.Runs)
	log.Info().Int("succeeded", counts.Succeeded).Int("failed", counts.Failed).Int("charged", res.Charged).Msg("worker: fan-out done")
	return r.finish(ctx, job, domain.Aggregate(res.Runs), "", log)
}

// finish records the terminal status. A job canceled meanwhile stays CANCELED.
func (r *Runner) finish(ctx context.Context, job *domain.Job, status domain.JobStatus, msg string, log zerolog.Logger) (domain.JobStatus, error) {
	ok, err := r.store.Jobs.Finish(ctx, job.ID, status, msg)
	if err != nil {
		return "", domain.Persist("jobs.finish", err)
	}
	if ok {
		return status, nil
	}
	current, err := r.store.Jobs.Status(ctx, job.ID)
	if err != nil {
		return "", domain.Persist("jobs.status", err)
	}
	log.Info().Str("wanted", string(status)).Str("status", string(current)).Msg("worker: job left RUNNING before finish")
	return current, nil
}

func (r *Runner) checkCanceled(ctx context.Context, jobID string) error {
	status, err := r.store.Jobs.Status(ctx, jobID)
	if err != nil {
		return domain.Persist("jobs.status", err)
	}
	if status == domain.JobStatusCanceled {
		return errCanceled
	}
	return nil
}

// bypass stores the user's text as both draft and graded prompt.
func (r *Runner) bypass(ctx context.Context, job *domain.Job, providers []domain.Provider) (*domain.Prompt, map[domain.Provider]string, error) {
	style := map[string]any{"preset": "none", "source": sourceBypass}
	draft := &domain.Prompt{JobID: job.ID, Kind: domain.PromptKindDraft, Text: job.DirectPrompt, Style: style}
	if err := r.store.Prompts.Create(ctx, draft); err != nil {
		return nil, nil, domain.Persist("prompts.create", err)
	}
	if err := r.store.Jobs.AttachDraft(ctx, job.ID, draft.ID); err != nil {
		return nil, nil, domain.Persist("jobs.attach_draft", err)
	}
	graded := &domain.Prompt{JobID: job.ID, Kind: domain.PromptKindGraded, Text: job.DirectPrompt, Style: style}
	if err := r.store.Prompts.Create(ctx, graded); err != nil {
		return nil, nil, domain.Persist("prompts.create", err)
	}
	if err := r.store.Jobs.AttachGrade(ctx, job.ID, graded.ID, nil, "Prompt creation bypassed"); err != nil {
		return nil, nil, domain.Persist("jobs.attach_grade", err)
	}
	variants := make(map[domain.Provider]string, len(providers))
	for _, p := range providers {
		variants[p] = job.DirectPrompt
	}
	return graded, variants, nil
}

func (r *Runner) synthesizeAndGrade(ctx context.Context, job *domain.Job, providers []domain.Provider, log zerolog.Logger) (*domain.Prompt, map[domain.Provider]string, error) {
	in := SynthesisInput{
		Idea:        job.Idea,
		PresetKey:   job.PresetKey,
		AspectRatio: job.AspectRatio,
		MoodTags:    job.MoodTags,
		Providers:   providers,
	}
	syn, err := r.synth.Synthesize(ctx, in)
	if err != nil {
		return nil, nil, &domain.StageError{Stage: domain.StageSynthesis, Err: err}
	}
	draft := &domain.Prompt{
		JobID:    job.ID,
		Kind:     domain.PromptKindDraft,
		Text:     syn.Master,
		Negative: syn.Negatives,
		Style:    syn.Style(in),
	}
	if err := r.store.Prompts.Create(ctx, draft); err != nil {
		return nil, nil, domain.Persist("prompts.create", err)
	}
	if err := r.store.Jobs.AttachDraft(ctx, job.ID, draft.ID); err != nil {
		return nil, nil, domain.Persist("jobs.attach_draft", err)
	}
	if _, err := r.credits.Charge(ctx, ledger.Charge{
		UserID: job.UserID,
		Amount: domain.PromptCreationCost,
		Reason: ledger.ReasonPrompt,
		JobID:  job.ID,
	}); err != nil {
		return nil, nil, domain.Persist("ledger.charge", err)
	}
	log.Debug().Str("source", syn.Source).Str("fallback", syn.Fallback).Msg("worker: prompts synthesized")

	if err := r.checkCanceled(ctx, job.ID); err != nil {
		return nil, nil, err
	}
	ref, err := Refine(ctx, r.grader, syn.Master, job.Idea, r.iterations)
	if err != nil {
		return nil, nil, &domain.StageError{Stage: domain.StageGrading, Err: err}
	}
	rubric := ref.Rubric
	graded := &domain.Prompt{
		JobID:    job.ID,
		Kind:     domain.PromptKindGraded,
		Text:     ref.Prompt,
		Negative: syn.Negatives,
		Style:    draft.Style,
		Rubric:   &rubric,
	}
	if err := r.store.Prompts.Create(ctx, graded); err != nil {
		return nil, nil, domain.Persist("prompts.create", err)
	}
	score := ref.Score
	notes := ref.Notes
	if ref.Score < GradeThreshold {
		notes = fmt.Sprintf("Reached %d/100 after %d iterations. %s", ref.Score, ref.Iterations, ref.Notes)
	}
	if err := r.store.Jobs.AttachGrade(ctx, job.ID, graded.ID, &score, notes); err != nil {
		return nil, nil, domain.Persist("jobs.attach_grade", err)
	}
	log.Info().Int("score", score).Int("iterations", ref.Iterations).Msg("worker: prompt graded")
	return graded, syn.Variants, nil
}
