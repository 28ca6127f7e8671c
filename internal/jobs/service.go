// Package jobs is the submission, query and cancel surface of the pipeline.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"promptfusion/internal/domain"
	"promptfusion/internal/domain/jsoncfg"
	"promptfusion/internal/ledger"
	"promptfusion/internal/queue"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// SubmitRequest is a new generation request from UserID.
type SubmitRequest struct {
	UserID        string            `json:"-" validate:"required"`
	Idea          string            `json:"idea" validate:"max=4000"`
	DirectPrompt  string            `json:"directPrompt" validate:"max=4000"`
	Bypass        bool              `json:"bypassPromptCreation"`
	PresetKey     string            `json:"presetKey" validate:"max=64"`
	AspectRatio   string            `json:"aspectRatio" validate:"max=16"`
	MoodTags      string            `json:"moodTags" validate:"max=500"`
	PresetAnswers map[string]string `json:"presetAnswers" validate:"max=20,dive,max=1000"`
	Providers     []string          `json:"providers" validate:"max=5,dive,max=64"`
}

// Submission is the accepted job with its hold.
type Submission struct {
	Job      *domain.Job `json:"job"`
	Estimate int         `json:"estimatedCost"`
	Balance  int         `json:"creditsBalance"`
	// Enqueued is false when the queue refused the job. The job exists but
	// will not run until it is re-enqueued.
	Enqueued bool `json:"enqueued"`
}

// View is a job with everything it produced so far.
type View struct {
	Job     domain.Job        `json:"job"`
	OwnerID string            `json:"ownerId"`
	Draft   *domain.Prompt    `json:"draftPrompt,omitempty"`
	Graded  *domain.Prompt    `json:"gradedPrompt,omitempty"`
	Prompts []domain.Prompt   `json:"providerPrompts"`
	Runs    []domain.ModelRun `json:"runs"`
	Counts  domain.RunCounts  `json:"counts"`
}

// Service wires the ledger and the queue to job records.
type Service struct {
	store     domain.Store
	credits   *ledger.Ledger
	queue     queue.Queue
	providers []domain.Provider
	validate  *validator.Validate
	logger    zerolog.Logger
}

// Option customizes a Service.
type Option func(*Service)

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithProviders restricts submissions to the configured providers.
func WithProviders(ps []domain.Provider) Option {
	return func(s *Service) {
		if len(ps) > 0 {
			s.providers = append([]domain.Provider(nil), ps...)
		}
	}
}

func NewService(store domain.Store, credits *ledger.Ledger, q queue.Queue, opts ...Option) *Service {
	s := &Service{
		store:     store,
		credits:   credits,
		queue:     q,
		providers: domain.AllProviders(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Providers returns the providers submissions may select.
func (s *Service) Providers() []domain.Provider {
	return append([]domain.Provider(nil), s.providers...)
}

// Estimate is the upfront hold for a job.
func Estimate(bypass bool, providers []domain.Provider) int {
	total := domain.TotalCost(providers)
	if !bypass {
		total += domain.PromptCreationCost
	}
	return total
}

// Submit validates req, reserves the estimated cost, creates the job and
// enqueues it. Queue failures are logged and reported through
// Submission.Enqueued; the job is still returned.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Submission, error) {
	job, err := s.buildJob(req)
	if err != nil {
		return nil, err
	}
	estimate := Estimate(job.Bypass, job.Providers)
	balance, err := s.credits.Reserve(ctx, job, estimate)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			return nil, fmt.Errorf("%w: job needs %d credits", err, estimate)
		}
		return nil, err
	}
	log := s.logger.With().Str("job_id", job.ID).Str("user_id", job.UserID).Logger()
	out := &Submission{Job: job, Estimate: estimate, Balance: balance, Enqueued: true}
	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		out.Enqueued = false
		log.Error().Err(err).Msg("jobs: enqueue failed, job stays QUEUED until an operator re-enqueues it")
		return out, nil
	}
	log.Info().Int("estimate", estimate).Int("providers", len(job.Providers)).Bool("bypass", job.Bypass).Msg("jobs: submitted")
	return out, nil
}

func (s *Service) buildJob(req SubmitRequest) (*domain.Job, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	idea := strings.TrimSpace(req.Idea)
	if idea == "" && len(req.PresetAnswers) > 0 {
		idea = jsoncfg.ComposeIdea(req.PresetAnswers)
	}
	direct := strings.TrimSpace(req.DirectPrompt)
	bypass := req.Bypass || (idea == "" && direct != "")
	switch {
	case bypass && direct == "":
		return nil, fmt.Errorf("%w: directPrompt is required when prompt creation is bypassed", domain.ErrValidation)
	case !bypass && idea == "":
		return nil, fmt.Errorf("%w: idea or directPrompt is required", domain.ErrValidation)
	}

	size, err := domain.ParseSize(req.AspectRatio)
	if err != nil {
		return nil, err
	}
	providers, err := s.selectProviders(req.Providers)
	if err != nil {
		return nil, err
	}
	return &domain.Job{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		Idea:          idea,
		PresetKey:     strings.TrimSpace(req.PresetKey),
		AspectRatio:   size.String(),
		MoodTags:      strings.TrimSpace(req.MoodTags),
		PresetAnswers: req.PresetAnswers,
		Bypass:        bypass,
		DirectPrompt:  direct,
		Providers:     providers,
	}, nil
}

// selectProviders resolves the requested names against the configured set.
// An empty request selects every configured provider.
func (s *Service) selectProviders(names []string) ([]domain.Provider, error) {
	requested, err := domain.ParseProviders(names)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if len(requested) == 0 {
		return append([]domain.Provider(nil), s.providers...), nil
	}
	for _, p := range requested {
		if !containsProvider(s.providers, p) {
			return nil, fmt.Errorf("%w: provider %s is not enabled", domain.ErrValidation, p)
		}
	}
	return requested, nil
}

func containsProvider(ps []domain.Provider, p domain.Provider) bool {
	for _, q := range ps {
		if q == p {
			return true
		}
	}
	return false
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(msgs, "; "))
}

// owned loads a job and checks that userID owns it.
func (s *Service) owned(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, fmt.Errorf("%w: job %q", domain.ErrNotFound, jobID)
	}
	job, err := s.store.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return job, nil
}

// Get returns the job with its prompts, runs and outputs.
func (s *Service) Get(ctx context.Context, userID, jobID string) (*View, error) {
	job, err := s.owned(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	prompts, err := s.store.Prompts.ListByJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	runs, err := s.store.Runs.ListByJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	view := &View{Job: *job, OwnerID: job.UserID, Prompts: []domain.Prompt{}, Runs: runs, Counts: domain.CountRuns(runs)}
	if view.Runs == nil {
		view.Runs = []domain.ModelRun{}
	}
	for i := range prompts {
		p := prompts[i]
		switch {
		case p.ID == job.DraftPromptID:
			view.Draft = &p
		case p.ID == job.GradedPromptID:
			view.Graded = &p
		case p.Kind == domain.PromptKindProvider:
			view.Prompts = append(view.Prompts, p)
		}
	}
	return view, nil
}

// List pages through a user's jobs, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.Jobs.ListByUser(ctx, userID, limit, offset)
}

// Cancel moves a QUEUED or RUNNING job to CANCELED. A job canceled before a
// worker claimed it gets its hold back at once; a running job's hold is
// released by the worker when it stops.
func (s *Service) Cancel(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	job, err := s.owned(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Status.Cancelable() {
		return nil, fmt.Errorf("%w: job is %s", domain.ErrInvalidState, job.Status)
	}
	// A worker may claim the job between the read above and this update, so
	// the hold decision uses the status the update moved from.
	canceled, prior, err := s.store.Jobs.Cancel(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if prior == domain.JobStatusQueued {
		if _, err := s.credits.Release(ctx, canceled); err != nil {
			return nil, err
		}
	}
	s.logger.Info().Str("job_id", job.ID).Str("from", string(prior)).Msg("jobs: canceled")
	return canceled, nil
}

// Requeue enqueues a job again. QUEUED covers jobs submitted while the queue
// was down. A RUNNING job whose message was dead-lettered is put back to
// QUEUED first; the next worker reuses the runs it already recorded. Only
// use it on jobs no worker is processing.
func (s *Service) Requeue(ctx context.Context, jobID string) error {
	status, err := s.store.Jobs.Status(ctx, jobID)
	if err != nil {
		return err
	}
	switch status {
	case domain.JobStatusQueued:
	case domain.JobStatusRunning:
		reset, err := s.store.Jobs.Reset(ctx, jobID)
		if err != nil {
			return err
		}
		if !reset {
			return fmt.Errorf("%w: job left RUNNING during requeue", domain.ErrInvalidState)
		}
		s.logger.Warn().Str("job_id", jobID).Msg("jobs: stale RUNNING job reset to QUEUED")
	default:
		return fmt.Errorf("%w: job is %s", domain.ErrInvalidState, status)
	}
	return s.queue.Enqueue(ctx, jobID)
}
