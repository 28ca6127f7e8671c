package domain

import "context"

// UserRepository defines access methods for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	SetTier(ctx context.Context, id string, tier Tier) error
}

// JobRepository defines persistence for jobs. Job rows are inserted by
// LedgerRepository.Reserve so that creation and the credit hold are atomic.
type JobRepository interface {
	GetByID(ctx context.Context, id string) (*Job, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Job, error)
	Status(ctx context.Context, id string) (JobStatus, error)
	// Claim moves a QUEUED job to RUNNING and returns ErrInvalidState otherwise.
	Claim(ctx context.Context, id string) (*Job, error)
	// Resume returns a job that is already RUNNING so a redelivered message
	// can finish it, and ErrInvalidState otherwise.
	Resume(ctx context.Context, id string) (*Job, error)
	// Reset puts a RUNNING job back to QUEUED. It reports false when the job
	// was not RUNNING.
	Reset(ctx context.Context, id string) (bool, error)
	AttachDraft(ctx context.Context, id, promptID string) error
	// AttachGrade records the graded prompt. score is nil when grading was skipped.
	AttachGrade(ctx context.Context, id, promptID string, score *int, notes string) error
	// Finish moves a RUNNING job to a terminal status. It reports false when
	// the job had already left RUNNING (for example after a cancel).
	Finish(ctx context.Context, id string, status JobStatus, errMsg string) (bool, error)
	// Cancel moves a QUEUED or RUNNING job to CANCELED and also returns the
	// status it moved from.
	Cancel(ctx context.Context, id string) (*Job, JobStatus, error)
}

// PromptRepository persists immutable prompt snapshots.
type PromptRepository interface {
	Create(ctx context.Context, prompt *Prompt) error
	GetByID(ctx context.Context, id string) (*Prompt, error)
	ListByJob(ctx context.Context, jobID string) ([]Prompt, error)
}

// RunRepository persists model runs and their outputs.
type RunRepository interface {
	Create(ctx context.Context, run *ModelRun) error
	// Succeed stores outputs and marks the run SUCCEEDED in one step.
	Succeed(ctx context.Context, runID string, outputs []ImageOutput) error
	Fail(ctx context.Context, runID, message string) error
	ListByJob(ctx context.Context, jobID string) ([]ModelRun, error)
}

// LedgerRepository applies balance changes atomically with their ledger rows.
type LedgerRepository interface {
	// Reserve decrements the balance by amount when it is sufficient, writes
	// the RESERVE event and inserts the job. It returns ErrInsufficientCredits
	// and writes nothing otherwise.
	Reserve(ctx context.Context, job *Job, amount int) (int, error)
	// Apply adds event.Amount to the balance and appends event. A second event
	// for the same run, or a second prompt charge or release for the same job,
	// yields ErrDuplicateOperation and changes nothing.
	Apply(ctx context.Context, event *CreditEvent) (int, error)
	// Reload raises the balance to target with a SESSION_RELOAD event. It
	// returns the balance unchanged when it is already at or above target.
	Reload(ctx context.Context, userID string, target int, reason string) (int, error)
	Balance(ctx context.Context, userID string) (int, error)
	History(ctx context.Context, userID string, limit int) ([]CreditEvent, error)
	Sum(ctx context.Context, userID string) (int, error)
	// Reserved returns the RESERVE event of a job, if any.
	Reserved(ctx context.Context, jobID string) (*CreditEvent, error)
}

// Store bundles the repositories the pipeline needs.
type Store struct {
	Users   UserRepository
	Jobs    JobRepository
	Prompts PromptRepository
	Runs    RunRepository
	Ledger  LedgerRepository
}
