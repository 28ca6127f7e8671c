// Package memstore keeps every repository in process memory. It backs
// STORE_DRIVER=memory and the pipeline tests, and mirrors the conditional
// updates and uniqueness rules of the PostgreSQL schema.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"promptfusion/internal/domain"
)

// Memory holds all rows behind one mutex.
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	users   map[string]*domain.User
	jobs    map[string]*domain.Job
	prompts map[string]*domain.Prompt
	runs    map[string]*domain.ModelRun
	events  []domain.CreditEvent
}

// New returns an empty store.
func New() *Memory {
	return &Memory{
		now:     time.Now,
		users:   map[string]*domain.User{},
		jobs:    map[string]*domain.Job{},
		prompts: map[string]*domain.Prompt{},
		runs:    map[string]*domain.ModelRun{},
	}
}

// Store exposes the memory as the repository bundle.
func (m *Memory) Store() domain.Store {
	return domain.Store{
		Users:   users{m},
		Jobs:    jobs{m},
		Prompts: prompts{m},
		Runs:    runs{m},
		Ledger:  ledger{m},
	}
}

// Events returns a copy of the ledger in insertion order.
func (m *Memory) Events() []domain.CreditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CreditEvent(nil), m.events...)
}

type users struct{ m *Memory }

func (r users) Create(ctx context.Context, u *domain.User) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		return domain.ErrDuplicateOperation
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return domain.ErrDuplicateOperation
		}
	}
	if u.Tier == "" {
		u.Tier = domain.TierStandard
	}
	u.CreditsBalance = 0
	u.CreatedAt = m.now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (r users) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r users) SetTier(ctx context.Context, id string, tier domain.Tier) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Tier = tier
	u.UpdatedAt = m.now()
	return nil
}

type jobs struct{ m *Memory }

func copyJob(j *domain.Job) *domain.Job {
	cp := *j
	cp.Providers = append([]domain.Provider(nil), j.Providers...)
	if j.PresetAnswers != nil {
		cp.PresetAnswers = make(map[string]string, len(j.PresetAnswers))
		for k, v := range j.PresetAnswers {
			cp.PresetAnswers[k] = v
		}
	}
	if j.GradeScore != nil {
		s := *j.GradeScore
		cp.GradeScore = &s
	}
	return &cp
}

func (r jobs) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyJob(j), nil
}

func (r jobs) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Job, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Job
	for _, j := range m.jobs {
		if j.UserID == userID {
			out = append(out, *copyJob(j))
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID > out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r jobs) Status(ctx context.Context, id string) (domain.JobStatus, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return j.Status, nil
}

// transition applies fn when the job's status is one of from.
func (r jobs) transition(id, op string, fn func(*domain.Job), from ...domain.JobStatus) (*domain.Job, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	for _, s := range from {
		if j.Status == s {
			fn(j)
			j.UpdatedAt = m.now()
			return copyJob(j), nil
		}
	}
	return nil, fmt.Errorf("%w: cannot %s job in status %s", domain.ErrInvalidState, op, j.Status)
}

func (r jobs) Claim(ctx context.Context, id string) (*domain.Job, error) {
	return r.transition(id, "claim", func(j *domain.Job) {
		j.Status = domain.JobStatusRunning
	}, domain.JobStatusQueued)
}

func (r jobs) Resume(ctx context.Context, id string) (*domain.Job, error) {
	return r.transition(id, "resume", func(*domain.Job) {}, domain.JobStatusRunning)
}

func (r jobs) Reset(ctx context.Context, id string) (bool, error) {
	_, err := r.transition(id, "reset", func(j *domain.Job) {
		j.Status = domain.JobStatusQueued
	}, domain.JobStatusRunning)
	if err != nil {
		if ignoreState(err) == nil {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r jobs) AttachDraft(ctx context.Context, id, promptID string) error {
	_, err := r.transition(id, "attach draft", func(j *domain.Job) {
		j.DraftPromptID = promptID
	}, domain.JobStatusRunning)
	return ignoreState(err)
}

func (r jobs) AttachGrade(ctx context.Context, id, promptID string, score *int, notes string) error {
	_, err := r.transition(id, "attach grade", func(j *domain.Job) {
		j.GradedPromptID = promptID
		if score != nil {
			v := *score
			j.GradeScore = &v
		} else {
			j.GradeScore = nil
		}
		j.GradeNotes = notes
	}, domain.JobStatusRunning)
	return ignoreState(err)
}

func (r jobs) Finish(ctx context.Context, id string, status domain.JobStatus, errMsg string) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("jobs: finish with non-terminal status %q", status)
	}
	_, err := r.transition(id, "finish", func(j *domain.Job) {
		j.Status = status
		j.ErrorMessage = errMsg
	}, domain.JobStatusRunning)
	if err != nil {
		if ignoreState(err) == nil {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r jobs) Cancel(ctx context.Context, id string) (*domain.Job, domain.JobStatus, error) {
	var prior domain.JobStatus
	job, err := r.transition(id, "cancel", func(j *domain.Job) {
		prior = j.Status
		j.Status = domain.JobStatusCanceled
	}, domain.JobStatusQueued, domain.JobStatusRunning)
	return job, prior, err
}

// ignoreState mirrors the SQL updates that silently match no row.
func ignoreState(err error) error {
	if err != nil && errorsIsState(err) {
		return nil
	}
	return err
}

type prompts struct{ m *Memory }

func (r prompts) Create(ctx context.Context, p *domain.Prompt) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := m.prompts[p.ID]; ok {
		return domain.ErrDuplicateOperation
	}
	p.CreatedAt = m.now()
	cp := *p
	m.prompts[p.ID] = &cp
	return nil
}

func (r prompts) GetByID(ctx context.Context, id string) (*domain.Prompt, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prompts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r prompts) ListByJob(ctx context.Context, jobID string) ([]domain.Prompt, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Prompt
	for _, p := range m.prompts {
		if p.JobID == jobID {
			out = append(out, *p)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

type runs struct{ m *Memory }

func (r runs) Create(ctx context.Context, run *domain.ModelRun) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.runs {
		if existing.JobID == run.JobID && existing.Provider == run.Provider {
			return domain.ErrDuplicateOperation
		}
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.Status = domain.RunStatusRunning
	run.StartedAt = m.now()
	cp := *run
	cp.Outputs = nil
	m.runs[run.ID] = &cp
	return nil
}

func (r runs) finish(runID string, fn func(*domain.ModelRun)) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return domain.ErrNotFound
	}
	if run.Status != domain.RunStatusRunning {
		return domain.ErrInvalidState
	}
	fn(run)
	now := m.now()
	run.FinishedAt = &now
	return nil
}

func (r runs) Succeed(ctx context.Context, runID string, outputs []domain.ImageOutput) error {
	return r.finish(runID, func(run *domain.ModelRun) {
		now := r.m.now()
		for i := range outputs {
			if outputs[i].ID == "" {
				outputs[i].ID = uuid.NewString()
			}
			outputs[i].RunID = runID
			outputs[i].CreatedAt = now
		}
		run.Outputs = append([]domain.ImageOutput(nil), outputs...)
		run.Status = domain.RunStatusSucceeded
	})
}

func (r runs) Fail(ctx context.Context, runID, message string) error {
	return r.finish(runID, func(run *domain.ModelRun) {
		run.Status = domain.RunStatusFailed
		run.Error = message
	})
}

func (r runs) ListByJob(ctx context.Context, jobID string) ([]domain.ModelRun, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ModelRun
	for _, run := range m.runs {
		if run.JobID == jobID {
			cp := *run
			cp.Outputs = append([]domain.ImageOutput(nil), run.Outputs...)
			out = append(out, cp)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].StartedAt.Equal(out[b].StartedAt) {
			return out[a].Provider < out[b].Provider
		}
		return out[a].StartedAt.Before(out[b].StartedAt)
	})
	return out, nil
}
