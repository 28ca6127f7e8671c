package memstore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"promptfusion/internal/domain"
)

type ledger struct{ m *Memory }

const reserveReason = "Credit hold for job"

func errorsIsState(err error) bool {
	return errors.Is(err, domain.ErrInvalidState)
}

// duplicate reports whether ev collides with a row covered by the partial
// unique indexes on credit_events.
func (m *Memory) duplicate(ev domain.CreditEvent) bool {
	for _, e := range m.events {
		if ev.RunID != "" {
			if e.RunID == ev.RunID {
				return true
			}
			continue
		}
		if e.RunID != "" || ev.JobID == "" || e.JobID != ev.JobID || e.Type != ev.Type {
			continue
		}
		switch ev.Type {
		case domain.CreditReserve, domain.CreditSpend, domain.CreditRelease:
			return true
		}
	}
	return false
}

func (m *Memory) record(ev *domain.CreditEvent, u *domain.User) int {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.CreatedAt = m.now()
	u.CreditsBalance += ev.Amount
	u.UpdatedAt = ev.CreatedAt
	m.events = append(m.events, *ev)
	return u.CreditsBalance
}

func (l ledger) Reserve(ctx context.Context, job *domain.Job, amount int) (int, error) {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[job.UserID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if u.CreditsBalance < amount {
		return 0, domain.ErrInsufficientCredits
	}
	if _, exists := m.jobs[job.ID]; exists {
		return 0, domain.ErrDuplicateOperation
	}
	balance := m.record(&domain.CreditEvent{
		UserID: job.UserID,
		Amount: -amount,
		Type:   domain.CreditReserve,
		Reason: reserveReason,
		JobID:  job.ID,
	}, u)
	job.Status = domain.JobStatusQueued
	job.ReservedCredits = amount
	job.CreatedAt = m.now()
	job.UpdatedAt = job.CreatedAt
	m.jobs[job.ID] = copyJob(job)
	return balance, nil
}

func (l ledger) Apply(ctx context.Context, ev *domain.CreditEvent) (int, error) {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[ev.UserID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if m.duplicate(*ev) {
		return 0, domain.ErrDuplicateOperation
	}
	return m.record(ev, u), nil
}

func (l ledger) Reload(ctx context.Context, userID string, target int, reason string) (int, error) {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if u.CreditsBalance >= target {
		return u.CreditsBalance, nil
	}
	return m.record(&domain.CreditEvent{
		UserID: userID,
		Amount: target - u.CreditsBalance,
		Type:   domain.CreditSessionReload,
		Reason: reason,
	}, u), nil
}

func (l ledger) Balance(ctx context.Context, userID string) (int, error) {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return u.CreditsBalance, nil
}

func (l ledger) History(ctx context.Context, userID string, limit int) ([]domain.CreditEvent, error) {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CreditEvent
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].UserID != userID {
			continue
		}
		out = append(out, m.events[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (l ledger) Sum(ctx context.Context, userID string) (int, error) {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := 0
	for _, e := range m.events {
		if e.UserID == userID {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (l ledger) Reserved(ctx context.Context, jobID string) (*domain.CreditEvent, error) {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.JobID == jobID && e.Type == domain.CreditReserve {
			ev := e
			return &ev, nil
		}
	}
	return nil, domain.ErrNotFound
}
