package repo

import (
	"context"

	"github.com/google/uuid"

	"promptfusion/internal/domain"
	"promptfusion/internal/infra"
	"promptfusion/internal/sqlinline"
)

// LedgerRepositoryPG implements domain.LedgerRepository. Every balance change
// and its credit_events row are written by a single statement.
type LedgerRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewLedgerRepository(sql infra.SQLExecutor) *LedgerRepositoryPG {
	return &LedgerRepositoryPG{sql: sql}
}

// Reserve inserts job together with its credit hold.
func (r *LedgerRepositoryPG) Reserve(ctx context.Context, job *domain.Job, amount int) (int, error) {
	var balance int
	err := r.sql.QueryRow(ctx, sqlinline.QReserveAndInsertJob,
		job.ID,
		job.UserID,
		amount,
		job.Idea,
		job.PresetKey,
		job.AspectRatio,
		job.MoodTags,
		nullableJSON(job.PresetAnswers),
		job.Bypass,
		job.DirectPrompt,
		providerNames(job.Providers),
		uuid.NewString(),
		reserveReason,
	).Scan(&balance, &job.CreatedAt)
	if err != nil {
		if !infra.IsNoRows(err) {
			return 0, domain.Persist("ledger.reserve", err)
		}
		if _, err := r.Balance(ctx, job.UserID); err != nil {
			return 0, err
		}
		return 0, domain.ErrInsufficientCredits
	}
	job.Status = domain.JobStatusQueued
	job.ReservedCredits = amount
	job.UpdatedAt = job.CreatedAt
	return balance, nil
}

const reserveReason = "Credit hold for job"

// Apply appends event and moves the balance by its signed amount.
func (r *LedgerRepositoryPG) Apply(ctx context.Context, event *domain.CreditEvent) (int, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	var balance int
	err := r.sql.QueryRow(ctx, sqlinline.QApplyCreditEvent,
		event.ID,
		event.UserID,
		event.Amount,
		string(event.Type),
		event.Reason,
		nullable(event.JobID),
		nullable(event.RunID),
	).Scan(&balance)
	if err != nil {
		if !infra.IsNoRows(err) {
			return 0, domain.Persist("ledger.apply", err)
		}
		if _, err := r.Balance(ctx, event.UserID); err != nil {
			return 0, err
		}
		return 0, domain.ErrDuplicateOperation
	}
	return balance, nil
}

func (r *LedgerRepositoryPG) Reload(ctx context.Context, userID string, target int, reason string) (int, error) {
	var balance int
	err := r.sql.QueryRow(ctx, sqlinline.QSessionReload, uuid.NewString(), userID, target, reason).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !infra.IsNoRows(err) {
		return 0, domain.Persist("ledger.reload", err)
	}
	return r.Balance(ctx, userID)
}

func (r *LedgerRepositoryPG) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectBalance, userID).Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrNotFound
		}
		return 0, domain.Persist("ledger.balance", err)
	}
	return balance, nil
}

func (r *LedgerRepositoryPG) History(ctx context.Context, userID string, limit int) ([]domain.CreditEvent, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListCreditEvents, userID, limit)
	if err != nil {
		return nil, domain.Persist("ledger.history", err)
	}
	defer rows.Close()

	var events []domain.CreditEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, domain.Persist("ledger.history", err)
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Persist("ledger.history", err)
	}
	return events, nil
}

func (r *LedgerRepositoryPG) Sum(ctx context.Context, userID string) (int, error) {
	var sum int
	if err := r.sql.QueryRow(ctx, sqlinline.QSumCreditEvents, userID).Scan(&sum); err != nil {
		return 0, domain.Persist("ledger.sum", err)
	}
	return sum, nil
}

func (r *LedgerRepositoryPG) Reserved(ctx context.Context, jobID string) (*domain.CreditEvent, error) {
	ev, err := scanEvent(r.sql.QueryRow(ctx, sqlinline.QSelectReserveEvent, jobID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Persist("ledger.reserved", err)
	}
	return ev, nil
}
