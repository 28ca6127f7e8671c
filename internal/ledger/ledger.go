// Package ledger moves user credits. Every balance change is written together
// with its CreditEvent by the LedgerRepository in one statement.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"promptfusion/internal/domain"
)

const (
	defaultHistoryLimit = 50

	ReasonSignup        = "Signup grant"
	ReasonSessionReload = "Session reload"
	ReasonPrompt        = "Prompt creation (master + provider-specific)"
	ReasonRelease       = "Release credit hold"
)

// ProviderReason is the ledger reason for a successful provider run.
func ProviderReason(p domain.Provider) string {
	return fmt.Sprintf("Image generation (%s)", p)
}

// Charge describes one SPEND. RunID is set for provider charges and empty for
// the per-job prompt charge.
type Charge struct {
	UserID string
	Amount int
	Reason string
	JobID  string
	RunID  string
}

// Reconciliation compares the stored balance with the sum of the ledger.
type Reconciliation struct {
	UserID  string `json:"userId"`
	Balance int    `json:"balance"`
	Sum     int    `json:"sum"`
}

// OK reports whether balance and ledger agree.
func (r Reconciliation) OK() bool { return r.Balance == r.Sum }

// Ledger is the credit service shared by submission, the worker and the CLI.
type Ledger struct {
	repo             domain.LedgerRepository
	users            domain.UserRepository
	sessionAllowance int
	signupGrant      int
	logger           zerolog.Logger
}

// Option customizes a Ledger.
type Option func(*Ledger)

func WithLogger(l zerolog.Logger) Option { return func(g *Ledger) { g.logger = l } }

// WithSessionAllowance sets the balance unlimited-tier users are topped up to.
func WithSessionAllowance(n int) Option { return func(g *Ledger) { g.sessionAllowance = n } }

func WithSignupGrant(n int) Option { return func(g *Ledger) { g.signupGrant = n } }

func New(repo domain.LedgerRepository, users domain.UserRepository, opts ...Option) *Ledger {
	l := &Ledger{
		repo:             repo,
		users:            users,
		sessionAllowance: 500,
		signupGrant:      500,
		logger:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OpenAccount creates a user and writes the signup grant.
func (l *Ledger) OpenAccount(ctx context.Context, email string, tier domain.Tier) (*domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	user := &domain.User{ID: uuid.NewString(), Email: email, Tier: tier}
	if err := l.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("ledger: open account: %w", err)
	}
	if l.signupGrant > 0 {
		balance, err := l.Grant(ctx, user.ID, l.signupGrant, ReasonSignup)
		if err != nil {
			return nil, err
		}
		user.CreditsBalance = balance
	}
	return user, nil
}

// Reserve places the upfront hold for job and inserts it. Unlimited-tier
// users whose balance is short get a session reload first.
func (l *Ledger) Reserve(ctx context.Context, job *domain.Job, amount int) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("%w: negative reservation", domain.ErrValidation)
	}
	balance, err := l.repo.Reserve(ctx, job, amount)
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		return balance, err
	}
	user, uerr := l.users.GetByID(ctx, job.UserID)
	if uerr != nil || !user.IsUnlimited() {
		return 0, err
	}
	target := l.sessionAllowance
	if amount > target {
		target = amount
	}
	if _, rerr := l.repo.Reload(ctx, job.UserID, target, ReasonSessionReload); rerr != nil {
		return 0, rerr
	}
	l.logger.Info().Str("user_id", job.UserID).Int("target", target).Msg("ledger: session reload before reserve")
	return l.repo.Reserve(ctx, job, amount)
}

// Charge applies a SPEND. A repeated charge for the same run, or a second
// prompt charge for the same job, is a no-op that returns the current balance.
func (l *Ledger) Charge(ctx context.Context, c Charge) (int, error) {
	if c.Amount <= 0 {
		return l.repo.Balance(ctx, c.UserID)
	}
	balance, err := l.repo.Apply(ctx, &domain.CreditEvent{
		UserID: c.UserID,
		Amount: -c.Amount,
		Type:   domain.CreditSpend,
		Reason: c.Reason,
		JobID:  c.JobID,
		RunID:  c.RunID,
	})
	if errors.Is(err, domain.ErrDuplicateOperation) {
		l.logger.Debug().Str("job_id", c.JobID).Str("run_id", c.RunID).Msg("ledger: charge already recorded")
		return l.repo.Balance(ctx, c.UserID)
	}
	if err != nil {
		return 0, fmt.Errorf("ledger: charge: %w", err)
	}
	if balance < 0 {
		l.logger.Warn().Str("user_id", c.UserID).Str("job_id", c.JobID).Int("balance", balance).Msg("ledger: balance below zero after charge")
	}
	return balance, nil
}

// Grant adds credits.
func (l *Ledger) Grant(ctx context.Context, userID string, amount int, reason string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: grant must be positive", domain.ErrValidation)
	}
	balance, err := l.repo.Apply(ctx, &domain.CreditEvent{
		UserID: userID,
		Amount: amount,
		Type:   domain.CreditGrant,
		Reason: reason,
	})
	if err != nil {
		return 0, fmt.Errorf("ledger: grant: %w", err)
	}
	return balance, nil
}

// Release returns the job's hold once. Jobs without a hold release nothing.
func (l *Ledger) Release(ctx context.Context, job *domain.Job) (int, error) {
	hold, err := l.repo.Reserved(ctx, job.ID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && hold.Amount == 0) {
		return l.repo.Balance(ctx, job.UserID)
	}
	if err != nil {
		return 0, fmt.Errorf("ledger: release: %w", err)
	}
	balance, err := l.repo.Apply(ctx, &domain.CreditEvent{
		UserID: job.UserID,
		Amount: -hold.Amount,
		Type:   domain.CreditRelease,
		Reason: ReasonRelease,
		JobID:  job.ID,
	})
	if errors.Is(err, domain.ErrDuplicateOperation) {
		return l.repo.Balance(ctx, job.UserID)
	}
	if err != nil {
		return 0, fmt.Errorf("ledger: release: %w", err)
	}
	l.logger.Debug().Str("job_id", job.ID).Int("amount", -hold.Amount).Msg("ledger: hold released")
	return balance, nil
}

// SessionReload tops an unlimited-tier user up to the session allowance.
func (l *Ledger) SessionReload(ctx context.Context, userID string) (int, error) {
	user, err := l.users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !user.IsUnlimited() {
		return 0, fmt.Errorf("%w: session reload requires the unlimited tier", domain.ErrForbidden)
	}
	return l.repo.Reload(ctx, userID, l.sessionAllowance, ReasonSessionReload)
}

func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	return l.repo.Balance(ctx, userID)
}

// History returns the newest events first; limit <= 0 means 50.
func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]domain.CreditEvent, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return l.repo.History(ctx, userID, limit)
}

// Reconcile checks that the balance equals the sum of the user's events.
func (l *Ledger) Reconcile(ctx context.Context, userID string) (Reconciliation, error) {
	balance, err := l.repo.Balance(ctx, userID)
	if err != nil {
		return Reconciliation{}, err
	}
	sum, err := l.repo.Sum(ctx, userID)
	if err != nil {
		return Reconciliation{}, err
	}
	r := Reconciliation{UserID: userID, Balance: balance, Sum: sum}
	if !r.OK() {
		l.logger.Error().Str("user_id", userID).Int("balance", balance).Int("sum", sum).Msg("ledger: reconciliation mismatch")
	}
	return r, nil
}
