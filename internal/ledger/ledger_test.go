package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptfusion/internal/adapter/memstore"
	"promptfusion/internal/domain"
)

func newLedger(t *testing.T, opts ...Option) (*Ledger, domain.Store) {
	t.Helper()
	store := memstore.New().Store()
	return New(store.Ledger, store.Users, opts...), store
}

func TestOpenAccountGrantsSignupCredits(t *testing.T) {
	l, _ := newLedger(t, WithSignupGrant(300))
	user, err := l.OpenAccount(context.Background(), " Ada@Example.com ", domain.TierStandard)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, 300, user.CreditsBalance)

	history, err := l.History(context.Background(), user.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.CreditGrant, history[0].Type)
	assert.Equal(t, ReasonSignup, history[0].Reason)
}

func TestReserveChargeReleaseNetsToActualCost(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t, WithSignupGrant(1000))
	user, err := l.OpenAccount(ctx, "a@example.com", domain.TierStandard)
	require.NoError(t, err)

	job := &domain.Job{ID: "job-1", UserID: user.ID, Providers: domain.AllProviders()}
	estimate := domain.PromptCreationCost + domain.TotalCost(job.Providers)
	balance, err := l.Reserve(ctx, job, estimate)
	require.NoError(t, err)
	assert.Equal(t, 1000-estimate, balance)

	_, err = l.Charge(ctx, Charge{UserID: user.ID, Amount: domain.PromptCreationCost, Reason: ReasonPrompt, JobID: job.ID})
	require.NoError(t, err)
	_, err = l.Charge(ctx, Charge{UserID: user.ID, Amount: 39, Reason: ProviderReason(domain.ProviderGemini), JobID: job.ID, RunID: "run-1"})
	require.NoError(t, err)
	// A redelivered message charges the same run again.
	_, err = l.Charge(ctx, Charge{UserID: user.ID, Amount: 39, Reason: ProviderReason(domain.ProviderGemini), JobID: job.ID, RunID: "run-1"})
	require.NoError(t, err)

	balance, err = l.Release(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, 1000-50-39, balance)
	balance, err = l.Release(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, 1000-50-39, balance)

	rec, err := l.Reconcile(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, rec.OK(), "%+v", rec)

	events, err := store.Ledger.History(ctx, user.ID, 100)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestReserveRejectsShortBalance(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t, WithSignupGrant(100))
	user, err := l.OpenAccount(ctx, "a@example.com", domain.TierStandard)
	require.NoError(t, err)

	_, err = l.Reserve(ctx, &domain.Job{ID: "job-1", UserID: user.ID}, 462)
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)

	_, err = store.Jobs.GetByID(ctx, "job-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	balance, err := l.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, balance)
}

func TestReserveReloadsUnlimitedTier(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, WithSignupGrant(100), WithSessionAllowance(500))
	user, err := l.OpenAccount(ctx, "a@example.com", domain.TierUnlimited)
	require.NoError(t, err)

	balance, err := l.Reserve(ctx, &domain.Job{ID: "job-1", UserID: user.ID}, 462)
	require.NoError(t, err)
	assert.Equal(t, 38, balance)

	history, err := l.History(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, domain.CreditReserve, history[0].Type)
	assert.Equal(t, domain.CreditSessionReload, history[1].Type)
	assert.Equal(t, 400, history[1].Amount)
}

func TestSessionReloadRequiresUnlimitedTier(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	user, err := l.OpenAccount(ctx, "a@example.com", domain.TierStandard)
	require.NoError(t, err)
	_, err = l.SessionReload(ctx, user.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestGrantRejectsNonPositive(t *testing.T) {
	l, _ := newLedger(t)
	_, err := l.Grant(context.Background(), "user-1", 0, "nothing")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
