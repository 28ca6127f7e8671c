package repo

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"promptfusion/internal/domain"
	"promptfusion/internal/infra"
)

// scriptedExecutor answers QueryRow calls in order and records Exec calls.
type scriptedExecutor struct {
	rows    []stubRow
	tag     string
	execErr error
	queries []string
	args    [][]any
}

func (s *scriptedExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.queries = append(s.queries, query)
	s.args = append(s.args, args)
	return pgconn.NewCommandTag(s.tag), s.execErr
}

func (s *scriptedExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.queries = append(s.queries, query)
	s.args = append(s.args, args)
	if len(s.rows) == 0 {
		return stubRow{err: errors.New("unexpected query")}
	}
	row := s.rows[0]
	s.rows = s.rows[1:]
	return row
}

func (s *scriptedExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (s *scriptedExecutor) InTx(ctx context.Context, fn func(infra.SQLExecutor) error) error {
	return fn(s)
}

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, v := range r.values {
		if i >= len(dest) {
			break
		}
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

func TestClaimDistinguishesStateFromMissing(t *testing.T) {
	exec := &scriptedExecutor{rows: []stubRow{{err: pgx.ErrNoRows}, {values: []any{"RUNNING"}}}}
	_, err := NewJobRepository(exec).Claim(context.Background(), "job-1")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("Claim err = %v, want ErrInvalidState", err)
	}

	exec = &scriptedExecutor{rows: []stubRow{{err: pgx.ErrNoRows}, {err: pgx.ErrNoRows}}}
	_, err = NewJobRepository(exec).Claim(context.Background(), "job-2")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Claim err = %v, want ErrNotFound", err)
	}
}

func TestResumeRejectsJobsThatAreNotRunning(t *testing.T) {
	exec := &scriptedExecutor{rows: []stubRow{{err: pgx.ErrNoRows}, {values: []any{"SUCCEEDED"}}}}
	_, err := NewJobRepository(exec).Resume(context.Background(), "job-1")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("Resume err = %v, want ErrInvalidState", err)
	}
}

func TestResetReportsWhetherRowMoved(t *testing.T) {
	moved, err := NewJobRepository(&scriptedExecutor{tag: "UPDATE 1"}).Reset(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	if !moved {
		t.Fatalf("Reset did not move a RUNNING job")
	}
}

func TestFinishReportsWhetherRowMoved(t *testing.T) {
	repo := NewJobRepository(&scriptedExecutor{tag: "UPDATE 0"})
	moved, err := repo.Finish(context.Background(), "job-1", domain.JobStatusSucceeded, "")
	if err != nil {
		t.Fatalf("Finish error: %v", err)
	}
	if moved {
		t.Fatalf("Finish moved a job that was no longer RUNNING")
	}

	if _, err := repo.Finish(context.Background(), "job-1", domain.JobStatusRunning, ""); err == nil {
		t.Fatalf("Finish accepted a non-terminal status")
	}
}

func TestStatusWrapsDriverErrors(t *testing.T) {
	repo := NewJobRepository(&scriptedExecutor{rows: []stubRow{{err: errors.New("conn reset")}}})
	_, err := repo.Status(context.Background(), "job-1")
	var pe *domain.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("Status err = %T, want *domain.PersistenceError", err)
	}
	if pe.Op != "jobs.status" {
		t.Fatalf("Op = %q", pe.Op)
	}
}

func TestReserveInsufficientCredits(t *testing.T) {
	exec := &scriptedExecutor{rows: []stubRow{{err: pgx.ErrNoRows}, {values: []any{10}}}}
	job := &domain.Job{ID: "job-1", UserID: "user-1", Providers: []domain.Provider{domain.ProviderGemini}}
	_, err := NewLedgerRepository(exec).Reserve(context.Background(), job, 89)
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("Reserve err = %v, want ErrInsufficientCredits", err)
	}
	providers, ok := exec.args[0][10].([]string)
	if !ok || len(providers) != 1 || providers[0] != "GEMINI_NANOBANANA_PRO" {
		t.Fatalf("providers arg = %#v", exec.args[0][10])
	}
}

func TestReserveUnknownUser(t *testing.T) {
	exec := &scriptedExecutor{rows: []stubRow{{err: pgx.ErrNoRows}, {err: pgx.ErrNoRows}}}
	_, err := NewLedgerRepository(exec).Reserve(context.Background(), &domain.Job{ID: "j", UserID: "u"}, 50)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Reserve err = %v, want ErrNotFound", err)
	}
}

func TestApplyDuplicateIsReported(t *testing.T) {
	exec := &scriptedExecutor{rows: []stubRow{{err: pgx.ErrNoRows}, {values: []any{300}}}}
	ev := &domain.CreditEvent{UserID: "user-1", Amount: -39, Type: domain.CreditSpend, JobID: "job-1", RunID: "run-1"}
	_, err := NewLedgerRepository(exec).Apply(context.Background(), ev)
	if !errors.Is(err, domain.ErrDuplicateOperation) {
		t.Fatalf("Apply err = %v, want ErrDuplicateOperation", err)
	}
	if ev.ID == "" {
		t.Fatalf("Apply should assign an event id")
	}
}

func TestApplyPassesNullReferences(t *testing.T) {
	exec := &scriptedExecutor{rows: []stubRow{{values: []any{1000}}}}
	ev := &domain.CreditEvent{UserID: "user-1", Amount: 1000, Type: domain.CreditGrant, Reason: "signup"}
	balance, err := NewLedgerRepository(exec).Apply(context.Background(), ev)
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if balance != 1000 {
		t.Fatalf("balance = %d, want 1000", balance)
	}
	if exec.args[0][5] != nil || exec.args[0][6] != nil {
		t.Fatalf("job/run refs = %v/%v, want nil", exec.args[0][5], exec.args[0][6])
	}
}

func TestReloadKeepsBalanceAboveTarget(t *testing.T) {
	exec := &scriptedExecutor{rows: []stubRow{{err: pgx.ErrNoRows}, {values: []any{1500}}}}
	balance, err := NewLedgerRepository(exec).Reload(context.Background(), "user-1", 1000, "session")
	if err != nil {
		t.Fatalf("Reload error: %v", err)
	}
	if balance != 1500 {
		t.Fatalf("balance = %d, want 1500", balance)
	}
}

func TestSucceedInsertsOutputsBeforeFlip(t *testing.T) {
	exec := &scriptedExecutor{tag: "UPDATE 1"}
	outputs := []domain.ImageOutput{{URL: "https://a"}, {URL: "https://b"}}
	if err := NewRunRepository(exec).Succeed(context.Background(), "run-1", outputs); err != nil {
		t.Fatalf("Succeed error: %v", err)
	}
	if len(exec.queries) != 3 {
		t.Fatalf("queries = %d, want 3", len(exec.queries))
	}
	if !strings.Contains(exec.queries[2], "SUCCEEDED") {
		t.Fatalf("last statement should flip the run, got %q", exec.queries[2])
	}
	for _, out := range outputs {
		if out.ID == "" || out.RunID != "run-1" {
			t.Fatalf("output not stamped: %+v", out)
		}
	}
}

func TestFailOnFinishedRun(t *testing.T) {
	err := NewRunRepository(&scriptedExecutor{tag: "UPDATE 0"}).Fail(context.Background(), "run-1", "boom")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("Fail err = %v, want ErrInvalidState", err)
	}
}

func TestNullableJSON(t *testing.T) {
	if nullableJSON(map[string]string{}) != nil {
		t.Fatalf("empty map should be NULL")
	}
	var rubric *domain.Rubric
	if nullableJSON(rubric) != nil {
		t.Fatalf("nil rubric should be NULL")
	}
	if got := string(nullableJSON(map[string]any{"preset": "none"})); got != `{"preset":"none"}` {
		t.Fatalf("json = %s", got)
	}
}
