package credentials

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubExecutor struct {
	token   string
	err     error
	queried int
	tag     string
	exec    struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.NewCommandTag(s.tag), s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.queried++
	return stubRow{token: s.token, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestToken(t *testing.T) {
	store := NewStore(&stubExecutor{token: " abc123 "})
	key, err := store.Token(context.Background(), Flux)
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if key != "abc123" {
		t.Fatalf("expected abc123, got %q", key)
	}
}

func TestToken_NoRows(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	key, err := store.Token(context.Background(), Ideogram)
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}

func TestResolvePrefersEnvironment(t *testing.T) {
	exec := &stubExecutor{token: "stored"}
	store := NewStore(exec)
	key, err := store.Resolve(context.Background(), Anthropic, " from-env ")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if key != "from-env" {
		t.Fatalf("expected from-env, got %q", key)
	}
	if exec.queried != 0 {
		t.Fatalf("store should not be queried when env is set")
	}

	key, err = store.Resolve(context.Background(), Anthropic, "")
	if err != nil || key != "stored" {
		t.Fatalf("Resolve fallback = %q, %v", key, err)
	}
}

func TestResolveNilStore(t *testing.T) {
	var store *Store
	key, err := store.Resolve(context.Background(), Gemini, "")
	if err != nil || key != "" {
		t.Fatalf("Resolve on nil store = %q, %v", key, err)
	}
}

func TestSet(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.Set(context.Background(), OpenAI, "secret"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if len(exec.exec.args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
	}
}

func TestSetRejectsEmptyAndUnknown(t *testing.T) {
	store := NewStore(&stubExecutor{})
	if err := store.Set(context.Background(), Gemini, " "); err == nil {
		t.Fatal("expected error for empty key")
	}
	if err := store.Set(context.Background(), "qwen", "secret"); !errors.Is(err, ErrUnknownName) {
		t.Fatalf("Set unknown name error = %v, want ErrUnknownName", err)
	}
}

func TestRevoke(t *testing.T) {
	exec := &stubExecutor{tag: "UPDATE 1"}
	store := NewStore(exec)
	revoked, err := store.Revoke(context.Background(), Flux)
	if err != nil || !revoked {
		t.Fatalf("Revoke = %v, %v, want true", revoked, err)
	}
	if !strings.Contains(exec.exec.query, "revoked_at = now()") {
		t.Fatalf("unexpected query %q", exec.exec.query)
	}

	exec.tag = "UPDATE 0"
	if revoked, err := store.Revoke(context.Background(), Flux); err != nil || revoked {
		t.Fatalf("Revoke with nothing active = %v, %v, want false", revoked, err)
	}
	if _, err := store.Revoke(context.Background(), "qwen"); !errors.Is(err, ErrUnknownName) {
		t.Fatalf("Revoke unknown name error = %v", err)
	}
}
