package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"promptfusion/internal/infra"
	"promptfusion/internal/sqlinline"
)

// Credential names stored in provider_credentials.
const (
	Anthropic = "anthropic"
	OpenAI    = "openai"
	Gemini    = "gemini"
	Flux      = "flux"
	Ideogram  = "ideogram"
)

// ErrUnknownName is returned for names outside the list above.
var ErrUnknownName = errors.New("credentials: unknown name")

// Store reads and writes upstream API keys kept in the database. The
// environment always wins; stored keys fill the gaps.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func checkName(name string) error {
	switch name {
	case Anthropic, OpenAI, Gemini, Flux, Ideogram:
		return nil
	default:
		return fmt.Errorf("%w %q", ErrUnknownName, name)
	}
}

// Token returns the active key for name, or "" when none is stored.
func (s *Store) Token(ctx context.Context, name string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectProviderCredential, name)
	var key string
	if err := row.Scan(&key); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("credentials: load %s: %w", name, err)
	}
	return strings.TrimSpace(key), nil
}

// Resolve prefers envValue and falls back to the stored key. A nil Store
// only consults the environment.
func (s *Store) Resolve(ctx context.Context, name, envValue string) (string, error) {
	if v := strings.TrimSpace(envValue); v != "" {
		return v, nil
	}
	if s == nil {
		return "", nil
	}
	return s.Token(ctx, name)
}

// Set stores key for name, replacing and un-revoking any previous key.
func (s *Store) Set(ctx context.Context, name, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("credentials: key is required")
	}
	if err := checkName(name); err != nil {
		return err
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertProviderCredential, name, key); err != nil {
		return fmt.Errorf("credentials: store %s: %w", name, err)
	}
	return nil
}

// Revoke disables the stored key for name. It reports whether one was active.
func (s *Store) Revoke(ctx context.Context, name string) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	tag, err := s.sql.Exec(ctx, sqlinline.QRevokeProviderCredential, name)
	if err != nil {
		return false, fmt.Errorf("credentials: revoke %s: %w", name, err)
	}
	return tag.RowsAffected() > 0, nil
}
