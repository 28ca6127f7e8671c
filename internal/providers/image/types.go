package image

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Image is one generated picture. Adapters fill either URL or Data; the
// Materializer turns Data into a URL before anything is persisted.
type Image struct {
	URL      string
	Data     []byte
	MIME     string
	Width    int
	Height   int
	Seed     *int64
	Metadata map[string]any
}

// Adapter is the uniform capability every image backend implements.
// size is "WIDTHxHEIGHT".
type Adapter interface {
	Generate(ctx context.Context, prompt, size string) ([]Image, error)
}

// AdapterFunc lets a plain function satisfy Adapter.
type AdapterFunc func(ctx context.Context, prompt, size string) ([]Image, error)

func (f AdapterFunc) Generate(ctx context.Context, prompt, size string) ([]Image, error) {
	return f(ctx, prompt, size)
}

// ErrPollTimeout marks a polled job that never became ready.
var ErrPollTimeout = errors.New("poll timeout")

// PollTimeoutError reports how long an adapter waited before giving up.
type PollTimeoutError struct {
	Attempts int
	Interval time.Duration
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("not ready after %d attempts every %s", e.Attempts, e.Interval)
}

func (e *PollTimeoutError) Unwrap() error { return ErrPollTimeout }

// UpstreamError is a rejection or malformed answer from the provider API.
type UpstreamError struct {
	Backend string
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if e.Status > 0 {
		return fmt.Sprintf("%s: upstream status %d: %s", e.Backend, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Backend, msg)
}

func upstream(backend string, status int, format string, args ...any) *UpstreamError {
	return &UpstreamError{Backend: backend, Status: status, Message: fmt.Sprintf(format, args...)}
}
