package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrValidation          = errors.New("validation error")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidState        = errors.New("invalid state")
	ErrUnknownProvider     = errors.New("unknown provider")
	ErrDuplicateOperation  = errors.New("duplicate operation")
)

// Stage names used by StageError.
const (
	StageSynthesis = "synthesis"
	StageGrading   = "grading"
)

// StageError reports a synthesis or grading failure that aborts the job.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ProviderError is a single adapter failure contained to its ModelRun.
type ProviderError struct {
	Provider Provider
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PersistenceError wraps datastore failures that must fail the current step.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persist wraps err as a PersistenceError unless it is nil or a domain sentinel
// the caller is expected to branch on.
func Persist(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrNotFound, ErrInvalidState, ErrInsufficientCredits, ErrDuplicateOperation} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
