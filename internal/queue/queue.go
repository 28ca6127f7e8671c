// Package queue carries job ids from submission to the worker pool.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnavailable is returned by a queue that cannot accept work.
var ErrUnavailable = errors.New("queue unavailable")

// Message is one delivery of a job reference. Deliveries counts how often the
// message has been handed out, this delivery included.
type Message struct {
	ID         int64
	JobID      string
	Deliveries int
	EnqueuedAt time.Time
}

// Queue is a durable at-least-once work queue. A received message stays
// invisible until it is acked, retried or dead-lettered, or until its
// visibility timeout lapses.
type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
	// Receive waits up to the queue's poll interval for at most max messages.
	Receive(ctx context.Context, max int) ([]Message, error)
	Ack(ctx context.Context, msg Message) error
	// Retry makes msg visible again after delay.
	Retry(ctx context.Context, msg Message, delay time.Duration) error
	// DeadLetter moves msg to the dead-letter queue.
	DeadLetter(ctx context.Context, msg Message, reason string) error
}

type payload struct {
	JobID  string `json:"jobId"`
	Reason string `json:"reason,omitempty"`
}

func encodePayload(jobID, reason string) ([]byte, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, errors.New("queue: empty job id")
	}
	return json.Marshal(payload{JobID: jobID, Reason: reason})
}

func decodePayload(raw []byte) (string, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", fmt.Errorf("queue: decode message: %w", err)
	}
	if strings.TrimSpace(p.JobID) == "" {
		return "", errors.New("queue: message without job id")
	}
	return p.JobID, nil
}

// Offline rejects every enqueue. Jobs submitted against it stay QUEUED until
// an operator re-enqueues them.
type Offline struct{}

func (Offline) Enqueue(ctx context.Context, jobID string) error { return ErrUnavailable }

func (Offline) Receive(ctx context.Context, max int) ([]Message, error) { return nil, ErrUnavailable }

func (Offline) Ack(ctx context.Context, msg Message) error { return ErrUnavailable }

func (Offline) Retry(ctx context.Context, msg Message, delay time.Duration) error {
	return ErrUnavailable
}

func (Offline) DeadLetter(ctx context.Context, msg Message, reason string) error {
	return ErrUnavailable
}
