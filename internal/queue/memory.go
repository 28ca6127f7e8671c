package queue

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	msg       Message
	visibleAt time.Time
}

// DeadMessage is a message parked in the memory DLQ.
type DeadMessage struct {
	Message
	Reason string
}

// Memory is an in-process Queue with the same visibility semantics as pgmq.
// It serves single-binary development setups and tests.
type Memory struct {
	mu         sync.Mutex
	entries    []*memEntry
	dead       []DeadMessage
	nextID     int64
	visibility time.Duration
	poll       time.Duration
	notify     chan struct{}
	now        func() time.Time
}

func NewMemory(visibility, poll time.Duration) *Memory {
	if visibility <= 0 {
		visibility = 10 * time.Minute
	}
	if poll <= 0 {
		poll = time.Second
	}
	return &Memory{visibility: visibility, poll: poll, notify: make(chan struct{}, 1), now: time.Now}
}

func (m *Memory) Enqueue(ctx context.Context, jobID string) error {
	if _, err := encodePayload(jobID, ""); err != nil {
		return err
	}
	m.mu.Lock()
	m.nextID++
	now := m.now()
	m.entries = append(m.entries, &memEntry{msg: Message{ID: m.nextID, JobID: jobID, EnqueuedAt: now}, visibleAt: now})
	m.mu.Unlock()
	m.wake()
	return nil
}

func (m *Memory) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *Memory) take(max int) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var out []Message
	for _, e := range m.entries {
		if len(out) == max {
			break
		}
		if e.visibleAt.After(now) {
			continue
		}
		e.msg.Deliveries++
		e.visibleAt = now.Add(m.visibility)
		out = append(out, e.msg)
	}
	return out
}

func (m *Memory) Receive(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	deadline := time.NewTimer(m.poll)
	defer deadline.Stop()
	tick := time.NewTicker(m.poll / 10)
	defer tick.Stop()
	for {
		if msgs := m.take(max); len(msgs) > 0 {
			return msgs, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case <-m.notify:
		case <-tick.C:
		}
	}
}

func (m *Memory) remove(id int64) (Message, bool) {
	for i, e := range m.entries {
		if e.msg.ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return e.msg, true
		}
	}
	return Message{}, false
}

func (m *Memory) Ack(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(msg.ID)
	return nil
}

func (m *Memory) Retry(ctx context.Context, msg Message, delay time.Duration) error {
	m.mu.Lock()
	for _, e := range m.entries {
		if e.msg.ID == msg.ID {
			e.visibleAt = m.now().Add(delay)
		}
	}
	m.mu.Unlock()
	if delay <= 0 {
		m.wake()
	}
	return nil
}

func (m *Memory) DeadLetter(ctx context.Context, msg Message, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.remove(msg.ID); ok {
		msg = stored
	}
	m.dead = append(m.dead, DeadMessage{Message: msg, Reason: reason})
	return nil
}

// Len counts messages not yet acked or dead-lettered.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Dead returns the dead-lettered messages.
func (m *Memory) Dead() []DeadMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DeadMessage(nil), m.dead...)
}

var _ Queue = (*Memory)(nil)
