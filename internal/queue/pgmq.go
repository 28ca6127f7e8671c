package queue

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/lib/pq"
)

// PGMQOptions names the queues and their timings.
type PGMQOptions struct {
	Queue      string
	DeadLetter string
	Visibility time.Duration
	Poll       time.Duration
}

// PGMQ is a Queue on the pgmq Postgres extension.
type PGMQ struct {
	db   *sql.DB
	opts PGMQOptions
}

// NewPGMQ wraps db, which must be opened with the lib/pq driver.
func NewPGMQ(db *sql.DB, opts PGMQOptions) *PGMQ {
	if opts.Queue == "" {
		opts.Queue = "promptfusion_jobs"
	}
	if opts.DeadLetter == "" {
		opts.DeadLetter = opts.Queue + "_dlq"
	}
	if opts.Visibility <= 0 {
		opts.Visibility = 10 * time.Minute
	}
	if opts.Poll <= 0 {
		opts.Poll = 5 * time.Second
	}
	return &PGMQ{db: db, opts: opts}
}

// Ensure creates both queues when they do not exist yet.
func (q *PGMQ) Ensure(ctx context.Context) error {
	for _, name := range []string{q.opts.Queue, q.opts.DeadLetter} {
		if _, err := q.db.ExecContext(ctx, "SELECT pgmq.create($1)", name); err != nil {
			return fmt.Errorf("pgmq create %s: %w", name, err)
		}
	}
	return nil
}

func (q *PGMQ) Enqueue(ctx context.Context, jobID string) error {
	body, err := encodePayload(jobID, "")
	if err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, "SELECT pgmq.send($1, $2::jsonb, 0)", q.opts.Queue, string(body)); err != nil {
		return fmt.Errorf("pgmq send failed: %w", err)
	}
	return nil
}

func (q *PGMQ) Receive(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	rows, err := q.db.QueryContext(ctx,
		"SELECT msg_id, read_ct, enqueued_at, message FROM pgmq.read_with_poll($1, $2, $3, $4)",
		q.opts.Queue, seconds(q.opts.Visibility), max, seconds(q.opts.Poll))
	if err != nil {
		return nil, fmt.Errorf("pgmq read_with_poll failed: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var (
			m    Message
			data []byte
		)
		if err := rows.Scan(&m.ID, &m.Deliveries, &m.EnqueuedAt, &data); err != nil {
			return nil, fmt.Errorf("pgmq read scan failed: %w", err)
		}
		jobID, err := decodePayload(data)
		if err != nil {
			// Poison message: park it where an operator can see it.
			if dlErr := q.moveToDeadLetter(ctx, m.ID, data); dlErr != nil {
				return nil, dlErr
			}
			continue
		}
		m.JobID = jobID
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgmq read rows error: %w", err)
	}
	return msgs, nil
}

func (q *PGMQ) Ack(ctx context.Context, msg Message) error {
	if _, err := q.db.ExecContext(ctx, "SELECT pgmq.delete($1, $2)", q.opts.Queue, pq.Array([]int64{msg.ID})); err != nil {
		return fmt.Errorf("pgmq delete failed: %w", err)
	}
	return nil
}

func (q *PGMQ) Retry(ctx context.Context, msg Message, delay time.Duration) error {
	if _, err := q.db.ExecContext(ctx, "SELECT pgmq.set_vt($1, $2, $3)", q.opts.Queue, msg.ID, seconds(delay)); err != nil {
		return fmt.Errorf("pgmq set_vt failed: %w", err)
	}
	return nil
}

func (q *PGMQ) DeadLetter(ctx context.Context, msg Message, reason string) error {
	body, err := encodePayload(msg.JobID, reason)
	if err != nil {
		return err
	}
	return q.moveToDeadLetter(ctx, msg.ID, body)
}

// moveToDeadLetter sends body to the DLQ and deletes the original in one
// transaction.
func (q *PGMQ) moveToDeadLetter(ctx context.Context, msgID int64, body []byte) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgmq dead letter: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, "SELECT pgmq.send($1, $2::jsonb, 0)", q.opts.DeadLetter, string(body)); err != nil {
		return fmt.Errorf("pgmq dead letter send failed: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "SELECT pgmq.delete($1, $2)", q.opts.Queue, pq.Array([]int64{msgID})); err != nil {
		return fmt.Errorf("pgmq dead letter delete failed: %w", err)
	}
	return tx.Commit()
}

// Depth reports how many messages wait in the main queue and the DLQ.
func (q *PGMQ) Depth(ctx context.Context) (pending, dead int64, err error) {
	const query = "SELECT queue_length FROM pgmq.metrics($1)"
	if err = q.db.QueryRowContext(ctx, query, q.opts.Queue).Scan(&pending); err != nil {
		return 0, 0, fmt.Errorf("pgmq metrics failed: %w", err)
	}
	if err = q.db.QueryRowContext(ctx, query, q.opts.DeadLetter).Scan(&dead); err != nil {
		return 0, 0, fmt.Errorf("pgmq metrics failed: %w", err)
	}
	return pending, dead, nil
}

func seconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

var _ Queue = (*PGMQ)(nil)
