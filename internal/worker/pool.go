// Package worker pulls job ids off the queue and runs them through the
// pipeline with bounded concurrency and a job-start rate limit.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"promptfusion/internal/domain"
	"promptfusion/internal/queue"
)

// Processor runs one job to completion. Resume is used for redelivered
// messages, whose job may already be RUNNING from the failed attempt.
type Processor interface {
	Process(ctx context.Context, jobID string) (domain.JobStatus, error)
	Resume(ctx context.Context, jobID string) (domain.JobStatus, error)
}

// Config bounds the pool. RateLimit job starts are allowed per RateWindow.
type Config struct {
	Concurrency   int
	RateLimit     int
	RateWindow    time.Duration
	MaxDeliveries int
	RetryDelay    time.Duration
	Logger        zerolog.Logger
}

// Pool is the worker loop.
type Pool struct {
	queue         queue.Queue
	proc          Processor
	limiter       *rate.Limiter
	slots         chan struct{}
	maxDeliveries int
	retryDelay    time.Duration
	logger        zerolog.Logger
	wg            sync.WaitGroup
}

func NewPool(q queue.Queue, proc Processor, cfg Config) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = 5
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	return &Pool{
		queue:         q,
		proc:          proc,
		limiter:       rate.NewLimiter(rate.Every(cfg.RateWindow/time.Duration(cfg.RateLimit)), cfg.RateLimit),
		slots:         make(chan struct{}, cfg.Concurrency),
		maxDeliveries: cfg.MaxDeliveries,
		retryDelay:    cfg.RetryDelay,
		logger:        cfg.Logger,
	}
}

const receiveBackoff = 2 * time.Second

// Run blocks until ctx is done, then waits for in-flight jobs. Jobs already
// started are not interrupted by ctx.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info().Int("concurrency", cap(p.slots)).Msg("worker: started")
	defer p.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("worker: stopping, waiting for in-flight jobs")
			return nil
		case p.slots <- struct{}{}:
		}

		msgs, err := p.queue.Receive(ctx, 1)
		if err != nil {
			<-p.slots
			if ctx.Err() != nil {
				continue
			}
			p.logger.Error().Err(err).Msg("worker: failed to read queue")
			sleep(ctx, receiveBackoff)
			continue
		}
		if len(msgs) == 0 {
			<-p.slots
			continue
		}
		if err := p.limiter.Wait(ctx); err != nil {
			// Shutting down; the message becomes visible again after its timeout.
			<-p.slots
			continue
		}

		msg := msgs[0]
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer func() { <-p.slots }()
			p.handle(context.WithoutCancel(ctx), msg)
		}()
	}
}

func (p *Pool) handle(ctx context.Context, msg queue.Message) {
	log := p.logger.With().Str("job_id", msg.JobID).Int64("msg_id", msg.ID).Int("delivery", msg.Deliveries).Logger()
	started := time.Now()
	var (
		status domain.JobStatus
		err    error
	)
	if msg.Deliveries > 1 {
		status, err = p.proc.Resume(ctx, msg.JobID)
	} else {
		status, err = p.proc.Process(ctx, msg.JobID)
	}
	switch {
	case err == nil:
		log.Info().Str("status", string(status)).Dur("elapsed", time.Since(started)).Msg("worker: job done")
		p.ack(ctx, msg, log)
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrNotFound):
		log.Warn().Err(err).Msg("worker: job not runnable, dropping message")
		p.ack(ctx, msg, log)
	case msg.Deliveries >= p.maxDeliveries:
		log.Error().Err(err).Msg("worker: giving up, moving message to dead-letter queue")
		if dlErr := p.queue.DeadLetter(ctx, msg, err.Error()); dlErr != nil {
			log.Error().Err(dlErr).Msg("worker: dead-letter failed")
		}
	default:
		delay := p.retryDelay * time.Duration(msg.Deliveries)
		log.Warn().Err(err).Dur("retry_in", delay).Msg("worker: job failed, will retry")
		if rErr := p.queue.Retry(ctx, msg, delay); rErr != nil {
			log.Error().Err(rErr).Msg("worker: retry failed")
		}
	}
}

func (p *Pool) ack(ctx context.Context, msg queue.Message, log zerolog.Logger) {
	if err := p.queue.Ack(ctx, msg); err != nil {
		log.Error().Err(err).Msg("worker: ack failed")
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
