package repo

import (
	"context"
	"fmt"

	"promptfusion/internal/domain"
	"promptfusion/internal/infra"
	"promptfusion/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJobByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Persist("jobs.get", err)
	}
	return job, nil
}

// ListByUser returns the user's jobs, newest first.
func (r *JobRepositoryPG) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Job, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListJobsByUser, userID, limit, offset)
	if err != nil {
		return nil, domain.Persist("jobs.list", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, domain.Persist("jobs.list", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Persist("jobs.list", err)
	}
	return jobs, nil
}

// Status returns only the status column; the worker polls it at stage boundaries.
func (r *JobRepositoryPG) Status(ctx context.Context, id string) (domain.JobStatus, error) {
	var status string
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectJobStatus, id).Scan(&status); err != nil {
		if infra.IsNoRows(err) {
			return "", domain.ErrNotFound
		}
		return "", domain.Persist("jobs.status", err)
	}
	return domain.JobStatus(status), nil
}

// Claim moves a QUEUED job to RUNNING.
func (r *JobRepositoryPG) Claim(ctx context.Context, id string) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QClaimJob, id))
	if err == nil {
		return job, nil
	}
	if !infra.IsNoRows(err) {
		return nil, domain.Persist("jobs.claim", err)
	}
	return nil, r.stateError(ctx, id, "claim")
}

// Resume touches a RUNNING job and returns it.
func (r *JobRepositoryPG) Resume(ctx context.Context, id string) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QResumeJob, id))
	if err == nil {
		return job, nil
	}
	if !infra.IsNoRows(err) {
		return nil, domain.Persist("jobs.resume", err)
	}
	return nil, r.stateError(ctx, id, "resume")
}

// Reset moves a RUNNING job back to QUEUED.
func (r *JobRepositoryPG) Reset(ctx context.Context, id string) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QResetJob, id)
	if err != nil {
		return false, domain.Persist("jobs.reset", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *JobRepositoryPG) AttachDraft(ctx context.Context, id, promptID string) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QAttachDraftPrompt, id, promptID); err != nil {
		return domain.Persist("jobs.attach_draft", err)
	}
	return nil
}

func (r *JobRepositoryPG) AttachGrade(ctx context.Context, id, promptID string, score *int, notes string) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QAttachGrade, id, promptID, score, notes); err != nil {
		return domain.Persist("jobs.attach_grade", err)
	}
	return nil
}

// Finish moves a RUNNING job to status.
func (r *JobRepositoryPG) Finish(ctx context.Context, id string, status domain.JobStatus, errMsg string) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("jobs: finish with non-terminal status %q", status)
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QFinishJob, id, string(status), errMsg)
	if err != nil {
		return false, domain.Persist("jobs.finish", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Cancel moves a QUEUED or RUNNING job to CANCELED under a row lock and
// reports the status it held right before.
func (r *JobRepositoryPG) Cancel(ctx context.Context, id string) (*domain.Job, domain.JobStatus, error) {
	var prior string
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QCancelJob, id), &prior)
	if err == nil {
		return job, domain.JobStatus(prior), nil
	}
	if !infra.IsNoRows(err) {
		return nil, "", domain.Persist("jobs.cancel", err)
	}
	return nil, "", r.stateError(ctx, id, "cancel")
}

// stateError distinguishes a missing job from one in the wrong state after a
// conditional update matched nothing.
func (r *JobRepositoryPG) stateError(ctx context.Context, id, op string) error {
	status, err := r.Status(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: cannot %s job in status %s", domain.ErrInvalidState, op, status)
}
