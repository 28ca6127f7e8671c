package repo

import (
	"context"

	"github.com/google/uuid"

	"promptfusion/internal/domain"
	"promptfusion/internal/domain/jsoncfg"
	"promptfusion/internal/infra"
	"promptfusion/internal/sqlinline"
)

// RunRepositoryPG implements domain.RunRepository.
type RunRepositoryPG struct {
	sql infra.TxRunner
}

func NewRunRepository(sql infra.TxRunner) *RunRepositoryPG {
	return &RunRepositoryPG{sql: sql}
}

func (r *RunRepositoryPG) Create(ctx context.Context, run *domain.ModelRun) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertModelRun, run.ID, run.JobID, run.PromptID, run.Provider.String(), run.CostCredits)
	if err := row.Scan(&run.StartedAt); err != nil {
		if infra.IsUniqueViolation(err) {
			return domain.ErrDuplicateOperation
		}
		return domain.Persist("runs.create", err)
	}
	run.Status = domain.RunStatusRunning
	return nil
}

// Succeed inserts every output and flips the run in one transaction.
func (r *RunRepositoryPG) Succeed(ctx context.Context, runID string, outputs []domain.ImageOutput) error {
	err := r.sql.InTx(ctx, func(tx infra.SQLExecutor) error {
		for i := range outputs {
			out := &outputs[i]
			if out.ID == "" {
				out.ID = uuid.NewString()
			}
			out.RunID = runID
			if _, err := tx.Exec(ctx, sqlinline.QInsertImageOutput,
				out.ID, runID, out.URL, out.Width, out.Height, out.Seed, nullableJSON(out.Metadata),
			); err != nil {
				return err
			}
		}
		tag, err := tx.Exec(ctx, sqlinline.QSucceedModelRun, runID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrInvalidState
		}
		return nil
	})
	return domain.Persist("runs.succeed", err)
}

func (r *RunRepositoryPG) Fail(ctx context.Context, runID, message string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QFailModelRun, runID, message)
	if err != nil {
		return domain.Persist("runs.fail", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

// ListByJob returns runs in start order with their outputs attached.
func (r *RunRepositoryPG) ListByJob(ctx context.Context, jobID string) ([]domain.ModelRun, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListRunsByJob, jobID)
	if err != nil {
		return nil, domain.Persist("runs.list", err)
	}
	var (
		runs  []domain.ModelRun
		index = map[string]int{}
	)
	for rows.Next() {
		var (
			run      domain.ModelRun
			provider string
			status   string
		)
		if err := rows.Scan(&run.ID, &run.JobID, &run.PromptID, &provider, &status, &run.CostCredits,
			&run.Error, &run.StartedAt, &run.FinishedAt); err != nil {
			rows.Close()
			return nil, domain.Persist("runs.list", err)
		}
		run.Provider = domain.Provider(provider)
		run.Status = domain.RunStatus(status)
		index[run.ID] = len(runs)
		runs = append(runs, run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, domain.Persist("runs.list", err)
	}
	if len(runs) == 0 {
		return runs, nil
	}

	outRows, err := r.sql.Query(ctx, sqlinline.QListOutputsByJob, jobID)
	if err != nil {
		return nil, domain.Persist("runs.outputs", err)
	}
	defer outRows.Close()
	for outRows.Next() {
		var (
			out  domain.ImageOutput
			meta []byte
		)
		if err := outRows.Scan(&out.ID, &out.RunID, &out.URL, &out.Width, &out.Height, &out.Seed, &meta, &out.CreatedAt); err != nil {
			return nil, domain.Persist("runs.outputs", err)
		}
		if out.Metadata, err = jsoncfg.DecodeObject(meta); err != nil {
			return nil, domain.Persist("runs.outputs", err)
		}
		if i, ok := index[out.RunID]; ok {
			runs[i].Outputs = append(runs[i].Outputs, out)
		}
	}
	if err := outRows.Err(); err != nil {
		return nil, domain.Persist("runs.outputs", err)
	}
	return runs, nil
}
