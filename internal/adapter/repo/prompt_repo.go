package repo

import (
	"context"

	"promptfusion/internal/domain"
	"promptfusion/internal/infra"
	"promptfusion/internal/sqlinline"
)

// PromptRepositoryPG implements domain.PromptRepository.
type PromptRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewPromptRepository(sql infra.SQLExecutor) *PromptRepositoryPG {
	return &PromptRepositoryPG{sql: sql}
}

func (r *PromptRepositoryPG) Create(ctx context.Context, p *domain.Prompt) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertPrompt,
		p.ID,
		p.JobID,
		string(p.Kind),
		p.Provider.String(),
		p.Text,
		p.Negative,
		nullableJSON(p.Style),
		nullableJSON(p.Rubric),
	)
	if err := row.Scan(&p.CreatedAt); err != nil {
		return domain.Persist("prompts.create", err)
	}
	return nil
}

func (r *PromptRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Prompt, error) {
	p, err := scanPrompt(r.sql.QueryRow(ctx, sqlinline.QSelectPromptByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Persist("prompts.get", err)
	}
	return p, nil
}

func (r *PromptRepositoryPG) ListByJob(ctx context.Context, jobID string) ([]domain.Prompt, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListPromptsByJob, jobID)
	if err != nil {
		return nil, domain.Persist("prompts.list", err)
	}
	defer rows.Close()

	var prompts []domain.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, domain.Persist("prompts.list", err)
		}
		prompts = append(prompts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Persist("prompts.list", err)
	}
	return prompts, nil
}
