package repo

import (
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"promptfusion/internal/domain"
	"promptfusion/internal/domain/jsoncfg"
)

// scanJob reads the job columns followed by any extra destinations.
func scanJob(row pgx.Row, extra ...any) (*domain.Job, error) {
	var (
		job       domain.Job
		answers   []byte
		providers []string
		status    string
	)
	dest := []any{
		&job.ID,
		&job.UserID,
		&job.Idea,
		&job.PresetKey,
		&job.AspectRatio,
		&job.MoodTags,
		&answers,
		&job.Bypass,
		&job.DirectPrompt,
		&providers,
		&job.ReservedCredits,
		&status,
		&job.DraftPromptID,
		&job.GradedPromptID,
		&job.GradeScore,
		&job.GradeNotes,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	for _, p := range providers {
		job.Providers = append(job.Providers, domain.Provider(p))
	}
	if len(answers) > 0 && string(answers) != "null" {
		if err := json.Unmarshal(answers, &job.PresetAnswers); err != nil {
			return nil, err
		}
	}
	return &job, nil
}

func scanPrompt(row pgx.Row) (*domain.Prompt, error) {
	var (
		p        domain.Prompt
		kind     string
		provider string
		style    []byte
		rubric   []byte
	)
	if err := row.Scan(&p.ID, &p.JobID, &kind, &provider, &p.Text, &p.Negative, &style, &rubric, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Kind = domain.PromptKind(kind)
	p.Provider = domain.Provider(provider)
	var err error
	if p.Style, err = jsoncfg.DecodeObject(style); err != nil {
		return nil, err
	}
	if len(rubric) > 0 && string(rubric) != "null" {
		var r domain.Rubric
		if err := json.Unmarshal(rubric, &r); err != nil {
			return nil, err
		}
		p.Rubric = &r
	}
	return &p, nil
}

func scanEvent(row pgx.Row) (*domain.CreditEvent, error) {
	var (
		ev  domain.CreditEvent
		typ string
	)
	if err := row.Scan(&ev.ID, &ev.UserID, &ev.Amount, &typ, &ev.Reason, &ev.JobID, &ev.RunID, &ev.CreatedAt); err != nil {
		return nil, err
	}
	ev.Type = domain.CreditEventType(typ)
	return &ev, nil
}

func providerNames(providers []domain.Provider) []string {
	out := make([]string, len(providers))
	for i, p := range providers {
		out[i] = p.String()
	}
	return out
}

// nullable maps empty identifiers to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(v any) []byte {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]string:
		if len(t) == 0 {
			return nil
		}
	case map[string]any:
		if len(t) == 0 {
			return nil
		}
	case *domain.Rubric:
		if t == nil {
			return nil
		}
	}
	return jsoncfg.MustMarshal(v)
}
