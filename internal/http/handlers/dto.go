package handlers

import (
	"time"

	"promptfusion/internal/domain"
	"promptfusion/internal/jobs"
)

type jobDTO struct {
	ID              string            `json:"id"`
	Status          domain.JobStatus  `json:"status"`
	Idea            string            `json:"idea,omitempty"`
	PresetKey       string            `json:"presetKey,omitempty"`
	AspectRatio     string            `json:"aspectRatio"`
	MoodTags        string            `json:"moodTags,omitempty"`
	PresetAnswers   map[string]string `json:"presetAnswers,omitempty"`
	Bypass          bool              `json:"bypassPromptCreation"`
	DirectPrompt    string            `json:"directPrompt,omitempty"`
	Providers       []domain.Provider `json:"providers"`
	ReservedCredits int               `json:"reservedCredits"`
	GradeScore      *int              `json:"gradeScore,omitempty"`
	GradeNotes      string            `json:"gradeNotes,omitempty"`
	Error           string            `json:"error,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func toJobDTO(j domain.Job) jobDTO {
	return jobDTO{
		ID:              j.ID,
		Status:          j.Status,
		Idea:            j.Idea,
		PresetKey:       j.PresetKey,
		AspectRatio:     j.AspectRatio,
		MoodTags:        j.MoodTags,
		PresetAnswers:   j.PresetAnswers,
		Bypass:          j.Bypass,
		DirectPrompt:    j.DirectPrompt,
		Providers:       j.Providers,
		ReservedCredits: j.ReservedCredits,
		GradeScore:      j.GradeScore,
		GradeNotes:      j.GradeNotes,
		Error:           j.ErrorMessage,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
	}
}

type promptDTO struct {
	ID        string            `json:"id"`
	Kind      domain.PromptKind `json:"kind"`
	Provider  domain.Provider   `json:"provider,omitempty"`
	Text      string            `json:"text"`
	Negative  string            `json:"negative,omitempty"`
	Style     map[string]any    `json:"style,omitempty"`
	Rubric    *domain.Rubric    `json:"rubric,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

func toPromptDTO(p *domain.Prompt) *promptDTO {
	if p == nil {
		return nil
	}
	return &promptDTO{
		ID:        p.ID,
		Kind:      p.Kind,
		Provider:  p.Provider,
		Text:      p.Text,
		Negative:  p.Negative,
		Style:     p.Style,
		Rubric:    p.Rubric,
		CreatedAt: p.CreatedAt,
	}
}

type outputDTO struct {
	ID       string         `json:"id"`
	URL      string         `json:"url"`
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	Seed     *int64         `json:"seed,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type runDTO struct {
	ID          string           `json:"id"`
	Provider    domain.Provider  `json:"provider"`
	Status      domain.RunStatus `json:"status"`
	CostCredits int              `json:"costCredits"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"startedAt"`
	FinishedAt  *time.Time       `json:"finishedAt,omitempty"`
	Outputs     []outputDTO      `json:"outputs"`
}

func toRunDTO(r domain.ModelRun) runDTO {
	out := runDTO{
		ID:          r.ID,
		Provider:    r.Provider,
		Status:      r.Status,
		CostCredits: r.CostCredits,
		Error:       r.Error,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Outputs:     make([]outputDTO, 0, len(r.Outputs)),
	}
	for _, o := range r.Outputs {
		out.Outputs = append(out.Outputs, outputDTO{
			ID:       o.ID,
			URL:      o.URL,
			Width:    o.Width,
			Height:   o.Height,
			Seed:     o.Seed,
			Metadata: o.Metadata,
		})
	}
	return out
}

type viewDTO struct {
	Job             jobDTO           `json:"job"`
	DraftPrompt     *promptDTO       `json:"draftPrompt,omitempty"`
	GradedPrompt    *promptDTO       `json:"gradedPrompt,omitempty"`
	ProviderPrompts []promptDTO      `json:"providerPrompts"`
	Runs            []runDTO         `json:"runs"`
	Counts          domain.RunCounts `json:"counts"`
}

func toViewDTO(v *jobs.View) viewDTO {
	out := viewDTO{
		Job:             toJobDTO(v.Job),
		DraftPrompt:     toPromptDTO(v.Draft),
		GradedPrompt:    toPromptDTO(v.Graded),
		ProviderPrompts: make([]promptDTO, 0, len(v.Prompts)),
		Runs:            make([]runDTO, 0, len(v.Runs)),
		Counts:          v.Counts,
	}
	for i := range v.Prompts {
		out.ProviderPrompts = append(out.ProviderPrompts, *toPromptDTO(&v.Prompts[i]))
	}
	for _, r := range v.Runs {
		out.Runs = append(out.Runs, toRunDTO(r))
	}
	return out
}

type submissionDTO struct {
	Job           jobDTO `json:"job"`
	EstimatedCost int    `json:"estimatedCost"`
	Balance       int    `json:"creditsBalance"`
	Enqueued      bool   `json:"enqueued"`
}

type creditEventDTO struct {
	ID        string                 `json:"id"`
	Type      domain.CreditEventType `json:"type"`
	Amount    int                    `json:"amount"`
	Reason    string                 `json:"reason"`
	JobID     string                 `json:"jobId,omitempty"`
	RunID     string                 `json:"runId,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}
