package domain

import "time"

// PromptKind distinguishes the snapshots a job produces.
type PromptKind string

const (
	PromptKindDraft    PromptKind = "DRAFT"
	PromptKindGraded   PromptKind = "GRADED"
	PromptKindProvider PromptKind = "PROVIDER"
)

// Rubric holds per-criterion grading scores.
type Rubric struct {
	Clarity             int `json:"clarity"`
	DetailLevel         int `json:"detailLevel"`
	TechnicalQuality    int `json:"technicalQuality"`
	CompositionGuidance int `json:"compositionGuidance"`
	Coherence           int `json:"coherence"`
}

// Total sums the rubric criteria.
func (r Rubric) Total() int {
	return r.Clarity + r.DetailLevel + r.TechnicalQuality + r.CompositionGuidance + r.Coherence
}

// Prompt is an immutable snapshot of synthesized prompt text.
type Prompt struct {
	ID        string
	JobID     string
	Kind      PromptKind
	Provider  Provider
	Text      string
	Negative  string
	Style     map[string]any
	Rubric    *Rubric
	CreatedAt time.Time
}
