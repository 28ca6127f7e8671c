package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"promptfusion/internal/domain"
	"promptfusion/internal/providers/textgen"
)

const (
	// GradeThreshold ends refinement as soon as a prompt scores at least this.
	GradeThreshold = 97
	// DefaultGradingIterations caps Refine when the caller passes no limit.
	DefaultGradingIterations = 5
)

// Grade is one grading verdict. Improved is empty when the grader offers no
// revision.
type Grade struct {
	Score    int
	Rubric   domain.Rubric
	Notes    string
	Improved string
}

// Grader scores a prompt against the original idea.
type Grader interface {
	Grade(ctx context.Context, prompt, idea string) (Grade, error)
}

// fallbackGrade is used when the grader answers with something undecodable.
func fallbackGrade() Grade {
	return Grade{
		Score:  85,
		Rubric: domain.Rubric{Clarity: 20, DetailLevel: 20, TechnicalQuality: 17, CompositionGuidance: 15, Coherence: 13},
		Notes:  "Automated grading failed, manual review recommended",
	}
}

// ModelGrader grades with a text model.
type ModelGrader struct {
	gen    textgen.Generator
	logger zerolog.Logger
}

func NewModelGrader(gen textgen.Generator, logger zerolog.Logger) *ModelGrader {
	return &ModelGrader{gen: gen, logger: logger}
}

const graderSystem = `You grade image generation prompts from 0 to 100.

Rubric:
1. clarity (25): is the subject and intent clear?
2. detailLevel (25): are visual details rich and specific?
3. technicalQuality (20): are quality boosters and technical specs present?
4. compositionGuidance (15): does it guide framing, lighting and atmosphere?
5. coherence (15): are all elements consistent?

Respond with JSON only:
{"score": 0, "rubricJson": {"clarity": 0, "detailLevel": 0, "technicalQuality": 0, "compositionGuidance": 0, "coherence": 0},
 "gradeNotes": "two or three sentences", "improvedPrompt": "revised prompt, or null when score >= 97"}`

type gradePayload struct {
	Score          *int          `json:"score"`
	Rubric         domain.Rubric `json:"rubricJson"`
	GradeNotes     string        `json:"gradeNotes"`
	ImprovedPrompt *string       `json:"improvedPrompt"`
}

func (g *ModelGrader) Grade(ctx context.Context, prompt, idea string) (Grade, error) {
	user := fmt.Sprintf("Original idea: %q\n\nPrompt to grade:\n%s", idea, prompt)
	raw, err := g.gen.Complete(ctx, textgen.Instruction{System: graderSystem, User: user, MaxTokens: 1500})
	if err != nil {
		return Grade{}, err
	}
	payload, err := textgen.ParseJSON[gradePayload](raw)
	if err != nil || payload.Score == nil {
		g.logger.Warn().Err(err).Msg("pipeline: grader output unparsable, using conservative grade")
		return fallbackGrade(), nil
	}
	out := Grade{
		Score:  clampScore(*payload.Score),
		Rubric: payload.Rubric,
		Notes:  strings.TrimSpace(payload.GradeNotes),
	}
	if payload.ImprovedPrompt != nil {
		out.Improved = strings.TrimSpace(*payload.ImprovedPrompt)
	}
	return out, nil
}

func clampScore(n int) int {
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	default:
		return n
	}
}

// LocalGrader returns the conservative grade without revising. Refine stops
// after one call with it.
type LocalGrader struct{}

func (LocalGrader) Grade(ctx context.Context, prompt, idea string) (Grade, error) {
	if err := ctx.Err(); err != nil {
		return Grade{}, err
	}
	g := fallbackGrade()
	g.Notes = "Graded locally without a text model"
	return g, nil
}

// Refinement is the outcome of Refine.
type Refinement struct {
	Prompt     string
	Score      int
	Rubric     domain.Rubric
	Notes      string
	Iterations int
}

// ErrNothingGraded is returned by Refine when the first grading call fails.
var ErrNothingGraded = errors.New("no grading iteration completed")

// Refine grades prompt and follows the grader's revisions until a score
// reaches GradeThreshold, the grader stops offering revisions, a call fails or
// maxIterations calls were made. Unless the threshold was reached it returns
// the best-scoring prompt seen. maxIterations <= 0 means the default.
func Refine(ctx context.Context, grader Grader, prompt, idea string, maxIterations int) (Refinement, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultGradingIterations
	}
	best := Refinement{Prompt: prompt, Score: -1}
	current := prompt
	for i := 0; i < maxIterations; i++ {
		g, err := grader.Grade(ctx, current, idea)
		if err != nil {
			if best.Iterations == 0 {
				return Refinement{Prompt: prompt}, fmt.Errorf("%w: %w", ErrNothingGraded, err)
			}
			break
		}
		best.Iterations = i + 1
		if g.Score > best.Score {
			best.Prompt, best.Score, best.Rubric, best.Notes = current, g.Score, g.Rubric, g.Notes
		}
		if g.Score >= GradeThreshold {
			return best, nil
		}
		if g.Improved == "" || g.Improved == current {
			break
		}
		current = g.Improved
	}
	return best, nil
}

var (
	_ Grader = (*ModelGrader)(nil)
	_ Grader = LocalGrader{}
)
