package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"promptfusion/internal/domain"
	"promptfusion/internal/providers/textgen"
)

const (
	fallbackNegatives = "low quality, blurry, distorted, ugly, bad anatomy"
	localNegatives    = "blurry, low quality, distorted, ugly, bad anatomy, watermark, text, signature"

	sourceModel  = "model"
	sourceLocal  = "local"
	sourceBypass = "bypass"
)

// SynthesisInput is what a job contributes to prompt synthesis.
type SynthesisInput struct {
	Idea        string
	PresetKey   string
	AspectRatio string
	MoodTags    string
	Providers   []domain.Provider
}

// Synthesis is a master prompt plus one tailored variant per provider.
type Synthesis struct {
	Master     string
	Negatives  string
	StyleNotes string
	Variants   map[domain.Provider]string
	Source     string
	// Fallback names the stage whose model output could not be decoded.
	Fallback string
}

// Style returns the metadata stored on the draft prompt.
func (s Synthesis) Style(in SynthesisInput) map[string]any {
	style := map[string]any{"preset": "none", "source": s.Source}
	if p, ok := LookupPreset(in.PresetKey); ok {
		style["preset"] = p.Key
		style["presetName"] = p.Name
	}
	if s.StyleNotes != "" {
		style["styleNotes"] = s.StyleNotes
	}
	if in.MoodTags != "" {
		style["moodTags"] = in.MoodTags
	}
	if in.AspectRatio != "" {
		style["size"] = in.AspectRatio
	}
	if s.Fallback != "" {
		style["fallbackReason"] = s.Fallback
	}
	return style
}

// Synthesizer turns an idea into a master prompt and provider variants.
type Synthesizer interface {
	Synthesize(ctx context.Context, in SynthesisInput) (Synthesis, error)
}

func requestedProviders(in SynthesisInput) []domain.Provider {
	if len(in.Providers) == 0 {
		return domain.AllProviders()
	}
	return in.Providers
}

func resolvePreset(logger zerolog.Logger, key string) (Preset, bool) {
	if strings.TrimSpace(key) == "" {
		return Preset{}, false
	}
	p, ok := LookupPreset(key)
	if !ok {
		logger.Warn().Str("preset", key).Msg("pipeline: unknown preset ignored")
	}
	return p, ok
}

// ModelSynthesizer asks a text model for the master prompt and then for the
// provider variants. Transport failures are returned; undecodable answers fall
// back to safe defaults.
type ModelSynthesizer struct {
	gen    textgen.Generator
	logger zerolog.Logger
}

func NewModelSynthesizer(gen textgen.Generator, logger zerolog.Logger) *ModelSynthesizer {
	return &ModelSynthesizer{gen: gen, logger: logger}
}

const masterSystem = `You are an expert prompt engineer for image generation models.
Turn the user's idea into one detailed master prompt that applies the preset guidelines
and includes technical specifications suited to the style. Also write a negative prompt.

Respond with JSON only:
{"masterPrompt": "200-300 words", "negatives": "things to avoid", "styleNotes": "brief notes on style decisions"}`

const variantsSystem = `You adapt image generation prompts to specific models.
Rewrite the master prompt once per listed provider, playing to that provider's strengths.

Respond with JSON only:
{"prompts": {"PROVIDER_ID": "prompt text"}}`

type masterPayload struct {
	MasterPrompt string `json:"masterPrompt"`
	Negatives    string `json:"negatives"`
	StyleNotes   string `json:"styleNotes"`
}

type variantsPayload struct {
	Prompts map[string]string `json:"prompts"`
}

func (s *ModelSynthesizer) Synthesize(ctx context.Context, in SynthesisInput) (Synthesis, error) {
	preset, hasPreset := resolvePreset(s.logger, in.PresetKey)

	var user strings.Builder
	fmt.Fprintf(&user, "Create a master image generation prompt for this idea:\n\n%q\n\n", in.Idea)
	if hasPreset {
		fmt.Fprintf(&user, "Preset style: %s\n\nPreset guidelines:\n%s\n\n", preset.Name, preset.Guidelines())
	}
	if in.AspectRatio != "" {
		fmt.Fprintf(&user, "Aspect ratio: %s\n", in.AspectRatio)
	}
	if in.MoodTags != "" {
		fmt.Fprintf(&user, "Mood/tags: %s\n", in.MoodTags)
	}

	raw, err := s.gen.Complete(ctx, textgen.Instruction{System: masterSystem, User: user.String(), MaxTokens: 2000})
	if err != nil {
		return Synthesis{}, fmt.Errorf("master prompt: %w", err)
	}
	out := Synthesis{Source: sourceModel}
	// template is set when the model gave nothing usable; its variants then
	// stand in for any the model also leaves out.
	var template *Synthesis
	master, perr := textgen.ParseJSON[masterPayload](raw)
	switch {
	case perr == nil && strings.TrimSpace(master.MasterPrompt) != "":
		out.Master = strings.TrimSpace(master.MasterPrompt)
		out.Negatives = strings.TrimSpace(master.Negatives)
		out.StyleNotes = strings.TrimSpace(master.StyleNotes)
		if out.Negatives == "" {
			out.Negatives = fallbackNegatives
		}
	case perr != nil && strings.TrimSpace(raw) != "":
		s.logger.Warn().Err(perr).Msg("pipeline: master prompt output unparsable, using raw text")
		out.Master = strings.TrimSpace(raw)
		out.Negatives = fallbackNegatives
		out.StyleNotes = "Fallback prompt generation"
		out.Fallback = "master_unparsable"
	default:
		local, err := NewLocalSynthesizer(s.logger).Synthesize(ctx, in)
		if err != nil {
			return Synthesis{}, err
		}
		s.logger.Warn().Int("raw_len", len(raw)).Msg("pipeline: master prompt output empty, using template prompt")
		template = &local
		out.Master = local.Master
		out.Negatives = local.Negatives
		out.StyleNotes = "Fallback prompt generation"
		out.Fallback = "master_empty"
	}

	providers := requestedProviders(in)
	user.Reset()
	fmt.Fprintf(&user, "Master prompt:\n%s\n\nNegative prompt:\n%s\n\n", out.Master, out.Negatives)
	if hasPreset {
		fmt.Fprintf(&user, "Preset context: %s\n\n", preset.Name)
	}
	user.WriteString("Providers:\n")
	for _, p := range providers {
		fmt.Fprintf(&user, "- %s: %s\n", p, providerGuidance[p])
	}

	raw, err = s.gen.Complete(ctx, textgen.Instruction{System: variantsSystem, User: user.String(), MaxTokens: 3000})
	if err != nil {
		return Synthesis{}, fmt.Errorf("provider prompts: %w", err)
	}
	variants, perr := textgen.ParseJSON[variantsPayload](raw)
	if perr != nil {
		s.logger.Warn().Err(perr).Msg("pipeline: provider prompt output unparsable, reusing master prompt")
		if out.Fallback == "" {
			out.Fallback = "variants_unparsable"
		}
	}
	out.Variants = make(map[domain.Provider]string, len(providers))
	for _, p := range providers {
		text := strings.TrimSpace(variants.Prompts[string(p)])
		if text == "" && template != nil {
			text = template.Variants[p]
		}
		if text == "" {
			text = out.Master
		}
		out.Variants[p] = text
	}
	return out, nil
}

// LocalSynthesizer builds prompts by template concatenation. It needs no
// network access and always produces a variant for every provider.
type LocalSynthesizer struct {
	logger zerolog.Logger
}

func NewLocalSynthesizer(logger zerolog.Logger) *LocalSynthesizer {
	return &LocalSynthesizer{logger: logger}
}

func (s *LocalSynthesizer) Synthesize(ctx context.Context, in SynthesisInput) (Synthesis, error) {
	if err := ctx.Err(); err != nil {
		return Synthesis{}, err
	}
	idea := strings.TrimSpace(in.Idea)
	master := idea
	notes := "General"
	if preset, ok := resolvePreset(s.logger, in.PresetKey); ok {
		master = fmt.Sprintf("%s. %s", idea, strings.Join(preset.Objectives, ", "))
		notes = preset.Name
	}
	if mood := strings.TrimSpace(in.MoodTags); mood != "" {
		// Casers keep state, so one per call.
		master += ". Mood: " + cases.Title(language.English).String(mood)
	}
	if size, err := domain.ParseSize(in.AspectRatio); err == nil && size.Phrase() != "" {
		master += ", " + size.Phrase()
	}

	variants := make(map[domain.Provider]string)
	for _, p := range requestedProviders(in) {
		variants[p] = localVariant(p, master)
	}
	return Synthesis{
		Master:     master,
		Negatives:  localNegatives,
		StyleNotes: notes,
		Variants:   variants,
		Source:     sourceLocal,
	}, nil
}

func localVariant(p domain.Provider, master string) string {
	switch p {
	case domain.ProviderGPTImage:
		return master + ", professional photography, high resolution, sharp focus, detailed, 8k quality"
	case domain.ProviderDALLE3:
		return "A highly detailed image of " + master + ", with excellent composition and lighting"
	case domain.ProviderGemini:
		return master + ". Technical specifications: high quality, professional grade, detailed rendering"
	case domain.ProviderFluxPro2:
		return master + ", artistic composition, creative interpretation, visually stunning"
	case domain.ProviderIdeogram:
		return master + ", masterpiece, best quality, highly detailed, professional"
	default:
		return master
	}
}

var (
	_ Synthesizer = (*ModelSynthesizer)(nil)
	_ Synthesizer = (*LocalSynthesizer)(nil)
)
