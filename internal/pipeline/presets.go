package pipeline

import (
	"sort"
	"strings"

	"promptfusion/internal/domain"
)

// Preset is a named style template applied during synthesis.
type Preset struct {
	Key        string
	Name       string
	Objectives []string
	Technical  string
}

// Guidelines renders the preset as instruction text.
func (p Preset) Guidelines() string {
	var b strings.Builder
	b.WriteString("Key objectives:\n")
	for _, o := range p.Objectives {
		b.WriteString("- ")
		b.WriteString(o)
		b.WriteByte('\n')
	}
	b.WriteString("\nTechnical specs: ")
	b.WriteString(p.Technical)
	return b.String()
}

var presets = map[string]Preset{
	"reference": {
		Key:  "reference",
		Name: "Reference Image",
		Objectives: []string{
			"maintain the composition, style, lighting and mood of the reference",
			"preserve the reference's aesthetic while adapting the idea to it",
		},
		Technical: "composition similarity, color palette consistency, lighting direction, subject positioning",
	},
	"business-headshots": {
		Key:  "business-headshots",
		Name: "Business Headshots",
		Objectives: []string{
			"professional corporate appearance with confident approachable expressions",
			"clean neutral backgrounds and professional attire",
			"studio portrait lighting with sharp focus on the face",
		},
		Technical: "high resolution, professional color grading, natural skin tones, shallow depth of field",
	},
	"business-action": {
		Key:  "business-action",
		Name: "Business in Action",
		Objectives: []string{
			"active business scenarios such as meetings, presentations and collaboration",
			"modern office environments with candid authentic moments",
		},
		Technical: "photojournalistic style, mixed natural and office lighting, environmental storytelling",
	},
	"photorealistic": {
		Key:  "photorealistic",
		Name: "Photorealistic",
		Objectives: []string{
			"absolute photorealism with accurate physics, lighting and materials",
			"natural imperfections and realistic depth of field",
		},
		Technical: "high dynamic range, accurate color science, realistic grain, real-world lighting",
	},
	"artistic": {
		Key:  "artistic",
		Name: "Artistic",
		Objectives: []string{
			"creative interpretation over photorealism",
			"expressive color, texture and brushwork",
		},
		Technical: "visible artistic technique, stylistic coherence, creative color palettes",
	},
	"cinematic": {
		Key:  "cinematic",
		Name: "Cinematic",
		Objectives: []string{
			"film-like composition with dramatic motivated lighting",
			"cinematic color grading and layered depth",
		},
		Technical: "anamorphic lens character, film grain, volumetric light, atmospheric perspective",
	},
	"product": {
		Key:  "product",
		Name: "Product Photography",
		Objectives: []string{
			"clean commercial presentation that showcases product details",
			"neutral or complementary backgrounds with clear visual hierarchy",
		},
		Technical: "key, fill and rim studio lights, sharp focus, accurate colors",
	},
	"portrait": {
		Key:  "portrait",
		Name: "Portrait",
		Objectives: []string{
			"focus on the subject's character, expression and mood",
			"flattering lighting and angles",
		},
		Technical: "Rembrandt or butterfly lighting, eye focus, skin tone accuracy",
	},
	"landscape": {
		Key:  "landscape",
		Name: "Landscape",
		Objectives: []string{
			"expansive natural vistas with a sense of scale",
			"dramatic natural light and foreground interest",
		},
		Technical: "wide angle perspective, deep depth of field, atmospheric effects",
	},
}

// LookupPreset returns the preset for key. Keys are case-insensitive.
func LookupPreset(key string) (Preset, bool) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(key))]
	return p, ok
}

// PresetKeys lists the known preset keys in sorted order.
func PresetKeys() []string {
	keys := make([]string, 0, len(presets))
	for k := range presets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// providerGuidance tells the text model what each backend responds to best.
var providerGuidance = map[domain.Provider]string{
	domain.ProviderGPTImage: "photorealism, technical photography terms, explicit quality indicators",
	domain.ProviderDALLE3:   "natural conversational language, spatial relationships, framing",
	domain.ProviderGemini:   "structured descriptions, lighting and color theory, precise composition",
	domain.ProviderFluxPro2: "artistic emphasis, style references, mood and atmosphere",
	domain.ProviderIdeogram: "quality keywords, aesthetic tags, structured key descriptors",
}
