package image

import (
	"context"
	"net/http"
	"strings"
	"time"

	"promptfusion/internal/domain"
)

const ideogramBackend = "ideogram"

// IdeogramOptions configures the Ideogram API.
type IdeogramOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// IdeogramAdapter calls the synchronous /generate endpoint.
type IdeogramAdapter struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewIdeogramAdapter(opts IdeogramOptions) *IdeogramAdapter {
	a := &IdeogramAdapter{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		model:   opts.Model,
		client:  opts.HTTPClient,
	}
	if a.baseURL == "" {
		a.baseURL = "https://api.ideogram.ai"
	}
	if a.model == "" {
		a.model = "V_2"
	}
	if a.client == nil {
		a.client = &http.Client{Timeout: 120 * time.Second}
	}
	return a
}

type ideogramRequest struct {
	ImageRequest ideogramImageRequest `json:"image_request"`
}

type ideogramImageRequest struct {
	Prompt            string `json:"prompt"`
	AspectRatio       string `json:"aspect_ratio"`
	Model             string `json:"model"`
	MagicPromptOption string `json:"magic_prompt_option"`
}

type ideogramResponse struct {
	Created string `json:"created"`
	Data    []struct {
		URL        string `json:"url"`
		Seed       *int64 `json:"seed"`
		Resolution string `json:"resolution"`
		Prompt     string `json:"prompt"`
		IsSafe     *bool  `json:"is_image_safe"`
	} `json:"data"`
}

var ideogramRatios = map[string]string{
	"1:1":   "ASPECT_1_1",
	"16:9":  "ASPECT_16_9",
	"9:16":  "ASPECT_9_16",
	"16:10": "ASPECT_16_10",
	"10:16": "ASPECT_10_16",
	"3:2":   "ASPECT_3_2",
	"2:3":   "ASPECT_2_3",
	"4:3":   "ASPECT_4_3",
	"3:4":   "ASPECT_3_4",
	"3:1":   "ASPECT_3_1",
	"1:3":   "ASPECT_1_3",
}

// ideogramAspect maps a size to the closest aspect enum the API supports.
func ideogramAspect(s domain.Size) string {
	if v, ok := ideogramRatios[s.Ratio()]; ok {
		return v
	}
	switch {
	case s.Width*10 >= s.Height*17:
		return "ASPECT_16_9"
	case s.Height*10 >= s.Width*17:
		return "ASPECT_9_16"
	case s.Width > s.Height:
		return "ASPECT_3_2"
	case s.Height > s.Width:
		return "ASPECT_2_3"
	default:
		return "ASPECT_1_1"
	}
}

func (a *IdeogramAdapter) Generate(ctx context.Context, prompt, size string) ([]Image, error) {
	sz, err := domain.ParseSize(size)
	if err != nil {
		return nil, err
	}
	payload := ideogramRequest{ImageRequest: ideogramImageRequest{
		Prompt:            prompt,
		AspectRatio:       ideogramAspect(sz),
		Model:             a.model,
		MagicPromptOption: "AUTO",
	}}
	var resp ideogramResponse
	if err := doJSON(ctx, a.client, ideogramBackend, http.MethodPost, a.baseURL+"/generate",
		map[string]string{"Api-Key": a.apiKey}, payload, &resp); err != nil {
		return nil, err
	}

	images := make([]Image, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.URL == "" {
			continue
		}
		w, h := sz.Width, sz.Height
		if parsed, err := domain.ParseSize(d.Resolution); err == nil && d.Resolution != "" {
			w, h = parsed.Width, parsed.Height
		}
		meta := map[string]any{"model": a.model}
		if d.Prompt != "" {
			meta["revisedPrompt"] = d.Prompt
		}
		images = append(images, Image{URL: d.URL, Width: w, Height: h, Seed: d.Seed, Metadata: meta})
	}
	if len(images) == 0 {
		return nil, upstream(ideogramBackend, 0, "response carried no images")
	}
	return images, nil
}

var _ Adapter = (*IdeogramAdapter)(nil)
