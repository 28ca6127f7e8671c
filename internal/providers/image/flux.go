package image

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"promptfusion/internal/domain"
)

const fluxBackend = "flux"

// FluxOptions configures the Black Forest Labs API.
type FluxOptions struct {
	APIKey       string
	BaseURL      string
	Model        string
	HTTPClient   *http.Client
	PollInterval time.Duration
	PollAttempts int
}

// FluxAdapter submits a generation task and polls until the sample is ready.
type FluxAdapter struct {
	apiKey   string
	baseURL  string
	model    string
	client   *http.Client
	interval time.Duration
	attempts int
}

func NewFluxAdapter(opts FluxOptions) *FluxAdapter {
	a := &FluxAdapter{
		apiKey:   strings.TrimSpace(opts.APIKey),
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		model:    opts.Model,
		client:   opts.HTTPClient,
		interval: opts.PollInterval,
		attempts: opts.PollAttempts,
	}
	if a.baseURL == "" {
		a.baseURL = "https://api.bfl.ml/v1"
	}
	if a.model == "" {
		a.model = "flux-pro-1.1"
	}
	if a.client == nil {
		a.client = &http.Client{Timeout: 60 * time.Second}
	}
	if a.interval <= 0 {
		a.interval = 2 * time.Second
	}
	if a.attempts <= 0 {
		a.attempts = 30
	}
	return a
}

type fluxSubmitRequest struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type fluxSubmitResponse struct {
	ID         string `json:"id"`
	PollingURL string `json:"polling_url"`
}

type fluxResultResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result struct {
		Sample string `json:"sample"`
		Seed   *int64 `json:"seed"`
	} `json:"result"`
}

func (a *FluxAdapter) Generate(ctx context.Context, prompt, size string) ([]Image, error) {
	sz, err := domain.ParseSize(size)
	if err != nil {
		return nil, err
	}
	width, height := fluxDimensions(sz)
	headers := map[string]string{"X-Key": a.apiKey}

	var task fluxSubmitResponse
	if err := doJSON(ctx, a.client, fluxBackend, http.MethodPost, a.baseURL+"/"+a.model, headers,
		fluxSubmitRequest{Prompt: prompt, Width: width, Height: height}, &task); err != nil {
		return nil, err
	}
	if task.ID == "" {
		return nil, upstream(fluxBackend, 0, "submit returned no task id")
	}
	pollURL := task.PollingURL
	if pollURL == "" {
		pollURL = a.baseURL + "/get_result?id=" + url.QueryEscape(task.ID)
	}

	result, err := PollUntil(ctx, a.interval, a.attempts, func(ctx context.Context, attempt int) (fluxResultResponse, bool, error) {
		var res fluxResultResponse
		if err := doJSON(ctx, a.client, fluxBackend, http.MethodGet, pollURL, headers, nil, &res); err != nil {
			return res, false, err
		}
		switch res.Status {
		case "Ready":
			return res, true, nil
		case "Error", "Failed", "Content Moderated", "Request Moderated", "Task not found":
			return res, false, upstream(fluxBackend, 0, "task %s: %s", task.ID, res.Status)
		default:
			return res, false, nil
		}
	})
	if err != nil {
		return nil, err
	}
	if result.Result.Sample == "" {
		return nil, upstream(fluxBackend, 0, "task %s ready without a sample", task.ID)
	}
	return []Image{{
		URL:      result.Result.Sample,
		Width:    width,
		Height:   height,
		Seed:     result.Result.Seed,
		Metadata: map[string]any{"taskId": task.ID, "model": a.model},
	}}, nil
}

// fluxDimensions keeps the aspect ratio inside the 256..1440 range the API
// accepts, rounded to multiples of 32.
func fluxDimensions(s domain.Size) (int, int) {
	const maxSide, minSide, step = 1440, 256, 32
	w, h := float64(s.Width), float64(s.Height)
	if longest := max(w, h); longest > maxSide {
		w, h = w*maxSide/longest, h*maxSide/longest
	}
	round := func(v float64) int {
		n := int(v+step/2) / step * step
		return min(max(n, minSide), maxSide)
	}
	return round(w), round(h)
}

var _ Adapter = (*FluxAdapter)(nil)
