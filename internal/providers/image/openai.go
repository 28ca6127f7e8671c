package image

import (
	"context"
	"encoding/base64"
	"errors"
	"math"

	"github.com/openai/openai-go"

	"promptfusion/internal/domain"
)

var (
	gptImageSizes = []domain.Size{{Width: 1024, Height: 1024}, {Width: 1536, Height: 1024}, {Width: 1024, Height: 1536}}
	dalle3Sizes   = []domain.Size{{Width: 1024, Height: 1024}, {Width: 1792, Height: 1024}, {Width: 1024, Height: 1792}}
)

// OpenAIAdapter drives the Images API for one model.
type OpenAIAdapter struct {
	client  *openai.Client
	model   string
	quality string
	format  string
	sizes   []domain.Size
}

// NewGPTImageAdapter returns base64 PNGs at high quality.
func NewGPTImageAdapter(client *openai.Client, model string) *OpenAIAdapter {
	if model == "" {
		model = "gpt-image-1"
	}
	return &OpenAIAdapter{client: client, model: model, quality: "high", sizes: gptImageSizes}
}

// NewDALLE3Adapter requests hosted URLs at HD quality.
func NewDALLE3Adapter(client *openai.Client) *OpenAIAdapter {
	return &OpenAIAdapter{client: client, model: "dall-e-3", quality: "hd", format: "url", sizes: dalle3Sizes}
}

func (a *OpenAIAdapter) Generate(ctx context.Context, prompt, size string) ([]Image, error) {
	sz, err := domain.ParseSize(size)
	if err != nil {
		return nil, err
	}
	target := nearestSize(sz, a.sizes)
	params := openai.ImageGenerateParams{
		Model:  openai.ImageModel(a.model),
		Prompt: prompt,
		N:      openai.Int(1),
		Size:   openai.ImageGenerateParamsSize(target.String()),
	}
	if a.quality != "" {
		params.Quality = openai.ImageGenerateParamsQuality(a.quality)
	}
	if a.format != "" {
		params.ResponseFormat = openai.ImageGenerateParamsResponseFormat(a.format)
	}

	resp, err := a.client.Images.Generate(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &UpstreamError{Backend: a.model, Status: apiErr.StatusCode, Message: err.Error()}
		}
		return nil, err
	}

	images := make([]Image, 0, len(resp.Data))
	for _, d := range resp.Data {
		img := Image{URL: d.URL, Width: target.Width, Height: target.Height, Metadata: map[string]any{"model": a.model}}
		if d.RevisedPrompt != "" {
			img.Metadata["revisedPrompt"] = d.RevisedPrompt
		}
		if d.B64JSON != "" {
			data, err := base64.StdEncoding.DecodeString(d.B64JSON)
			if err != nil {
				return nil, upstream(a.model, 0, "decode b64_json: %v", err)
			}
			img.Data = data
			img.MIME = "image/png"
		}
		if img.URL == "" && len(img.Data) == 0 {
			continue
		}
		images = append(images, img)
	}
	if len(images) == 0 {
		return nil, upstream(a.model, 0, "response carried no images")
	}
	return images, nil
}

// nearestSize picks the supported size whose aspect ratio is closest to s.
func nearestSize(s domain.Size, supported []domain.Size) domain.Size {
	want := float64(s.Width) / float64(s.Height)
	best := supported[0]
	bestDiff := math.Inf(1)
	for _, c := range supported {
		if c == s {
			return c
		}
		diff := math.Abs(math.Log(float64(c.Width) / float64(c.Height) / want))
		if diff < bestDiff {
			best, bestDiff = c, diff
		}
	}
	return best
}

var _ Adapter = (*OpenAIAdapter)(nil)
