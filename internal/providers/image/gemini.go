package image

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"promptfusion/internal/domain"
)

// GeminiAdapter generates through the Gemini API image models.
type GeminiAdapter struct {
	client *genai.Client
	model  string
}

func NewGeminiAdapter(ctx context.Context, apiKey, model string) (*GeminiAdapter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	if model == "" {
		model = "imagen-4.0-generate-001"
	}
	return &GeminiAdapter{client: client, model: model}, nil
}

// geminiAspect maps a size onto the aspect ratios the image models accept.
func geminiAspect(s domain.Size) string {
	switch r := float64(s.Width) / float64(s.Height); {
	case r >= 1.6:
		return "16:9"
	case r >= 1.15:
		return "4:3"
	case r <= 1/1.6:
		return "9:16"
	case r <= 1/1.15:
		return "3:4"
	default:
		return "1:1"
	}
}

func (a *GeminiAdapter) Generate(ctx context.Context, prompt, size string) ([]Image, error) {
	sz, err := domain.ParseSize(size)
	if err != nil {
		return nil, err
	}
	aspect := geminiAspect(sz)
	resp, err := a.client.Models.GenerateImages(ctx, a.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    aspect,
	})
	if err != nil {
		return nil, upstream(a.model, 0, "%v", err)
	}

	var images []Image
	for _, gen := range resp.GeneratedImages {
		if gen == nil || gen.Image == nil || len(gen.Image.ImageBytes) == 0 {
			continue
		}
		mime := gen.Image.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		w, h := decodeImageDimensions(gen.Image.ImageBytes)
		if w == 0 || h == 0 {
			w, h = sz.Width, sz.Height
		}
		images = append(images, Image{
			Data:     gen.Image.ImageBytes,
			MIME:     mime,
			Width:    w,
			Height:   h,
			Metadata: map[string]any{"model": a.model, "aspectRatio": aspect},
		})
	}
	if len(images) == 0 {
		return nil, upstream(a.model, 0, "response carried no images")
	}
	return images, nil
}

var _ Adapter = (*GeminiAdapter)(nil)
