package image

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"promptfusion/internal/domain"
)

// Registry maps each provider to exactly one adapter.
type Registry struct {
	adapters map[domain.Provider]Adapter
	order    []domain.Provider
}

func NewRegistry() *Registry {
	return &Registry{adapters: map[domain.Provider]Adapter{}}
}

// Register binds p to a. Registering twice replaces the adapter.
func (r *Registry) Register(p domain.Provider, a Adapter) {
	if _, ok := r.adapters[p]; !ok {
		r.order = append(r.order, p)
	}
	r.adapters[p] = a
}

// Adapter returns the adapter for p or ErrUnknownProvider.
func (r *Registry) Adapter(p domain.Provider) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no adapter", domain.ErrUnknownProvider, p)
	}
	return a, nil
}

// Providers lists registered providers in registration order.
func (r *Registry) Providers() []domain.Provider {
	return append([]domain.Provider(nil), r.order...)
}

// Credentials carries the per-backend keys and endpoints.
type Credentials struct {
	OpenAIKey        string
	OpenAIBaseURL    string
	GPTImageModel    string
	GeminiKey        string
	GeminiModel      string
	FluxKey          string
	FluxBaseURL      string
	FluxPollInterval time.Duration
	FluxPollAttempts int
	IdeogramKey      string
	IdeogramBaseURL  string
	HTTPClient       *http.Client
}

// Build registers an adapter for every provider. Providers without a key get
// the synthetic adapter and a warning.
func Build(ctx context.Context, providers []domain.Provider, creds Credentials, logger zerolog.Logger) (*Registry, error) {
	reg := NewRegistry()
	var openaiClient *openai.Client
	if creds.OpenAIKey != "" {
		opts := []option.RequestOption{option.WithAPIKey(creds.OpenAIKey)}
		if creds.OpenAIBaseURL != "" {
			opts = append(opts, option.WithBaseURL(creds.OpenAIBaseURL))
		}
		client := openai.NewClient(opts...)
		openaiClient = &client
	}

	for _, p := range providers {
		var (
			adapter Adapter
			key     string
		)
		switch p {
		case domain.ProviderGPTImage:
			if openaiClient != nil {
				adapter = NewGPTImageAdapter(openaiClient, creds.GPTImageModel)
			}
		case domain.ProviderDALLE3:
			if openaiClient != nil {
				adapter = NewDALLE3Adapter(openaiClient)
			}
		case domain.ProviderGemini:
			key = creds.GeminiKey
			if key != "" {
				g, err := NewGeminiAdapter(ctx, key, creds.GeminiModel)
				if err != nil {
					return nil, err
				}
				adapter = g
			}
		case domain.ProviderFluxPro2:
			key = creds.FluxKey
			if key != "" {
				adapter = NewFluxAdapter(FluxOptions{
					APIKey:       key,
					BaseURL:      creds.FluxBaseURL,
					HTTPClient:   creds.HTTPClient,
					PollInterval: creds.FluxPollInterval,
					PollAttempts: creds.FluxPollAttempts,
				})
			}
		case domain.ProviderIdeogram:
			key = creds.IdeogramKey
			if key != "" {
				adapter = NewIdeogramAdapter(IdeogramOptions{APIKey: key, BaseURL: creds.IdeogramBaseURL, HTTPClient: creds.HTTPClient})
			}
		default:
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, p)
		}
		if adapter == nil {
			logger.Warn().Str("provider", p.String()).Msg("image: credentials missing, using synthetic adapter")
			adapter = NewSyntheticAdapter(p.String())
		}
		reg.Register(p, adapter)
	}
	return reg, nil
}
