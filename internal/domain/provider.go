package domain

import (
	"fmt"
	"strings"
)

// Provider identifies one external image-generation backend.
type Provider string

const (
	ProviderGPTImage Provider = "OPENAI_GPT52_IMAGE"
	ProviderDALLE3   Provider = "OPENAI_DALLE3"
	ProviderGemini   Provider = "GEMINI_NANOBANANA_PRO"
	ProviderFluxPro2 Provider = "FLUX_PRO_2"
	ProviderIdeogram Provider = "IDEOGRAM"
)

// AllProviders lists every supported provider in display order.
func AllProviders() []Provider {
	return []Provider{ProviderGPTImage, ProviderDALLE3, ProviderGemini, ProviderFluxPro2, ProviderIdeogram}
}

// Cost returns the static credit cost of one generation call.
func (p Provider) Cost() int {
	switch p {
	case ProviderGPTImage:
		return 133
	case ProviderDALLE3:
		return 80
	case ProviderGemini:
		return 39
	case ProviderFluxPro2:
		return 70
	case ProviderIdeogram:
		return 90
	default:
		return 0
	}
}

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	return p.Cost() > 0
}

func (p Provider) String() string {
	return string(p)
}

// ParseProvider maps a name onto a known provider. Unknown names are an error.
func ParseProvider(name string) (Provider, error) {
	p := Provider(strings.ToUpper(strings.TrimSpace(name)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// ParseProviders parses a list of names, rejecting unknown and duplicate entries.
func ParseProviders(names []string) ([]Provider, error) {
	seen := make(map[Provider]struct{}, len(names))
	out := make([]Provider, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		p, err := ParseProvider(name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[p]; dup {
			return nil, fmt.Errorf("%w: duplicate %q", ErrUnknownProvider, name)
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// TotalCost sums the static costs of providers.
func TotalCost(providers []Provider) int {
	total := 0
	for _, p := range providers {
		total += p.Cost()
	}
	return total
}
