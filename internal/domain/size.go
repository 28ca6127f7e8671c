package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is an output resolution written as "WIDTHxHEIGHT".
type Size struct {
	Width  int
	Height int
}

var sizePhrases = map[string]string{
	"1024x1024": "square composition",
	"1536x1024": "wide landscape format",
	"1024x1536": "tall portrait format",
	"1792x1024": "ultra-wide cinematic format",
	"1024x1792": "ultra-tall format",
}

// ParseSize parses "WIDTHxHEIGHT". An empty string yields the default size.
func ParseSize(raw string) (Size, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		raw = DefaultAspectRatio
	}
	w, h, ok := strings.Cut(raw, "x")
	if !ok {
		return Size{}, fmt.Errorf("%w: size %q must look like 1024x1024", ErrValidation, raw)
	}
	width, errW := strconv.Atoi(w)
	height, errH := strconv.Atoi(h)
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return Size{}, fmt.Errorf("%w: size %q must look like 1024x1024", ErrValidation, raw)
	}
	return Size{Width: width, Height: height}, nil
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Ratio reduces the size to an aspect ratio such as "16:9".
func (s Size) Ratio() string {
	if s.Width <= 0 || s.Height <= 0 {
		return "1:1"
	}
	g := gcd(s.Width, s.Height)
	return fmt.Sprintf("%d:%d", s.Width/g, s.Height/g)
}

// Phrase describes the framing of well-known sizes, or "" for others.
func (s Size) Phrase() string {
	return sizePhrases[s.String()]
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
