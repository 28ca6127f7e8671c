package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	stdimage "image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"strconv"

	"promptfusion/internal/domain"
)

// SyntheticAdapter renders a deterministic placeholder PNG. The registry
// wires it for providers whose credentials are missing so local runs still
// exercise the whole pipeline.
type SyntheticAdapter struct {
	label string
}

func NewSyntheticAdapter(label string) *SyntheticAdapter {
	return &SyntheticAdapter{label: label}
}

func (a *SyntheticAdapter) Generate(ctx context.Context, prompt, size string) ([]Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sz, err := domain.ParseSize(size)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", a.label, prompt, sz)))
	seed := int64(binary.BigEndian.Uint32(sum[:4]))
	data := renderSyntheticImage(sz.Width, sz.Height, hex.EncodeToString(sum[:])[:18])
	if data == nil {
		return nil, fmt.Errorf("synthetic: render %s", sz)
	}
	return []Image{{
		Data:     data,
		MIME:     "image/png",
		Width:    sz.Width,
		Height:   sz.Height,
		Seed:     &seed,
		Metadata: map[string]any{"synthetic": true, "model": a.label},
	}}, nil
}

func renderSyntheticImage(width, height int, seed string) []byte {
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, width, height))
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)
	draw.Draw(img, img.Bounds(), &stdimage.Uniform{C: base}, stdimage.Point{}, draw.Src)

	stripeHeight := max(32, height/12)
	for y := 0; y < height; y += stripeHeight * 2 {
		stripe := stdimage.Rect(0, y, width, min(height, y+stripeHeight))
		draw.Draw(img, stripe, &stdimage.Uniform{C: accent}, stdimage.Point{}, draw.Over)
	}

	diagonal := colorFromSeed(seed, 2)
	for x := 0; x < max(width, height); x += max(16, width/32) {
		for y := 0; y < height && x+y < width; y++ {
			img.Set(x+y, y, diagonal)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func colorFromSeed(seed string, shift int) color.RGBA {
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{R: hexByte(segment[0:2]), G: hexByte(segment[2:4]), B: hexByte(segment[4:6]), A: 255}
}

func hexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func decodeImageDimensions(data []byte) (int, int) {
	cfg, _, err := stdimage.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

var _ Adapter = (*SyntheticAdapter)(nil)
