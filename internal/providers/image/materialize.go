package image

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"promptfusion/internal/storage"
)

// Materializer gives every image a durable URL. Binary payloads go to the
// blob store, or become data: URIs when no store is configured.
type Materializer struct {
	blobs storage.BlobStore
}

func NewMaterializer(blobs storage.BlobStore) *Materializer {
	return &Materializer{blobs: blobs}
}

// Materialize stores payloads under keyPrefix and drops the bytes.
func (m *Materializer) Materialize(ctx context.Context, keyPrefix string, images []Image) ([]Image, error) {
	out := make([]Image, len(images))
	for i, img := range images {
		if len(img.Data) == 0 {
			if img.URL == "" {
				return nil, fmt.Errorf("materialize: image %d has neither url nor data", i)
			}
			out[i] = img
			continue
		}
		mime := img.MIME
		if mime == "" {
			mime = "image/png"
		}
		if img.Width == 0 || img.Height == 0 {
			img.Width, img.Height = decodeImageDimensions(img.Data)
		}
		if m == nil || m.blobs == nil {
			img.URL = "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
		} else {
			key := fmt.Sprintf("%s-%02d%s", strings.TrimSuffix(keyPrefix, "/"), i+1, extension(mime))
			url, err := m.blobs.Put(ctx, key, img.Data, mime)
			if err != nil {
				return nil, fmt.Errorf("materialize: %w", err)
			}
			img.URL = url
		}
		img.Data = nil
		img.MIME = mime
		out[i] = img
	}
	return out, nil
}

func extension(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
