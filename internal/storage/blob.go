package storage

import "context"

// BlobStore keeps generated image bytes and returns a URL clients can fetch.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
