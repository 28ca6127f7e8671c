package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestSanitizeKey(t *testing.T) {
	cases := map[string]string{
		"images/a.png":   "images/a.png",
		"/images//a.png": "images/a.png",
		"./x\\y.png":     "x/y.png",
		"a/../b.png":     "b.png",
	}
	for in, want := range cases {
		got, err := sanitizeKey(in)
		if err != nil {
			t.Fatalf("sanitizeKey(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("sanitizeKey(%q) = %q, want %q", in, got, want)
		}
	}
	for _, bad := range []string{"", "  ", "../etc/passwd", ".."} {
		if _, err := sanitizeKey(bad); err == nil {
			t.Fatalf("sanitizeKey(%q) should fail", bad)
		}
	}
}

func TestFileStorePut(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	url, err := store.Put(context.Background(), "jobs/j1/flux_pro_2-01.png", []byte("png"), "image/png")
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if url != "http://localhost:8080/static/jobs/j1/flux_pro_2-01.png" {
		t.Fatalf("url = %q", url)
	}
	data, err := os.ReadFile(filepath.Join(dir, "jobs", "j1", "flux_pro_2-01.png"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "png" {
		t.Fatalf("data = %q", data)
	}
}

func TestS3StorePutUploadsAndPresigns(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := NewS3Store(context.Background(), S3Options{
		Bucket:    "images",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "key",
		SecretKey: "secret",
	})
	if err != nil {
		t.Fatalf("NewS3Store error: %v", err)
	}
	url, err := store.Put(context.Background(), "jobs/j1/a.png", []byte("img"), "image/png")
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut || path != "/images/jobs/j1/a.png" {
		t.Fatalf("request = %s %s", method, path)
	}
	if !strings.Contains(body, "img") {
		t.Fatalf("body = %q", body)
	}
	if !strings.HasPrefix(url, srv.URL+"/images/jobs/j1/a.png?") || !strings.Contains(url, "X-Amz-Signature=") {
		t.Fatalf("url = %q", url)
	}
}
