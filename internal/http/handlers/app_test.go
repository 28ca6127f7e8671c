package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"promptfusion/internal/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: idea is required", domain.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: x", domain.ErrUnknownProvider), http.StatusBadRequest},
		{fmt.Errorf("%w: job needs 462 credits", domain.ErrInsufficientCredits), http.StatusPaymentRequired},
		{domain.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: job", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: job is FAILED", domain.ErrInvalidState), http.StatusConflict},
		{&domain.PersistenceError{Op: "claim", Err: errors.New("conn reset")}, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got, _ := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestDecodeDataURI(t *testing.T) {
	uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpg"))
	data, ext, ok := decodeDataURI(uri)
	if !ok || string(data) != "jpg" || ext != ".jpg" {
		t.Fatalf("decodeDataURI() = %q, %q, %v", data, ext, ok)
	}
	for _, bad := range []string{"https://cdn.example.com/a.png", "data:image/png,raw", "data:image/png;base64,%%%"} {
		if _, _, ok := decodeDataURI(bad); ok {
			t.Fatalf("decodeDataURI(%q) ok = true, want false", bad)
		}
	}
}
