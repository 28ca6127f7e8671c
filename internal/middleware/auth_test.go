package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(UserIDFromContext(r.Context())))
	})
}

func TestSignAndVerifyToken(t *testing.T) {
	token, err := SignToken("test-secret", "user-123", time.Hour)
	if err != nil {
		t.Fatalf("SignToken() unexpected error: %v", err)
	}
	claims, err := VerifyToken("test-secret", token)
	if err != nil {
		t.Fatalf("VerifyToken() unexpected error: %v", err)
	}
	if claims.Subject != "user-123" {
		t.Fatalf("Subject = %q, want %q", claims.Subject, "user-123")
	}
}

func TestVerifyTokenRejects(t *testing.T) {
	wrongKey, _ := SignToken("secret-a", "user-123", time.Hour)
	expired, _ := SignToken("secret", "user-123", -time.Minute)
	noSubject, _ := SignToken("secret", "", time.Hour)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{name: "wrong key", secret: "secret-b", token: wrongKey},
		{name: "expired", secret: "secret", token: expired},
		{name: "no subject", secret: "secret", token: noSubject},
		{name: "garbage", secret: "secret", token: "not.a.token"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := VerifyToken(tc.secret, tc.token); err == nil {
				t.Fatalf("VerifyToken() expected error")
			}
		})
	}
}

func TestAuthenticateBearer(t *testing.T) {
	token, err := SignToken("secret", "user-9", time.Hour)
	if err != nil {
		t.Fatalf("SignToken() error: %v", err)
	}
	h := Authenticate("secret")(echoUser())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "user-9" {
		t.Fatalf("got %d %q, want 200 %q", rec.Code, rec.Body.String(), "user-9")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserIDHeader, "user-9")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("header-only status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthenticateHeaderMode(t *testing.T) {
	h := Authenticate("")(echoUser())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserIDHeader, " user-1 ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Body.String() != "user-1" {
		t.Fatalf("user = %q, want %q", rec.Body.String(), "user-1")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequestIDPropagates(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc" || rec.Header().Get("X-Request-ID") != "abc" {
		t.Fatalf("request id = %q / %q, want abc", seen, rec.Header().Get("X-Request-ID"))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(seen) != 36 {
		t.Fatalf("generated request id = %q, want a uuid", seen)
	}
}
