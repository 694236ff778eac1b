package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
}

func TestRequireToken(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		token  string
		want   int
	}{
		{"valid token", "s3cret", "s3cret", http.StatusTeapot},
		{"wrong token", "s3cret", "nope", http.StatusForbidden},
		{"missing token", "s3cret", "", http.StatusForbidden},
		{"empty secret", "", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireToken("access_token", tt.secret)(okHandler())
			req := httptest.NewRequest(http.MethodPost, "/AddImageToIndex", nil)
			if tt.token != "" {
				req.Header.Set("access_token", tt.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://faces.example.com")
	h := CORS("access_token")(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/ValidateImage", nil)
	req.Header.Set("Origin", "https://faces.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://faces.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Accept, Content-Type, X-Requested-With, access_token" {
		t.Errorf("Allow-Headers = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected Allow-Origin %q", got)
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}

func TestIsLocalhostOrigin(t *testing.T) {
	for origin, want := range map[string]bool{
		"http://localhost:5173": true,
		"https://localhost":     true,
		"http://example.com":    false,
	} {
		if got := isLocalhostOrigin(origin); got != want {
			t.Errorf("isLocalhostOrigin(%q) = %v, want %v", origin, got, want)
		}
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := RequestLogger(zap.New(core))(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusTeapot) {
		t.Errorf("status field = %v", fields["status"])
	}
	if fields["path"] != "/health" {
		t.Errorf("path field = %v", fields["path"])
	}
}
