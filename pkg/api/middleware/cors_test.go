package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/memvault/memvault/config"
)

func corsConfig() *config.CORSConfig {
	return &config.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://console.example.com"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Content-Type", "X-API-Key"},
		MaxAge:         600,
	}
}

func TestCORS_Preflight(t *testing.T) {
	reached := false
	h := CORS(corsConfig())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { reached = true }))

	req := httptest.NewRequest(http.MethodOptions, "/v1/ingest", nil)
	req.Header.Set("Origin", "https://console.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent || reached {
		t.Fatalf("preflight status = %d reached = %v", rec.Code, reached)
	}
	for header, want := range map[string]string{
		"Access-Control-Allow-Origin":  "https://console.example.com",
		"Access-Control-Allow-Methods": "GET, POST, DELETE",
		"Access-Control-Allow-Headers": "Content-Type, X-API-Key",
		"Access-Control-Max-Age":       "600",
		"Vary":                         "Origin",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	h := CORS(corsConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/recall", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("disallowed origin must not be echoed")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("request should still be served, got %d", rec.Code)
	}
}

func TestCORS_Disabled(t *testing.T) {
	cfg := corsConfig()
	cfg.Enabled = false
	h := CORS(cfg)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://console.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("disabled CORS must not set headers")
	}
}

func TestIsOriginAllowed(t *testing.T) {
	tests := []struct {
		origin  string
		allowed []string
		want    bool
	}{
		{"https://a.dev", []string{"*"}, true},
		{"https://a.dev", nil, false},
		{"https://Console.Example.com", []string{"https://console.example.com"}, true},
		{"https://team.example.com", []string{"https://*.example.com"}, true},
		{"http://team.example.com", []string{"https://*.example.com"}, false},
		{"https://a.b.example.com", []string{"https://*.example.com"}, false},
		{"https://example.com", []string{"https://*.example.com"}, false},
		{"https://evilexample.com", []string{"https://*.example.com"}, false},
	}
	for _, tt := range tests {
		if got := NewOriginMatcher(tt.allowed).Allows(tt.origin); got != tt.want {
			t.Errorf("Allows(%q) with %v = %v, want %v", tt.origin, tt.allowed, got, tt.want)
		}
	}
}
