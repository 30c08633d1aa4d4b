package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	called := false
	req := httptest.NewRequest(http.MethodPost, "/api/v1/carton_caps/chat", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()

	CORS([]string{" https://APP.example.com/ "})(okHandler(&called)).ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to be called")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("expected allow origin header, got %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") != corsAllowedMethods {
		t.Fatalf("expected allow methods header")
	}
}

func TestCORSIgnoresUnlistedOrigin(t *testing.T) {
	called := false
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()

	CORS([]string{"https://app.example.com"})(okHandler(&called)).ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to be called")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow origin header, got %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/carton_caps/chat", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()

	CORS([]string{"*"})(okHandler(&called)).ServeHTTP(rec, req)

	if called {
		t.Fatalf("preflight should not reach the handler")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://anywhere.example" {
		t.Fatalf("expected wildcard to echo origin, got %q", got)
	}
}

func TestCORSDisabledWithoutOrigins(t *testing.T) {
	called := false
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()

	CORS(nil)(okHandler(&called)).ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected passthrough when no origins configured")
	}
}
