package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSOriginMatching(t *testing.T) {
	allowed := []string{" https://web.telegram.org/ ", "https://*.example.dev", ""}

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"exact", "https://web.telegram.org", true},
		{"wildcard subdomain", "https://app.example.dev", true},
		{"wildcard needs a subdomain", "https://example.dev", false},
		{"wildcard checks scheme", "http://app.example.dev", false},
		{"unknown", "https://evil.example", false},
		{"lookalike suffix", "https://notexample.dev", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			req := httptest.NewRequest(http.MethodGet, "/api/calendar", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			CORS(allowed)(okHandler(&called)).ServeHTTP(rec, req)

			assert.True(t, called, "simple requests always reach the handler")
			if tt.want {
				assert.Equal(t, tt.origin, rec.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
			}
			assert.Equal(t, "Origin", rec.Header().Get("Vary"))
		})
	}
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	called := false
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://random.example")
	rec := httptest.NewRecorder()

	CORS([]string{"*"})(okHandler(&called)).ServeHTTP(rec, req)

	assert.Equal(t, "https://random.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	called := false
	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "https://web.telegram.org")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()

	CORS([]string{"https://web.telegram.org"})(okHandler(&called)).ServeHTTP(rec, req)

	assert.False(t, called, "preflight is answered by the middleware")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Telegram-Init-Data")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestCORSWithoutOriginPassesThrough(t *testing.T) {
	called := false
	rec := httptest.NewRecorder()

	CORS([]string{"https://web.telegram.org"})(okHandler(&called)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.True(t, called)
	assert.Empty(t, rec.Header().Get("Vary"))
}
