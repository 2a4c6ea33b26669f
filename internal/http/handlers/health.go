package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wolfman30/tg-booking-miniapp/internal/calendar"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler serves GET /health. Checks are optional; a failing check
// marks the response degraded but the process stays up.
type HealthHandler struct {
	checks map[string]Pinger
	// sessions reports the live session count.
	sessions func() int
}

func NewHealthHandler(checks map[string]Pinger, sessions func() int) *HealthHandler {
	return &HealthHandler{checks: checks, sessions: sessions}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, c := range h.checks {
		if err := c.Ping(ctx); err != nil {
			results[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	body := map[string]any{"status": status, "checks": results}
	if h.sessions != nil {
		body["sessions"] = h.sessions()
	}
	writeJSON(w, code, body)
}

// CalendarConfig serves GET /config.json for web clients that read the
// calendar settings themselves.
func CalendarConfig(settings calendar.Settings) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, settings)
	}
}
