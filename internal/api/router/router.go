package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/tg-booking-miniapp/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/tg-booking-miniapp/internal/http/middleware"
	"github.com/wolfman30/tg-booking-miniapp/internal/webapp"
	"github.com/wolfman30/tg-booking-miniapp/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Sessions           *handlers.SessionsHandler
	Calendar           *handlers.CalendarHandler
	Health             http.Handler
	WebApp             *webapp.Handler
	MetricsHandler     http.Handler
	CalendarConfig     http.Handler
	RateLimiter        *httpmiddleware.RateLimiter
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Operational endpoints stay outside the rate limit.
	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Handle("/health", cfg.Health)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.CalendarConfig != nil {
			public.Handle("/config.json", cfg.CalendarConfig)
		}
	})

	r.Group(func(client chi.Router) {
		if cfg.RateLimiter != nil {
			client.Use(cfg.RateLimiter.Middleware)
		}
		if cfg.WebApp != nil {
			client.Get("/ws", cfg.WebApp.HandleWebSocket)
		}
		client.Route("/api", func(api chi.Router) {
			if cfg.Sessions != nil {
				api.Mount("/sessions", cfg.Sessions.Routes())
			}
			if cfg.Calendar != nil {
				api.Get("/calendar", cfg.Calendar.Month)
				api.Get("/slots", cfg.Calendar.Slots)
				api.Get("/bookings/{reference}", cfg.Calendar.Booking)
			}
		})
	})

	return r
}
