package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/tg-booking-miniapp/internal/api/router"
	"github.com/wolfman30/tg-booking-miniapp/internal/app/bootstrap"
	"github.com/wolfman30/tg-booking-miniapp/internal/availability"
	"github.com/wolfman30/tg-booking-miniapp/internal/bookings"
	"github.com/wolfman30/tg-booking-miniapp/internal/calendar"
	appconfig "github.com/wolfman30/tg-booking-miniapp/internal/config"
	"github.com/wolfman30/tg-booking-miniapp/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/tg-booking-miniapp/internal/http/middleware"
	"github.com/wolfman30/tg-booking-miniapp/internal/observability/metrics"
	"github.com/wolfman30/tg-booking-miniapp/internal/session"
	"github.com/wolfman30/tg-booking-miniapp/internal/slots"
	"github.com/wolfman30/tg-booking-miniapp/internal/webapp"
	"github.com/wolfman30/tg-booking-miniapp/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	logger.Info("starting booking mini-app API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"calendar", cfg.CalendarSource,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	a, err := newApp(cfg, redisClient, prometheus.DefaultRegisterer, promhttp.Handler(), logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer a.close()

	go a.sessions.Run(ctx, time.Minute)
	go a.limiter.Run(ctx.Done(), 5*time.Minute, 10*time.Minute)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server stopped")
}

// app holds the wired HTTP surface and what must be closed on exit.
type app struct {
	handler  http.Handler
	sessions *session.Manager
	limiter  *httpmiddleware.RateLimiter
	redis    *redis.Client
}

func newApp(cfg *appconfig.Config, redisClient *redis.Client, reg prometheus.Registerer, metricsHandler http.Handler, logger *logging.Logger) (*app, error) {
	loc, err := bootstrap.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	bookingMetrics := metrics.NewBookingMetrics(reg)
	holdStore := bootstrap.BuildHoldStore(redisClient, loc)
	availabilitySvc := availability.NewService(availability.Config{
		Source: bootstrap.BuildCalendarSource(cfg, loc, logger),
		Holds:  holdStore,
		Options: slots.Options{
			Location:   loc,
			PriceCents: cfg.SlotPriceCents,
			Currency:   cfg.SlotCurrency,
		},
		Metrics: bookingMetrics,
		Logger:  logger,
	})
	bookingSvc := bookings.NewService(nil, logger)
	velocity := bootstrap.BuildVelocityChecker(redisClient, cfg, logger)

	manager := session.NewManager(session.Dependencies{
		Availability:   availabilitySvc,
		Holds:          holdStore,
		Payments:       bootstrap.BuildPaymentProcessor(cfg, logger),
		Velocity:       velocity,
		Bookings:       bookingSvc,
		Metrics:        bookingMetrics,
		Logger:         logger,
		HoldTTL:        cfg.SlotHoldTTL,
		PaymentTimeout: cfg.PaymentTimeout,
	}, cfg.SessionIdleTTL)

	checks := map[string]handlers.Pinger{}
	if redisClient != nil {
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	var calendarConfig http.Handler
	if cfg.ServeCalendarConfig {
		calendarConfig = handlers.CalendarConfig(calendar.Settings{
			APIKey:     cfg.GoogleCalendarAPIKey,
			CalendarID: cfg.GoogleCalendarID,
		})
	}

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	handler := router.New(&router.Config{
		Logger:             logger,
		Sessions:           handlers.NewSessionsHandler(manager, logger),
		Calendar:           handlers.NewCalendarHandler(availabilitySvc, bookingSvc, logger),
		Health:             handlers.NewHealthHandler(checks, manager.Len),
		WebApp:             webapp.NewHandler(manager, logger),
		MetricsHandler:     metricsHandler,
		CalendarConfig:     calendarConfig,
		RateLimiter:        limiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	return &app{handler: handler, sessions: manager, limiter: limiter, redis: redisClient}, nil
}

func (a *app) close() {
	a.sessions.Close()
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
