// Package bootstrap builds the runtime collaborators from configuration.
package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/tg-booking-miniapp/internal/calendar"
	appconfig "github.com/wolfman30/tg-booking-miniapp/internal/config"
	"github.com/wolfman30/tg-booking-miniapp/internal/holds"
	"github.com/wolfman30/tg-booking-miniapp/internal/payments"
	"github.com/wolfman30/tg-booking-miniapp/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, slot holds stay in memory", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// LoadLocation resolves the booking timezone.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load timezone %q: %w", name, err)
	}
	return loc, nil
}

// BuildHoldStore prefers Redis so holds are shared across instances.
func BuildHoldStore(client *redis.Client, loc *time.Location) holds.Store {
	if client != nil {
		return holds.NewRedisStore(client, loc)
	}
	return holds.NewMemoryStore(loc)
}

// BuildCalendarSource picks the calendar collaborator and bounds it with the
// configured timeout.
func BuildCalendarSource(cfg *appconfig.Config, loc *time.Location, logger *logging.Logger) calendar.Source {
	if logger == nil {
		logger = logging.Default()
	}
	if !cfg.UseGoogleCalendar() {
		logger.Info("using mock calendar")
		return calendar.WithTimeout(calendar.NewMockSource(loc), cfg.CalendarTimeout)
	}

	var settings calendar.SettingsProvider = calendar.StaticSettings{
		APIKey:     cfg.GoogleCalendarAPIKey,
		CalendarID: cfg.GoogleCalendarID,
	}
	if cfg.CalendarConfigURL != "" {
		settings = calendar.NewConfigLoader(cfg.CalendarConfigURL, nil)
	}

	var creds calendar.CredentialProvider = calendar.APIKeyCredentials{}
	if cfg.HasOAuthCredentials() {
		creds = calendar.NewOAuthCredentials(calendar.OAuthConfig{
			ClientID:     cfg.GoogleOAuthClientID,
			ClientSecret: cfg.GoogleOAuthClientSecret,
			RedirectURL:  cfg.GoogleOAuthRedirectURI,
			RefreshToken: cfg.GoogleOAuthRefreshToken,
		})
	}
	logger.Info("using google calendar", "config_url", cfg.CalendarConfigURL != "", "oauth", cfg.HasOAuthCredentials())
	return calendar.WithTimeout(calendar.NewGoogleSource(settings, creds, loc, logger), cfg.CalendarTimeout)
}

// BuildPaymentProcessor returns the mock processor tuned from config.
func BuildPaymentProcessor(cfg *appconfig.Config, logger *logging.Logger) payments.Processor {
	return payments.NewMockProcessor(payments.MockConfig{
		Delay:       cfg.PaymentDelay,
		FailureRate: cfg.PaymentFailureRate,
	}, logger)
}

// BuildVelocityChecker returns nil, meaning unlimited retries, unless a
// payment attempt limit is configured and Redis is available.
func BuildVelocityChecker(client *redis.Client, cfg *appconfig.Config, logger *logging.Logger) *payments.VelocityChecker {
	if client == nil || cfg.PaymentMaxAttempts <= 0 {
		return nil
	}
	return payments.NewVelocityChecker(client, payments.VelocityConfig{
		MaxAttempts: cfg.PaymentMaxAttempts,
		Window:      cfg.PaymentWindow,
	}, logger)
}
