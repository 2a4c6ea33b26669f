package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	LogFormat     string

	// Booking
	Timezone       string
	SlotPriceCents int64
	SlotCurrency   string
	SlotHoldTTL    time.Duration
	SessionIdleTTL time.Duration

	// Calendar collaborator
	CalendarSource          string // "mock" or "google"
	CalendarConfigURL       string
	CalendarTimeout         time.Duration
	GoogleCalendarAPIKey    string
	GoogleCalendarID        string
	GoogleOAuthClientID     string
	GoogleOAuthClientSecret string
	GoogleOAuthRedirectURI  string
	GoogleOAuthRefreshToken string
	ServeCalendarConfig     bool

	// Payment collaborator
	PaymentTimeout     time.Duration
	PaymentDelay       time.Duration
	PaymentFailureRate float64
	PaymentMaxAttempts int
	PaymentWindow      time.Duration

	// Slot holds
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// HTTP
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),

		Timezone:       getEnv("BOOKING_TIMEZONE", "UTC"),
		SlotPriceCents: int64(getEnvAsInt("SLOT_PRICE_CENTS", 5000)),
		SlotCurrency:   strings.ToUpper(getEnv("SLOT_CURRENCY", "USD")),
		SlotHoldTTL:    getEnvAsDuration("SLOT_HOLD_TTL", 10*time.Minute),
		SessionIdleTTL: getEnvAsDuration("SESSION_IDLE_TTL", 30*time.Minute),

		CalendarSource:          strings.ToLower(strings.TrimSpace(getEnv("CALENDAR_SOURCE", "mock"))),
		CalendarConfigURL:       getEnv("CALENDAR_CONFIG_URL", ""),
		CalendarTimeout:         getEnvAsDuration("CALENDAR_TIMEOUT", 10*time.Second),
		GoogleCalendarAPIKey:    getEnv("GOOGLE_CALENDAR_API_KEY", ""),
		GoogleCalendarID:        getEnv("GOOGLE_CALENDAR_ID", ""),
		GoogleOAuthClientID:     getEnv("GOOGLE_OAUTH_CLIENT_ID", ""),
		GoogleOAuthClientSecret: getEnv("GOOGLE_OAUTH_CLIENT_SECRET", ""),
		GoogleOAuthRedirectURI:  getEnv("GOOGLE_OAUTH_REDIRECT_URI", ""),
		GoogleOAuthRefreshToken: getEnv("GOOGLE_OAUTH_REFRESH_TOKEN", ""),
		ServeCalendarConfig:     getEnvAsBool("SERVE_CALENDAR_CONFIG", false),

		PaymentTimeout:     getEnvAsDuration("PAYMENT_TIMEOUT", 15*time.Second),
		PaymentDelay:       getEnvAsDuration("PAYMENT_DELAY", 2*time.Second),
		PaymentFailureRate: getEnvAsFloat("PAYMENT_FAILURE_RATE", 0.1),
		PaymentMaxAttempts: getEnvAsInt("PAYMENT_MAX_ATTEMPTS", 0),
		PaymentWindow:      getEnvAsDuration("PAYMENT_ATTEMPT_WINDOW", time.Hour),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"https://web.telegram.org"}),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
	}
}

// UseGoogleCalendar reports whether the live calendar collaborator is selected.
func (c *Config) UseGoogleCalendar() bool {
	return c.CalendarSource == "google"
}

// HasOAuthCredentials reports whether a refresh-token credential is configured.
func (c *Config) HasOAuthCredentials() bool {
	return c.GoogleOAuthClientID != "" && c.GoogleOAuthClientSecret != "" && c.GoogleOAuthRefreshToken != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
