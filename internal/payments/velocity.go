package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/tg-booking-miniapp/pkg/logging"
)

// ErrTooManyAttempts is returned when a payer exceeds the attempt limit.
var ErrTooManyAttempts = errors.New("payments: too many payment attempts")

// VelocityChecker limits payment attempts per payer, counted in Redis so the
// limit holds across instances.
type VelocityChecker struct {
	redis  *redis.Client
	logger *logging.Logger
	config VelocityConfig
}

// VelocityConfig contains velocity check configuration.
type VelocityConfig struct {
	// Max payment attempts per payer per window
	MaxAttempts int
	Window      time.Duration
}

// DefaultVelocityConfig returns default velocity limits.
func DefaultVelocityConfig() VelocityConfig {
	return VelocityConfig{
		MaxAttempts: 5,
		Window:      time.Hour,
	}
}

// VelocityResult contains the result of a velocity check.
type VelocityResult struct {
	Allowed      bool
	CurrentCount int
	MaxAllowed   int
	WindowExpiry time.Time
}

// NewVelocityChecker returns nil when redisClient is nil; a nil checker
// allows everything.
func NewVelocityChecker(redisClient *redis.Client, config VelocityConfig, logger *logging.Logger) *VelocityChecker {
	if redisClient == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	def := DefaultVelocityConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.Window <= 0 {
		config.Window = def.Window
	}
	return &VelocityChecker{
		redis:  redisClient,
		logger: logger,
		config: config,
	}
}

// CheckAttempt counts one attempt for payer. Redis failures fail open.
func (v *VelocityChecker) CheckAttempt(ctx context.Context, payer string) (*VelocityResult, error) {
	if v == nil {
		return &VelocityResult{Allowed: true}, nil
	}
	ctx, span := paymentsTracer.Start(ctx, "payments.velocity.check_attempt")
	defer span.End()

	key := attemptKey(payer)
	count, expiry, err := v.incrementAndGet(ctx, key, v.config.Window)
	if err != nil {
		v.logger.Error("velocity check failed", "error", err, "key", key)
		return &VelocityResult{Allowed: true}, nil
	}

	result := &VelocityResult{
		Allowed:      count <= v.config.MaxAttempts,
		CurrentCount: count,
		MaxAllowed:   v.config.MaxAttempts,
		WindowExpiry: expiry,
	}
	if !result.Allowed {
		v.logger.Warn("payment velocity exceeded", "payer", payer, "count", count, "max", v.config.MaxAttempts)
		span.SetAttributes(attribute.Bool("velocity.exceeded", true))
	}
	return result, nil
}

// Reset clears the counter for payer.
func (v *VelocityChecker) Reset(ctx context.Context, payer string) error {
	if v == nil {
		return nil
	}
	return v.redis.Del(ctx, attemptKey(payer)).Err()
}

func attemptKey(payer string) string {
	return fmt.Sprintf("velocity:payment:%s", payer)
}

// incrementAndGet increments a counter and returns the new value with expiry time.
func (v *VelocityChecker) incrementAndGet(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	count, err := v.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}

	// Set expiry only on first increment
	if count == 1 {
		v.redis.Expire(ctx, key, window)
	}

	ttl, err := v.redis.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return int(count), time.Now().Add(ttl), nil
}
