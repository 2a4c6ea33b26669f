package payments

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/tg-booking-miniapp/pkg/logging"
)

var paymentsTracer = otel.Tracer("booking.internal.payments")

const (
	DefaultMockDelay       = 2 * time.Second
	DefaultMockFailureRate = 0.1
)

// MockConfig tunes the mock processor. Zero values take the defaults; a
// negative delay or failure rate means none.
type MockConfig struct {
	Delay       time.Duration
	FailureRate float64
	Rand        *rand.Rand
}

// MockProcessor simulates a processor: it waits, then randomly declines a
// share of requests and approves the rest with a fresh transaction id.
//
// This must never be wired to real money.
type MockProcessor struct {
	delay       time.Duration
	failureRate float64
	logger      *logging.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewMockProcessor(cfg MockConfig, logger *logging.Logger) *MockProcessor {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Delay == 0 {
		cfg.Delay = DefaultMockDelay
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.FailureRate == 0 {
		cfg.FailureRate = DefaultMockFailureRate
	}
	if cfg.FailureRate < 0 {
		cfg.FailureRate = 0
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &MockProcessor{
		delay:       cfg.Delay,
		failureRate: cfg.FailureRate,
		logger:      logger,
		rng:         cfg.Rand,
	}
}

func (p *MockProcessor) ProcessPayment(ctx context.Context, req Request) (*Result, error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.mock.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.event_id", req.EventID),
		attribute.String("booking.payment_method", req.Method),
		attribute.Int64("booking.amount_cents", req.AmountCents),
	)

	if err := req.validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if p.roll() < p.failureRate {
		span.RecordError(ErrDeclined)
		p.logger.Info("mock payment declined", "event_id", req.EventID, "method", req.Method)
		return nil, ErrDeclined
	}

	result := &Result{Success: true, TransactionID: "txn_" + uuid.NewString()}
	p.logger.Info("mock payment approved", "event_id", req.EventID, "method", req.Method, "transaction_id", result.TransactionID)
	return result, nil
}

func (p *MockProcessor) roll() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}
