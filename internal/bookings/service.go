package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/tg-booking-miniapp/pkg/logging"
)

var bookingsTracer = otel.Tracer("booking.internal.bookings")

// Confirmation is everything known about a booking once it is paid.
type Confirmation struct {
	SessionID     string
	UserID        *int64
	SlotID        string
	StartTime     time.Time
	EndTime       time.Time
	Name          string
	Topic         string
	Method        string
	PriceCents    int64
	Currency      string
	TransactionID string
}

// Service confirms bookings once payment is captured.
type Service struct {
	repo   *Repository
	logger *logging.Logger
	now    func() time.Time
}

// NewService constructs a bookings service.
func NewService(repo *Repository, logger *logging.Logger) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Confirm records the booking and returns it with its reference. Confirming
// the same transaction twice returns the first booking.
func (s *Service) Confirm(ctx context.Context, c Confirmation) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.confirm")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.slot_id", c.SlotID),
		attribute.String("booking.transaction_id", c.TransactionID),
	)

	if c.SlotID == "" || c.TransactionID == "" {
		err := errors.New("bookings: slot and transaction are required")
		span.RecordError(err)
		return nil, err
	}
	if existing, err := s.repo.ForTransaction(ctx, c.TransactionID); err == nil {
		return existing, nil
	}

	b := Booking{
		SessionID:     c.SessionID,
		UserID:        c.UserID,
		SlotID:        c.SlotID,
		StartTime:     c.StartTime,
		EndTime:       c.EndTime,
		Name:          c.Name,
		Topic:         c.Topic,
		Method:        c.Method,
		PriceCents:    c.PriceCents,
		Currency:      c.Currency,
		TransactionID: c.TransactionID,
		ConfirmedAt:   s.now().UTC(),
	}
	for attempt := 0; attempt < 5; attempt++ {
		b.Reference = NewReference()
		err := s.repo.Insert(ctx, b)
		if err == nil {
			span.SetAttributes(attribute.String("booking.reference", b.Reference))
			s.logger.Info("booking confirmed", "session_id", c.SessionID, "slot_id", c.SlotID, "reference", b.Reference)
			return &b, nil
		}
		if !errors.Is(err, ErrDuplicate) {
			span.RecordError(err)
			return nil, fmt.Errorf("bookings: insert: %w", err)
		}
	}
	err := errors.New("bookings: could not allocate a reference")
	span.RecordError(err)
	return nil, err
}

// Get returns a stored booking.
func (s *Service) Get(ctx context.Context, reference string) (*Booking, error) {
	return s.repo.Get(ctx, strings.ToUpper(strings.TrimSpace(reference)))
}

// NewReference returns a short uppercase booking reference.
func NewReference() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
