// Package calendar provides the busy-interval collaborators consulted by the
// availability service: a deterministic mock and a Google Calendar client.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/wolfman30/tg-booking-miniapp/internal/slots"
)

var tracer = otel.Tracer("booking.internal.calendar")

var (
	// ErrMissingCalendarID means no calendar id was configured or served.
	ErrMissingCalendarID = errors.New("calendar: missing calendar id")
	// ErrMissingCredentials means neither an API key nor a refresh token is available.
	ErrMissingCredentials = errors.New("calendar: missing credentials")
	// ErrTimeout is returned when the upstream did not answer in time.
	ErrTimeout = errors.New("calendar: request timed out")
)

// UpstreamError is a non-2xx answer from the calendar or config endpoint.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("calendar: upstream returned %d", e.Status)
	}
	return fmt.Sprintf("calendar: upstream returned %d: %s", e.Status, e.Message)
}

// Source returns the intervals that block availability on a calendar day.
type Source interface {
	BusyIntervals(ctx context.Context, day time.Time) ([]slots.BusyInterval, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, day time.Time) ([]slots.BusyInterval, error)

func (f SourceFunc) BusyIntervals(ctx context.Context, day time.Time) ([]slots.BusyInterval, error) {
	return f(ctx, day)
}

type timeoutSource struct {
	next    Source
	timeout time.Duration
}

// WithTimeout bounds every call to next. An expired deadline is reported as
// ErrTimeout so callers treat it like any other upstream failure.
func WithTimeout(next Source, timeout time.Duration) Source {
	if timeout <= 0 {
		return next
	}
	return &timeoutSource{next: next, timeout: timeout}
}

func (s *timeoutSource) BusyIntervals(ctx context.Context, day time.Time) ([]slots.BusyInterval, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	intervals, err := s.next.BusyIntervals(ctx, day)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s", ErrTimeout, s.timeout)
	}
	return intervals, err
}
