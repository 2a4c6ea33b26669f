// Package availability turns calendar busy time and slot holds into the
// bookable slot list for a day.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/tg-booking-miniapp/internal/calendar"
	"github.com/wolfman30/tg-booking-miniapp/internal/holds"
	"github.com/wolfman30/tg-booking-miniapp/internal/observability/metrics"
	"github.com/wolfman30/tg-booking-miniapp/internal/slots"
	"github.com/wolfman30/tg-booking-miniapp/pkg/logging"
)

// Config configures a Service.
type Config struct {
	Source  calendar.Source
	Holds   holds.Store
	Options slots.Options
	Metrics *metrics.BookingMetrics
	Logger  *logging.Logger
	Now     func() time.Time
}

// Service computes slots against the live clock.
type Service struct {
	source  calendar.Source
	holds   holds.Store
	opts    slots.Options
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
	now     func() time.Time
}

func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Source == nil {
		cfg.Source = calendar.NewMockSource(cfg.Options.Location)
	}
	return &Service{
		source:  cfg.Source,
		holds:   cfg.Holds,
		opts:    cfg.Options,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		now:     cfg.Now,
	}
}

// Location is the zone calendar days are read in.
func (s *Service) Location() *time.Location {
	if s.opts.Location == nil {
		return time.UTC
	}
	return s.opts.Location
}

// Now reports the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// Slots returns the day's bookable slots. A failed calendar fetch returns an
// error and no slots; it never yields a fully open day. Slots held by other
// sessions are reported unavailable; viewer's own holds are ignored.
func (s *Service) Slots(ctx context.Context, day time.Time, viewer string) ([]slots.Slot, error) {
	started := time.Now()

	busy, err := s.source.BusyIntervals(ctx, day)
	if err != nil {
		s.metrics.ObserveSlotLoad("error", time.Since(started))
		return nil, fmt.Errorf("availability: load busy intervals: %w", err)
	}

	if s.holds != nil {
		held, err := s.holds.Busy(ctx, day, viewer)
		if err != nil {
			s.logger.Warn("availability: hold lookup failed, using calendar only", "day", slots.DayKey(day, s.Location()), "error", err)
		} else {
			busy = append(busy, held...)
		}
	}

	list := slots.Compute(day, busy, s.now(), s.opts)
	s.metrics.ObserveSlotLoad("ok", time.Since(started))
	return list, nil
}

// Month builds the date-picker grid for the month containing ref.
func (s *Service) Month(ref, selected time.Time) slots.Month {
	return slots.MonthGrid(ref, selected, s.now(), s.Location())
}
