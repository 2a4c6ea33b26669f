package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/wolfman30/tg-booking-miniapp/internal/slots"
	"github.com/wolfman30/tg-booking-miniapp/pkg/logging"
)

// GoogleSource reads busy intervals from a Google Calendar.
type GoogleSource struct {
	settings SettingsProvider
	creds    CredentialProvider
	loc      *time.Location
	endpoint string
	logger   *logging.Logger
}

// GoogleOption customises a GoogleSource.
type GoogleOption func(*GoogleSource)

// WithEndpoint overrides the API base URL.
func WithEndpoint(endpoint string) GoogleOption {
	return func(s *GoogleSource) { s.endpoint = endpoint }
}

// NewGoogleSource wires settings and credentials. loc decides where a
// calendar day starts and ends.
func NewGoogleSource(settings SettingsProvider, creds CredentialProvider, loc *time.Location, logger *logging.Logger, opts ...GoogleOption) *GoogleSource {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	if creds == nil {
		creds = APIKeyCredentials{}
	}
	s := &GoogleSource{settings: settings, creds: creds, loc: loc, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BusyIntervals lists the day's non-cancelled events as busy intervals.
func (s *GoogleSource) BusyIntervals(ctx context.Context, day time.Time) ([]slots.BusyInterval, error) {
	ctx, span := tracer.Start(ctx, "calendar.google.busy_intervals")
	defer span.End()
	span.SetAttributes(attribute.String("booking.day", slots.DayKey(day, s.loc)))

	intervals, err := s.fetch(ctx, day)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "calendar fetch failed")
		s.logger.Error("calendar fetch failed", "day", slots.DayKey(day, s.loc), "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("booking.busy_intervals", len(intervals)))
	return intervals, nil
}

func (s *GoogleSource) fetch(ctx context.Context, day time.Time) ([]slots.BusyInterval, error) {
	if s.settings == nil {
		return nil, ErrMissingCalendarID
	}
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if settings.CalendarID == "" {
		return nil, ErrMissingCalendarID
	}

	opts, err := s.creds.ClientOptions(ctx, settings)
	if err != nil {
		return nil, err
	}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create client: %w", err)
	}

	call := svc.Events.List(settings.CalendarID).
		TimeMin(slots.DayStart(day, s.loc).Format(time.RFC3339)).
		TimeMax(slots.DayEnd(day, s.loc).Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")

	var intervals []slots.BusyInterval
	err = call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			interval, err := s.eventInterval(item)
			if err != nil {
				s.logger.Warn("calendar: skipping event with unreadable times", "event_id", item.Id, "error", err)
				continue
			}
			intervals = append(intervals, interval)
		}
		return nil
	})
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return nil, &UpstreamError{Status: apiErr.Code, Message: apiErr.Message}
		}
		return nil, fmt.Errorf("calendar: list events: %w", err)
	}
	return intervals, nil
}

func (s *GoogleSource) eventInterval(ev *gcal.Event) (slots.BusyInterval, error) {
	start, err := s.eventTime(ev.Start)
	if err != nil {
		return slots.BusyInterval{}, err
	}
	end, err := s.eventTime(ev.End)
	if err != nil {
		return slots.BusyInterval{}, err
	}
	return slots.BusyInterval{Start: start, End: end}, nil
}

// eventTime reads either a timed value or an all-day date.
func (s *GoogleSource) eventTime(t *gcal.EventDateTime) (time.Time, error) {
	if t == nil {
		return time.Time{}, errors.New("missing event time")
	}
	if t.DateTime != "" {
		return time.Parse(time.RFC3339, t.DateTime)
	}
	if t.Date != "" {
		return slots.ParseDay(t.Date, s.loc)
	}
	return time.Time{}, errors.New("event time has neither dateTime nor date")
}
