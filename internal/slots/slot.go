// Package slots defines the bookable slot model and computes a day's
// availability from a set of busy intervals.
package slots

import (
	"fmt"
	"time"
)

const (
	// OpeningHour is the first bookable hour of the day (local time).
	OpeningHour = 9
	// ClosingHour is the exclusive end of the bookable day.
	ClosingHour = 18
	// SlotsPerDay is the number of generated hourly slots.
	SlotsPerDay = ClosingHour - OpeningHour

	DefaultPriceCents int64 = 5000
	DefaultCurrency         = "USD"

	dayLayout = "2006-01-02"
)

// Slot is one bookable interval. The optional fields belong to the richer
// event variant where capacity replaces the boolean availability flag.
type Slot struct {
	ID          string    `json:"id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	IsAvailable bool      `json:"is_available"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`

	Title          string `json:"title,omitempty"`
	Description    string `json:"description,omitempty"`
	Location       string `json:"location,omitempty"`
	AvailableSpots *int   `json:"available_spots,omitempty"`
	TotalSpots     *int   `json:"total_spots,omitempty"`
}

// Open reports whether the slot can be booked, ignoring elapsed time.
func (s Slot) Open() bool {
	if s.AvailableSpots != nil {
		return *s.AvailableSpots > 0
	}
	return s.IsAvailable
}

// Elapsed reports whether the slot has already ended at now.
func (s Slot) Elapsed(now time.Time) bool {
	return !s.EndTime.After(now)
}

// Bookable combines Open and Elapsed: the check repeated at selection time.
func (s Slot) Bookable(now time.Time) bool {
	return s.Open() && !s.Elapsed(now)
}

// Duration of the slot.
func (s Slot) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// BusyInterval is a half-open [Start, End) range that blocks availability.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps uses strict comparison on both ends, so intervals that merely
// touch at a boundary do not overlap.
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && end.After(b.Start)
}

// SlotID derives the identifier of the generated slot at hour on day.
func SlotID(day time.Time, hour int, loc *time.Location) string {
	return fmt.Sprintf("%s-%02d", DayKey(day, loc), hour)
}

// DayKey formats the calendar date of t in loc as YYYY-MM-DD.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(locOrUTC(loc)).Format(dayLayout)
}

// ParseDay parses a YYYY-MM-DD date as midnight in loc.
func ParseDay(value string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(dayLayout, value, locOrUTC(loc))
	if err != nil {
		return time.Time{}, fmt.Errorf("slots: parse day %q: %w", value, err)
	}
	return day, nil
}

// DayStart returns local midnight of the calendar date containing t.
func DayStart(t time.Time, loc *time.Location) time.Time {
	loc = locOrUTC(loc)
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DayEnd returns the last representable instant of t's calendar date.
func DayEnd(t time.Time, loc *time.Location) time.Time {
	start := DayStart(t, loc)
	y, m, d := start.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, start.Location()).Add(-time.Nanosecond)
}

// SameDay compares calendar dates in loc, ignoring time of day.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return DayKey(a, loc) == DayKey(b, loc)
}

// BeforeDay reports whether a's calendar date precedes b's in loc.
func BeforeDay(a, b time.Time, loc *time.Location) bool {
	return DayStart(a, loc).Before(DayStart(b, loc))
}

func locOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// FormatPrice renders minor units as "50.00 USD".
func FormatPrice(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, currency)
}
