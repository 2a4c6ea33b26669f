package calendar

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/wolfman30/tg-booking-miniapp/internal/slots"
)

// MockSource generates busy hours from the date alone, so the same day always
// yields the same intervals. Weekends are busier than weekdays.
type MockSource struct {
	loc *time.Location
}

// NewMockSource creates a mock generator for calendar days in loc.
func NewMockSource(loc *time.Location) *MockSource {
	if loc == nil {
		loc = time.UTC
	}
	return &MockSource{loc: loc}
}

func (m *MockSource) BusyIntervals(_ context.Context, day time.Time) ([]slots.BusyInterval, error) {
	return m.Generate(day), nil
}

// Generate is the pure form of BusyIntervals.
func (m *MockSource) Generate(day time.Time) []slots.BusyInterval {
	key := slots.DayKey(day, m.loc)
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	start := slots.DayStart(day, m.loc)
	chance := 0.3
	if wd := start.Weekday(); wd == time.Saturday || wd == time.Sunday {
		chance = 0.6
	}

	y, mo, d := start.Date()
	var busy []slots.BusyInterval
	for hour := slots.OpeningHour; hour < slots.ClosingHour; hour++ {
		if rng.Float64() >= chance {
			continue
		}
		busy = append(busy, slots.BusyInterval{
			Start: time.Date(y, mo, d, hour, 0, 0, 0, m.loc),
			End:   time.Date(y, mo, d, hour+1, 0, 0, 0, m.loc),
		})
	}
	return busy
}
