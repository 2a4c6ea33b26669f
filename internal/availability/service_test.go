package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/tg-booking-miniapp/internal/calendar"
	"github.com/wolfman30/tg-booking-miniapp/internal/holds"
	"github.com/wolfman30/tg-booking-miniapp/internal/slots"
)

var day = time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)

func at(hour int) time.Time {
	return time.Date(2024, time.June, 10, hour, 0, 0, 0, time.UTC)
}

func busyAt(hours ...int) calendar.Source {
	return calendar.SourceFunc(func(context.Context, time.Time) ([]slots.BusyInterval, error) {
		var out []slots.BusyInterval
		for _, h := range hours {
			out = append(out, slots.BusyInterval{Start: at(h), End: at(h + 1)})
		}
		return out, nil
	})
}

type failingHolds struct{ holds.Store }

func (failingHolds) Busy(context.Context, time.Time, string) ([]slots.BusyInterval, error) {
	return nil, errors.New("redis down")
}

func TestSlotsMarksBusyHour(t *testing.T) {
	svc := NewService(Config{
		Source: busyAt(10),
		Now:    func() time.Time { return at(6) },
	})

	list, err := svc.Slots(context.Background(), day, "")
	require.NoError(t, err)
	require.Len(t, list, slots.SlotsPerDay)
	for _, s := range list {
		assert.Equal(t, s.StartTime.Hour() != 10, s.IsAvailable, s.ID)
	}
}

func TestSlotsSourceFailureReturnsNothing(t *testing.T) {
	svc := NewService(Config{
		Source: calendar.SourceFunc(func(context.Context, time.Time) ([]slots.BusyInterval, error) {
			return nil, &calendar.UpstreamError{Status: 500}
		}),
		Now: func() time.Time { return at(6) },
	})

	list, err := svc.Slots(context.Background(), day, "")
	assert.Nil(t, list)
	var upstream *calendar.UpstreamError
	assert.ErrorAs(t, err, &upstream)
}

func TestSlotsIncludeOtherSessionsHolds(t *testing.T) {
	store := holds.NewMemoryStore(time.UTC).WithClock(func() time.Time { return at(6) })
	svc := NewService(Config{Source: busyAt(), Holds: store, Now: func() time.Time { return at(6) }})

	held := slots.Slot{ID: "2024-06-10-14", StartTime: at(14), EndTime: at(15)}
	require.NoError(t, store.Acquire(context.Background(), holds.HoldFor("other", held), time.Minute))

	list, err := svc.Slots(context.Background(), day, "viewer")
	require.NoError(t, err)
	s, ok := slots.Find(list, held.ID)
	require.True(t, ok)
	assert.False(t, s.IsAvailable)

	list, err = svc.Slots(context.Background(), day, "other")
	require.NoError(t, err)
	s, _ = slots.Find(list, held.ID)
	assert.True(t, s.IsAvailable, "own hold does not block the holder")
}

func TestSlotsHoldFailureDegrades(t *testing.T) {
	svc := NewService(Config{Source: busyAt(9), Holds: failingHolds{}, Now: func() time.Time { return at(6) }})

	list, err := svc.Slots(context.Background(), day, "")
	require.NoError(t, err)
	assert.Len(t, list, slots.SlotsPerDay)
	assert.False(t, list[0].IsAvailable)
}

func TestSlotsUseLiveClock(t *testing.T) {
	now := at(6)
	svc := NewService(Config{Source: busyAt(), Now: func() time.Time { return now }})

	first, err := svc.Slots(context.Background(), day, "")
	require.NoError(t, err)
	now = at(12)
	second, err := svc.Slots(context.Background(), day, "")
	require.NoError(t, err)

	assert.Len(t, first, 9)
	assert.Len(t, second, 6)
}

func TestMonthUsesClockForToday(t *testing.T) {
	svc := NewService(Config{Now: func() time.Time { return at(8) }})
	m := svc.Month(day, day)
	assert.Equal(t, time.June, m.Month)
	assert.Len(t, m.Days, 30)
	assert.True(t, m.Days[9].Today)
	assert.True(t, m.Days[8].Past)
}
