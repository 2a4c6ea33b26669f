package slots

import (
	"sort"
	"time"
)

// Options parameterise slot generation.
type Options struct {
	Location   *time.Location
	PriceCents int64
	Currency   string
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.PriceCents <= 0 {
		o.PriceCents = DefaultPriceCents
	}
	if o.Currency == "" {
		o.Currency = DefaultCurrency
	}
	return o
}

// Compute builds the bookable slots for day: one per hour from OpeningHour to
// ClosingHour, marked unavailable when any busy interval overlaps it. Slots
// that have ended at now are left out entirely. The result is ordered by
// start time. now is a parameter so callers must pass the live clock on every
// call rather than reuse an earlier result.
func Compute(day time.Time, busy []BusyInterval, now time.Time, opts Options) []Slot {
	opts = opts.withDefaults()
	y, m, d := day.In(opts.Location).Date()

	out := make([]Slot, 0, SlotsPerDay)
	for hour := OpeningHour; hour < ClosingHour; hour++ {
		start := time.Date(y, m, d, hour, 0, 0, 0, opts.Location)
		end := time.Date(y, m, d, hour+1, 0, 0, 0, opts.Location)
		if !end.After(now) {
			continue
		}
		out = append(out, Slot{
			ID:          SlotID(start, hour, opts.Location),
			StartTime:   start,
			EndTime:     end,
			IsAvailable: !anyOverlap(busy, start, end),
			PriceCents:  opts.PriceCents,
			Currency:    opts.Currency,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func anyOverlap(busy []BusyInterval, start, end time.Time) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// Find returns the slot with id from list.
func Find(list []Slot, id string) (Slot, bool) {
	for _, s := range list {
		if s.ID == id {
			return s, true
		}
	}
	return Slot{}, false
}
