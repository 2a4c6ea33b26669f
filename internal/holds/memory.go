package holds

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/tg-booking-miniapp/internal/slots"
)

type memoryEntry struct {
	hold      Hold
	expiresAt time.Time
}

// MemoryStore is an in-process Store for single-node deployments and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	loc     *time.Location
	now     func() time.Time
}

// NewMemoryStore creates an empty store. Days passed to Busy are read in loc.
func NewMemoryStore(loc *time.Location) *MemoryStore {
	if loc == nil {
		loc = time.UTC
	}
	return &MemoryStore{entries: make(map[string]memoryEntry), loc: loc, now: time.Now}
}

// WithClock replaces the time source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) live(id string, now time.Time) (memoryEntry, bool) {
	e, ok := s.entries[id]
	if !ok {
		return memoryEntry{}, false
	}
	if !now.Before(e.expiresAt) {
		delete(s.entries, id)
		return memoryEntry{}, false
	}
	return e, true
}

func (s *MemoryStore) Acquire(_ context.Context, h Hold, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.live(h.SlotID, now); ok {
		if e.hold.Owner != h.Owner {
			return ErrHeld
		}
		if e.hold.Status == StatusConfirmed {
			return nil
		}
	}
	h.Status = StatusPending
	s.entries[h.SlotID] = memoryEntry{hold: h, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryStore) Confirm(_ context.Context, h Hold) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.live(h.SlotID, now); ok && e.hold.Owner != h.Owner {
		return ErrHeld
	}
	h.Status = StatusConfirmed
	s.entries[h.SlotID] = memoryEntry{hold: h, expiresAt: now.Add(confirmTTL(h, now))}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, h Hold) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.live(h.SlotID, s.now()); ok && e.hold.Owner == h.Owner && e.hold.Status != StatusConfirmed {
		delete(s.entries, h.SlotID)
	}
	return nil
}

func (s *MemoryStore) Busy(_ context.Context, day time.Time, exceptOwner string) ([]slots.BusyInterval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var out []slots.BusyInterval
	for id := range s.entries {
		e, ok := s.live(id, now)
		if !ok || !slots.SameDay(e.hold.Start, day, s.loc) {
			continue
		}
		if exceptOwner != "" && e.hold.Owner == exceptOwner {
			continue
		}
		out = append(out, slots.BusyInterval{Start: e.hold.Start, End: e.hold.End})
	}
	return out, nil
}
