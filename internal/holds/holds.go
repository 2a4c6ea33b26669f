// Package holds keeps short-lived claims on slots so two sessions cannot pay
// for the same hour at once. The first holder wins; holds are best-effort and
// expire on their own.
package holds

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/tg-booking-miniapp/internal/slots"
)

// ErrHeld is returned when another owner already holds the slot.
var ErrHeld = errors.New("holds: slot is held by another session")

// Status of a hold.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

// Hold is one owner's claim on one slot.
type Hold struct {
	SlotID string    `json:"slot_id"`
	Owner  string    `json:"owner"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Status Status    `json:"status"`
}

// HoldFor builds a pending hold for a slot.
func HoldFor(owner string, s slots.Slot) Hold {
	return Hold{SlotID: s.ID, Owner: owner, Start: s.StartTime, End: s.EndTime, Status: StatusPending}
}

// Store persists holds.
type Store interface {
	// Acquire claims the slot for ttl. Re-acquiring an own hold refreshes it.
	Acquire(ctx context.Context, h Hold, ttl time.Duration) error
	// Confirm turns the owner's hold into a booking that lasts until the slot ends.
	Confirm(ctx context.Context, h Hold) error
	// Release drops the hold if the caller still owns it and it is not confirmed.
	Release(ctx context.Context, h Hold) error
	// Busy lists held or confirmed intervals on a day, excluding the given owner's.
	Busy(ctx context.Context, day time.Time, exceptOwner string) ([]slots.BusyInterval, error)
}

// confirmTTL keeps a confirmed hold until the slot is over, plus a margin so
// clock skew between nodes doesn't free it early.
func confirmTTL(h Hold, now time.Time) time.Duration {
	ttl := h.End.Sub(now) + time.Hour
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}
