package bookings

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned for an unknown booking reference.
	ErrNotFound = errors.New("bookings: not found")
	// ErrDuplicate is returned when a reference is already taken.
	ErrDuplicate = errors.New("bookings: duplicate reference")
)

// Booking is a paid, confirmed slot.
type Booking struct {
	Reference     string    `json:"reference"`
	SessionID     string    `json:"session_id"`
	UserID        *int64    `json:"user_id,omitempty"`
	SlotID        string    `json:"slot_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Name          string    `json:"name"`
	Topic         string    `json:"topic"`
	Method        string    `json:"method"`
	PriceCents    int64     `json:"price_cents"`
	Currency      string    `json:"currency"`
	TransactionID string    `json:"transaction_id"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

// Repository keeps bookings in memory for the life of the process.
type Repository struct {
	mu   sync.RWMutex
	rows map[string]Booking
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{rows: make(map[string]Booking)}
}

// Insert stores b under its reference.
func (r *Repository) Insert(_ context.Context, b Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[b.Reference]; ok {
		return ErrDuplicate
	}
	r.rows[b.Reference] = b
	return nil
}

// Get loads a booking by reference.
func (r *Repository) Get(_ context.Context, reference string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.rows[reference]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

// ForTransaction finds the booking created for a payment, if any.
func (r *Repository) ForTransaction(_ context.Context, transactionID string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.rows {
		if b.TransactionID == transactionID {
			b := b
			return &b, nil
		}
	}
	return nil, ErrNotFound
}

// Len reports how many bookings are stored.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}
