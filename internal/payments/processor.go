package payments

import (
	"context"
	"errors"
)

var (
	// ErrDeclined is a payment the processor refused. The visitor may retry.
	ErrDeclined = errors.New("payments: payment declined")
	// ErrInvalidRequest is a request missing its event or amount.
	ErrInvalidRequest = errors.New("payments: invalid payment request")
)

// Request asks the processor to charge for one slot.
type Request struct {
	UserID      *int64   `json:"user_id,omitempty"`
	EventID     string   `json:"event_id"`
	AmountCents int64    `json:"amount_cents"`
	Currency    string   `json:"currency"`
	Method      string   `json:"method"`
	Invoice     *Invoice `json:"invoice,omitempty"`
}

func (r Request) validate() error {
	if r.EventID == "" || r.AmountCents <= 0 || r.Currency == "" {
		return ErrInvalidRequest
	}
	return nil
}

// Result of a successful charge.
type Result struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
}

// Processor charges a payment request.
type Processor interface {
	ProcessPayment(ctx context.Context, req Request) (*Result, error)
}
