package payments

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wolfman30/tg-booking-miniapp/internal/slots"
)

// LabeledPrice is one invoice line in minor currency units.
type LabeledPrice struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// Invoice is what an invoice-capable host shows the payer.
type Invoice struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Payload     string         `json:"payload"`
	Currency    string         `json:"currency"`
	Prices      []LabeledPrice `json:"prices"`
}

type invoicePayload struct {
	SlotID string    `json:"slotId"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// NewInvoice builds the invoice for a slot. The payload lets whoever
// receives the paid invoice find the slot again.
func NewInvoice(s slots.Slot, topic string) (*Invoice, error) {
	payload, err := json.Marshal(invoicePayload{SlotID: s.ID, Start: s.StartTime, End: s.EndTime})
	if err != nil {
		return nil, fmt.Errorf("payments: encode invoice payload: %w", err)
	}
	description := fmt.Sprintf("%s, %s-%s", s.StartTime.Format("Mon Jan 2"), s.StartTime.Format("15:04"), s.EndTime.Format("15:04"))
	if topic != "" {
		description += ": " + topic
	}
	return &Invoice{
		Title:       "Consultation booking",
		Description: description,
		Payload:     string(payload),
		Currency:    s.Currency,
		Prices:      []LabeledPrice{{Label: "Consultation (1 hour)", Amount: s.PriceCents}},
	}, nil
}
