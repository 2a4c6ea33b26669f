package session

import (
	"github.com/wolfman30/tg-booking-miniapp/internal/booking"
	"github.com/wolfman30/tg-booking-miniapp/internal/host"
	"github.com/wolfman30/tg-booking-miniapp/internal/slots"
)

// ActionType names a user input.
type ActionType string

const (
	ActionSelectDate          ActionType = "select_date"
	ActionReload              ActionType = "reload"
	ActionSelectSlot          ActionType = "select_slot"
	ActionUpdateDetails       ActionType = "update_details"
	ActionSubmitDetails       ActionType = "submit_details"
	ActionSelectPaymentMethod ActionType = "select_payment_method"
	ActionPay                 ActionType = "pay"
	ActionBack                ActionType = "back"
	ActionDone                ActionType = "done"
)

// Action is one input from the client, over REST or the socket.
type Action struct {
	Type   ActionType `json:"type"`
	Date   string     `json:"date,omitempty"`
	SlotID string     `json:"slot_id,omitempty"`
	Name   string     `json:"name,omitempty"`
	Topic  string     `json:"topic,omitempty"`
	Method string     `json:"method,omitempty"`
}

// View is what the client renders.
type View struct {
	SessionID     string         `json:"session_id"`
	Version       uint64         `json:"version"`
	Step          booking.Step   `json:"step"`
	SelectedDate  string         `json:"selected_date"`
	Slots         []slots.Slot   `json:"slots"`
	SelectedSlot  *slots.Slot    `json:"selected_slot,omitempty"`
	Draft         booking.Draft  `json:"draft"`
	Loading       bool           `json:"is_loading"`
	LoadFailed    bool           `json:"load_failed"`
	Paying        bool           `json:"paying"`
	Notice        string         `json:"notice,omitempty"`
	Rejected      string         `json:"rejected,omitempty"`
	Controls      *host.Controls `json:"controls,omitempty"`
	Month         slots.Month    `json:"month"`
	User          *host.User     `json:"user,omitempty"`
	Theme         host.Theme     `json:"theme"`
	HostAvailable bool           `json:"host_available"`
}
