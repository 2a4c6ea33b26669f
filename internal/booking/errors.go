package booking

import "errors"

var (
	ErrPastDate        = errors.New("booking: date is in the past")
	ErrSlotNotFound    = errors.New("booking: slot not found")
	ErrSlotUnavailable = errors.New("booking: slot is not available")
	ErrSlotElapsed     = errors.New("booking: slot has already started")
	ErrMissingName     = errors.New("booking: name is required")
	ErrMissingTopic    = errors.New("booking: topic is required")
	ErrInvalidMethod   = errors.New("booking: unsupported payment method")
	ErrWrongStep       = errors.New("booking: action not allowed on this step")
	ErrNoBackTarget    = errors.New("booking: nothing to go back to")
	// ErrPaymentInFlight is returned for a second payment while one runs.
	// Callers treat it as a no-op.
	ErrPaymentInFlight = errors.New("booking: payment already in progress")
)

// UserMessage turns a flow error into the notice shown to the visitor.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPastDate):
		return "You can't book a date in the past."
	case errors.Is(err, ErrSlotUnavailable):
		return "Sorry, that time was just taken. Please pick another slot."
	case errors.Is(err, ErrSlotElapsed):
		return "That time has already passed. Please pick another slot."
	case errors.Is(err, ErrSlotNotFound):
		return "That slot is no longer listed. Please pick another one."
	case errors.Is(err, ErrMissingName):
		return "Please enter your name."
	case errors.Is(err, ErrMissingTopic):
		return "Please tell us what you'd like to discuss."
	case errors.Is(err, ErrInvalidMethod):
		return "Please choose card or invoice."
	case errors.Is(err, ErrWrongStep), errors.Is(err, ErrNoBackTarget):
		return "That action isn't available right now."
	default:
		return "Something went wrong. Please try again."
	}
}

// RejectionReason is a short metric label for a guard error.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrPastDate):
		return "past_date"
	case errors.Is(err, ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, ErrSlotElapsed):
		return "slot_elapsed"
	case errors.Is(err, ErrSlotNotFound):
		return "slot_not_found"
	case errors.Is(err, ErrMissingName), errors.Is(err, ErrMissingTopic):
		return "missing_field"
	case errors.Is(err, ErrInvalidMethod):
		return "invalid_method"
	case errors.Is(err, ErrWrongStep), errors.Is(err, ErrNoBackTarget):
		return "wrong_step"
	case errors.Is(err, ErrPaymentInFlight):
		return "payment_in_flight"
	default:
		return "other"
	}
}
