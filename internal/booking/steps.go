// Package booking implements the booking wizard: which step is on screen,
// the date and slot picked, the draft being filled in, and the guards that
// decide whether a user action is allowed.
package booking

// Step identifies the screen the flow is on.
type Step string

const (
	// StepSlots is the initial step: inline date toggle plus the day's slots.
	StepSlots        Step = "slots"
	StepDetails      Step = "details"
	StepPayment      Step = "payment"
	StepConfirmation Step = "confirmation"
)

// InitialStep is where a new flow starts and where Done returns to.
const InitialStep = StepSlots

// stepTransitions lists every legal move: one step forward, one step back,
// and confirmation straight back to the start.
var stepTransitions = map[string][]string{
	string(StepSlots):        {string(StepDetails)},
	string(StepDetails):      {string(StepSlots), string(StepPayment)},
	string(StepPayment):      {string(StepDetails), string(StepConfirmation)},
	string(StepConfirmation): {string(StepPayment), string(StepSlots)},
}

// BackTarget is where the back action leads from step. The target depends on
// the step alone, never on history.
func BackTarget(step Step) (Step, bool) {
	switch step {
	case StepDetails:
		return StepSlots, true
	case StepPayment:
		return StepDetails, true
	case StepConfirmation:
		return StepPayment, true
	default:
		return "", false
	}
}

// HasSlot reports whether a slot must be selected while on step.
func HasSlot(step Step) bool {
	return step == StepDetails || step == StepPayment || step == StepConfirmation
}

// PaymentMethod is how the visitor pays.
type PaymentMethod string

const (
	MethodCard    PaymentMethod = "card"
	MethodInvoice PaymentMethod = "invoice"
)

// Valid reports whether m is a supported method.
func (m PaymentMethod) Valid() bool {
	return m == MethodCard || m == MethodInvoice
}
