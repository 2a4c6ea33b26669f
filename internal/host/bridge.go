package host

import (
	"github.com/wolfman30/tg-booking-miniapp/internal/booking"
	"github.com/wolfman30/tg-booking-miniapp/internal/slots"
	"github.com/wolfman30/tg-booking-miniapp/pkg/logging"
)

// Handlers are the forward and back actions of the current step.
type Handlers struct {
	Primary func()
	Back    func()
}

// Control is an in-page button shown when there is no host.
type Control struct {
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
	Busy    bool   `json:"busy"`
}

// Controls are the in-page replacements for the host buttons.
type Controls struct {
	ShowBackLink bool     `json:"show_back_link"`
	Submit       *Control `json:"submit,omitempty"`
}

// PrimaryLabel is the primary action text for step, if the step has one.
func PrimaryLabel(step booking.Step, draft booking.Draft) (string, bool) {
	switch step {
	case booking.StepDetails:
		return "Proceed to payment", true
	case booking.StepPayment:
		return "Pay " + slots.FormatPrice(draft.PriceCents, draft.Currency), true
	case booking.StepConfirmation:
		return "Done", true
	default:
		return "", false
	}
}

// Bridge keeps the host buttons in line with the flow step. Every Rebind
// drops the handlers of the previous step before binding new ones.
type Bridge struct {
	platform Platform
	logger   *logging.Logger

	step       booking.Step
	label      string
	hasPrimary bool
	hasBack    bool
	busy       bool

	unbindMain func()
	unbindBack func()
}

// NewBridge wraps p; a nil platform behaves as no host.
func NewBridge(p Platform, logger *logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.Default()
	}
	return &Bridge{platform: Detect(p), logger: logger}
}

// Platform returns the detected platform.
func (b *Bridge) Platform() Platform {
	return b.platform
}

// Rebind binds the buttons for step. Actions with a nil handler stay hidden.
func (b *Bridge) Rebind(step booking.Step, draft booking.Draft, h Handlers) {
	b.Unbind()

	label, ok := PrimaryLabel(step, draft)
	_, backOK := booking.BackTarget(step)
	b.step = step
	b.label = label
	b.hasPrimary = ok && h.Primary != nil
	b.hasBack = backOK && h.Back != nil
	b.busy = false

	main := b.platform.MainButton()
	if b.hasPrimary {
		main.SetText(label)
		main.HideProgress()
		main.Enable()
		b.unbindMain = main.OnClick(h.Primary)
		main.Show()
	} else {
		main.Hide()
	}

	back := b.platform.BackButton()
	if b.hasBack {
		b.unbindBack = back.OnClick(h.Back)
		back.Show()
	} else {
		back.Hide()
	}
	b.logger.Debug("host: buttons rebound", "step", string(step), "primary", b.hasPrimary, "back", b.hasBack)
}

// Unbind removes the current handlers.
func (b *Bridge) Unbind() {
	if b.unbindMain != nil {
		b.unbindMain()
		b.unbindMain = nil
	}
	if b.unbindBack != nil {
		b.unbindBack()
		b.unbindBack = nil
	}
}

// SetBusy disables the primary action and shows progress while busy.
func (b *Bridge) SetBusy(busy bool) {
	b.busy = busy
	if !b.hasPrimary {
		return
	}
	main := b.platform.MainButton()
	if busy {
		main.Disable()
		main.ShowProgress(false)
		return
	}
	main.HideProgress()
	main.Enable()
}

// Busy reports the current busy state.
func (b *Bridge) Busy() bool {
	return b.busy
}

// Controls returns the in-page controls, or nil when the host draws buttons.
func (b *Bridge) Controls() *Controls {
	if b.platform.Available() {
		return nil
	}
	c := &Controls{ShowBackLink: b.hasBack}
	if b.hasPrimary {
		c.Submit = &Control{Label: b.label, Enabled: !b.busy, Busy: b.busy}
	}
	return c
}
