package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/robbyt/go-fsm"

	"github.com/wolfman30/tg-booking-miniapp/internal/slots"
	"github.com/wolfman30/tg-booking-miniapp/pkg/logging"
)

// Draft accumulates the booking while the visitor moves through the flow.
type Draft struct {
	SlotID        string        `json:"slot_id,omitempty"`
	StartTime     time.Time     `json:"start_time,omitempty"`
	EndTime       time.Time     `json:"end_time,omitempty"`
	PriceCents    int64         `json:"price_cents,omitempty"`
	Currency      string        `json:"currency,omitempty"`
	Name          string        `json:"name,omitempty"`
	Topic         string        `json:"topic,omitempty"`
	Method        PaymentMethod `json:"method,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"`
	BookingID     string        `json:"booking_id,omitempty"`
}

// Paid reports whether a payment already succeeded for this draft.
func (d Draft) Paid() bool {
	return d.TransactionID != ""
}

// LoadTicket identifies one slot load. Only the newest ticket may apply.
type LoadTicket struct {
	Gen  uint64
	Date time.Time
}

// PaymentTicket identifies one payment attempt.
type PaymentTicket struct {
	Gen   uint64
	Draft Draft
	// AlreadyPaid means the draft was paid earlier and the flow moved
	// straight to confirmation; nothing must be charged.
	AlreadyPaid bool
}

// Receipt is the outcome of a successful payment.
type Receipt struct {
	TransactionID string
	BookingID     string
}

// Outcome describes what CompletePayment did.
type Outcome int

const (
	// OutcomeStale means the result belonged to a superseded attempt.
	OutcomeStale Outcome = iota
	// OutcomeFailed leaves the flow on the payment step for a retry.
	OutcomeFailed
	// OutcomeConfirmed moved the flow to confirmation.
	OutcomeConfirmed
	// OutcomePaid recorded the payment on a draft whose visitor had stepped
	// back to details; paying again confirms without a new charge.
	OutcomePaid
)

// State is a read-only copy of everything on screen.
type State struct {
	Step         Step         `json:"step"`
	SelectedDate time.Time    `json:"selected_date"`
	Slots        []slots.Slot `json:"slots"`
	SelectedSlot *slots.Slot  `json:"selected_slot,omitempty"`
	Draft        Draft        `json:"draft"`
	Loading      bool         `json:"is_loading"`
	LoadFailed   bool         `json:"load_failed"`
	Paying       bool         `json:"paying"`
}

// StepObserver is told about every step change.
type StepObserver func(from, to Step)

// Options configure a Flow.
type Options struct {
	Location *time.Location
	Now      func() time.Time
	Logger   *logging.Logger
}

// Flow is the booking state machine for one session. It is not safe for
// concurrent use: the owning session serialises every call.
type Flow struct {
	machine *fsm.Machine
	loc     *time.Location
	now     func() time.Time
	logger  *logging.Logger

	selectedDate time.Time
	slots        []slots.Slot
	loading      bool
	loadFailed   bool
	loadGen      uint64

	selectedSlot *slots.Slot
	draft        Draft
	paying       bool
	payGen       uint64

	observers []StepObserver
}

// New starts a flow on the initial step with today selected.
func New(opts Options) (*Flow, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	machine, err := fsm.New(opts.Logger.Handler(), string(InitialStep), stepTransitions)
	if err != nil {
		return nil, fmt.Errorf("booking: build state machine: %w", err)
	}
	f := &Flow{
		machine: machine,
		loc:     opts.Location,
		now:     opts.Now,
		logger:  opts.Logger,
	}
	f.selectedDate = slots.DayStart(f.now(), f.loc)
	return f, nil
}

// OnStepChange registers an observer.
func (f *Flow) OnStepChange(fn StepObserver) {
	f.observers = append(f.observers, fn)
}

// Step returns the current step.
func (f *Flow) Step() Step {
	return Step(f.machine.GetState())
}

// Location is the zone dates are compared in.
func (f *Flow) Location() *time.Location {
	return f.loc
}

// Snapshot copies the current state.
func (f *Flow) Snapshot() State {
	st := State{
		Step:         f.Step(),
		SelectedDate: f.selectedDate,
		Slots:        append([]slots.Slot(nil), f.slots...),
		Draft:        f.draft,
		Loading:      f.loading,
		LoadFailed:   f.loadFailed,
		Paying:       f.paying,
	}
	if f.selectedSlot != nil {
		s := *f.selectedSlot
		st.SelectedSlot = &s
	}
	return st
}

// SelectDate picks the day whose slots are shown. Past dates are rejected
// without touching state; any other date invalidates the current list.
func (f *Flow) SelectDate(day time.Time) (LoadTicket, error) {
	if f.Step() != StepSlots {
		return LoadTicket{}, ErrWrongStep
	}
	if slots.BeforeDay(day, f.now(), f.loc) {
		return LoadTicket{}, ErrPastDate
	}
	f.selectedDate = slots.DayStart(day, f.loc)
	return f.startLoad(), nil
}

// Reload refetches the selected day.
func (f *Flow) Reload() (LoadTicket, error) {
	if f.Step() != StepSlots {
		return LoadTicket{}, ErrWrongStep
	}
	f.rollForward()
	return f.startLoad(), nil
}

// ApplySlots installs the result of a load. Results for a superseded ticket,
// or that arrive after the visitor left the slot step, are dropped and
// false is returned. A failed load leaves the list empty.
func (f *Flow) ApplySlots(t LoadTicket, list []slots.Slot, err error) bool {
	if t.Gen != f.loadGen || !f.loading || f.Step() != StepSlots {
		return false
	}
	f.loading = false
	if err != nil {
		f.slots = nil
		f.loadFailed = true
		return true
	}
	f.slots = list
	f.loadFailed = false
	return true
}

// SelectSlot moves to details with the slot re-checked against the clock.
func (f *Flow) SelectSlot(id string) error {
	if f.Step() != StepSlots {
		return ErrWrongStep
	}
	s, ok := slots.Find(f.slots, id)
	if !ok {
		return ErrSlotNotFound
	}
	if !s.Open() {
		return ErrSlotUnavailable
	}
	if s.Elapsed(f.now()) {
		return ErrSlotElapsed
	}
	return f.move(StepDetails, func() {
		f.selectedSlot = &s
		f.draft = Draft{
			SlotID:     s.ID,
			StartTime:  s.StartTime,
			EndTime:    s.EndTime,
			PriceCents: s.PriceCents,
			Currency:   s.Currency,
			Method:     MethodCard,
		}
	})
}

// MarkSlotTaken flips the selected slot's entry in the list to unavailable.
// Used when a hold for it could not be acquired.
func (f *Flow) MarkSlotTaken(id string) {
	for i := range f.slots {
		if f.slots[i].ID == id {
			f.slots[i].IsAvailable = false
		}
	}
}

// UpdateDetails stores form input as typed.
func (f *Flow) UpdateDetails(name, topic string) error {
	if f.Step() != StepDetails {
		return ErrWrongStep
	}
	f.draft.Name = name
	f.draft.Topic = topic
	return nil
}

// SubmitDetails validates the form and moves to payment.
func (f *Flow) SubmitDetails() error {
	if f.Step() != StepDetails {
		return ErrWrongStep
	}
	name := strings.TrimSpace(f.draft.Name)
	topic := strings.TrimSpace(f.draft.Topic)
	if name == "" {
		return ErrMissingName
	}
	if topic == "" {
		return ErrMissingTopic
	}
	return f.move(StepPayment, func() {
		f.draft.Name = name
		f.draft.Topic = topic
	})
}

// SelectPaymentMethod sets card or invoice.
func (f *Flow) SelectPaymentMethod(m PaymentMethod) error {
	if f.Step() != StepPayment {
		return ErrWrongStep
	}
	if !m.Valid() {
		return ErrInvalidMethod
	}
	if f.paying {
		return ErrPaymentInFlight
	}
	f.draft.Method = m
	return nil
}

// BeginPayment starts an attempt. A second call while one is running returns
// ErrPaymentInFlight. A draft that was already paid skips the charge.
func (f *Flow) BeginPayment() (PaymentTicket, error) {
	if f.Step() != StepPayment {
		return PaymentTicket{}, ErrWrongStep
	}
	if f.paying {
		return PaymentTicket{}, ErrPaymentInFlight
	}
	if f.draft.Paid() {
		if err := f.move(StepConfirmation, nil); err != nil {
			return PaymentTicket{}, err
		}
		return PaymentTicket{Gen: f.payGen, Draft: f.draft, AlreadyPaid: true}, nil
	}
	f.paying = true
	f.payGen++
	return PaymentTicket{Gen: f.payGen, Draft: f.draft}, nil
}

// PaymentPending reports whether t is the attempt currently running.
func (f *Flow) PaymentPending(t PaymentTicket) bool {
	return f.paying && t.Gen == f.payGen && !t.AlreadyPaid
}

// CompletePayment applies the result of the attempt named by t.
func (f *Flow) CompletePayment(t PaymentTicket, r Receipt, err error) Outcome {
	if !f.PaymentPending(t) {
		return OutcomeStale
	}
	f.paying = false
	if err != nil {
		return OutcomeFailed
	}
	f.draft.TransactionID = r.TransactionID
	f.draft.BookingID = r.BookingID
	if f.Step() != StepPayment {
		return OutcomePaid
	}
	if err := f.move(StepConfirmation, nil); err != nil {
		f.logger.Error("booking: confirm after payment", "error", err)
		return OutcomePaid
	}
	return OutcomeConfirmed
}

// Back moves to the static back target of the current step. Returning to
// the slot step clears the selection and the draft and asks for a reload,
// since the list may be stale.
func (f *Flow) Back() (*LoadTicket, error) {
	from := f.Step()
	to, ok := BackTarget(from)
	if !ok {
		return nil, ErrNoBackTarget
	}
	if to != StepSlots {
		return nil, f.move(to, nil)
	}
	var t LoadTicket
	err := f.move(to, func() {
		f.resetSelection()
		f.rollForward()
		t = f.startLoad()
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Done finishes a confirmed booking and starts over on the initial step.
func (f *Flow) Done() (LoadTicket, error) {
	if f.Step() != StepConfirmation {
		return LoadTicket{}, ErrWrongStep
	}
	var t LoadTicket
	err := f.move(InitialStep, func() {
		f.resetSelection()
		f.rollForward()
		t = f.startLoad()
	})
	return t, err
}

func (f *Flow) resetSelection() {
	f.selectedSlot = nil
	f.draft = Draft{}
	if f.paying {
		f.paying = false
		f.payGen++
	}
}

// rollForward moves a selected date that has fallen into the past to today.
func (f *Flow) rollForward() {
	now := f.now()
	if slots.BeforeDay(f.selectedDate, now, f.loc) {
		f.selectedDate = slots.DayStart(now, f.loc)
	}
}

func (f *Flow) startLoad() LoadTicket {
	f.loadGen++
	f.loading = true
	f.loadFailed = false
	f.slots = nil
	return LoadTicket{Gen: f.loadGen, Date: f.selectedDate}
}

// move transitions the machine, runs apply, then notifies observers, so
// observers always see a consistent state.
func (f *Flow) move(to Step, apply func()) error {
	from := f.Step()
	if err := f.machine.Transition(string(to)); err != nil {
		return fmt.Errorf("booking: %s -> %s: %w", from, to, err)
	}
	if from == StepSlots {
		// leaving the slot step orphans any load in flight
		f.loadGen++
		f.loading = false
	}
	if apply != nil {
		apply()
	}
	for _, fn := range f.observers {
		fn(from, to)
	}
	return nil
}
