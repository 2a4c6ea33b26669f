// Package session runs one booking flow per visitor. Every mutation of a
// session happens on its own event-loop goroutine; slot loads, payments and
// hold calls run elsewhere and post their results back to the loop.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wolfman30/tg-booking-miniapp/internal/availability"
	"github.com/wolfman30/tg-booking-miniapp/internal/booking"
	"github.com/wolfman30/tg-booking-miniapp/internal/bookings"
	"github.com/wolfman30/tg-booking-miniapp/internal/calendar"
	"github.com/wolfman30/tg-booking-miniapp/internal/holds"
	"github.com/wolfman30/tg-booking-miniapp/internal/host"
	"github.com/wolfman30/tg-booking-miniapp/internal/observability/metrics"
	"github.com/wolfman30/tg-booking-miniapp/internal/payments"
	"github.com/wolfman30/tg-booking-miniapp/internal/slots"
	"github.com/wolfman30/tg-booking-miniapp/pkg/logging"
)

var (
	// ErrClosed is returned for calls on a session that has shut down.
	ErrClosed = errors.New("session: closed")
	// ErrNotFound is returned for an unknown session id.
	ErrNotFound = errors.New("session: not found")

	errInvalidDate   = errors.New("session: invalid date")
	errUnknownAction = errors.New("session: unknown action")
)

const (
	defaultHoldTTL        = 10 * time.Minute
	defaultPaymentTimeout = 15 * time.Second
	holdCallTimeout       = 3 * time.Second
)

// Dependencies are shared by every session.
type Dependencies struct {
	Availability   *availability.Service
	Holds          holds.Store
	Payments       payments.Processor
	Velocity       *payments.VelocityChecker
	Bookings       *bookings.Service
	Metrics        *metrics.BookingMetrics
	Logger         *logging.Logger
	HoldTTL        time.Duration
	PaymentTimeout time.Duration
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	if d.Availability == nil {
		d.Availability = availability.NewService(availability.Config{Logger: d.Logger})
	}
	if d.Payments == nil {
		d.Payments = payments.NewMockProcessor(payments.MockConfig{}, d.Logger)
	}
	if d.Bookings == nil {
		d.Bookings = bookings.NewService(nil, d.Logger)
	}
	if d.HoldTTL <= 0 {
		d.HoldTTL = defaultHoldTTL
	}
	if d.PaymentTimeout <= 0 {
		d.PaymentTimeout = defaultPaymentTimeout
	}
	return d
}

// Session is one visitor's booking flow.
type Session struct {
	id       string
	deps     Dependencies
	logger   *logging.Logger
	platform host.Platform
	flow     *booking.Flow
	bridge   *host.Bridge

	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan func()
	done   chan struct{}
	once   sync.Once

	lastActive atomic.Int64

	// owned by the loop
	version  uint64
	notice   string
	rejected string
	held     *holds.Hold

	listenersMu sync.Mutex
	listeners   map[int]func(View)
	nextID      int
}

// New creates a session bound to platform (nil means no host) and starts
// its loop and the first slot load.
func New(id string, platform host.Platform, deps Dependencies) (*Session, error) {
	deps = deps.withDefaults()
	logger := deps.Logger.ForSession(id)
	svc := deps.Availability

	flow, err := booking.New(booking.Options{Location: svc.Location(), Now: svc.Now, Logger: logger})
	if err != nil {
		return nil, err
	}
	bridge := host.NewBridge(platform, logger)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        id,
		deps:      deps,
		logger:    logger,
		platform:  bridge.Platform(),
		flow:      flow,
		bridge:    bridge,
		ctx:       ctx,
		cancel:    cancel,
		inbox:     make(chan func(), 32),
		done:      make(chan struct{}),
		listeners: make(map[int]func(View)),
	}
	s.touch()
	flow.OnStepChange(s.onStepChange)

	s.platform.Ready()
	s.platform.Expand()
	s.rebind()
	if ticket, err := flow.Reload(); err == nil {
		s.load(ticket)
	}

	go s.loop()
	deps.Metrics.SessionOpened()
	logger.Info("session started", "host", s.platform.Available())
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// LastActive is the time of the last visitor input.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func (s *Session) loop() {
	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-s.done:
			return
		}
	}
}

// post queues fn on the loop. Dropped once the session is closed.
func (s *Session) post(fn func()) {
	select {
	case s.inbox <- fn:
	case <-s.done:
	}
}

// call runs fn on the loop and waits for it.
func (s *Session) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case s.inbox <- func() { fn(); close(finished) }:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch applies an action and returns the resulting view. Guard
// rejections are reported in the view, not as an error.
func (s *Session) Dispatch(ctx context.Context, a Action) (View, error) {
	s.touch()
	var v View
	err := s.call(ctx, func() {
		s.clearNotice()
		s.apply(a)
		v = s.publish()
	})
	return v, err
}

// View returns the current view.
func (s *Session) View(ctx context.Context) (View, error) {
	var v View
	err := s.call(ctx, func() { v = s.view() })
	return v, err
}

// Subscribe registers fn for every published view. fn runs on the loop and
// must not call back into the session synchronously.
func (s *Session) Subscribe(fn func(View)) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()
	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// Close stops the loop, drops host handlers and releases any pending hold.
func (s *Session) Close() {
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = s.call(ctx, func() {
			s.bridge.Unbind()
			s.releaseHold()
		})
		cancel()
		s.cancel()
		close(s.done)
		s.deps.Metrics.SessionClosed()
		s.logger.Info("session closed")
	})
}

// Done is closed when the session shuts down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) apply(a Action) {
	var err error
	switch a.Type {
	case ActionSelectDate:
		day, perr := slots.ParseDay(a.Date, s.flow.Location())
		if perr != nil {
			err = errInvalidDate
			break
		}
		var t booking.LoadTicket
		if t, err = s.flow.SelectDate(day); err == nil {
			s.load(t)
		}
	case ActionReload:
		var t booking.LoadTicket
		if t, err = s.flow.Reload(); err == nil {
			s.load(t)
		}
	case ActionSelectSlot:
		err = s.selectSlot(a.SlotID)
	case ActionUpdateDetails:
		err = s.flow.UpdateDetails(a.Name, a.Topic)
	case ActionSubmitDetails:
		if a.Name != "" || a.Topic != "" {
			if err = s.flow.UpdateDetails(a.Name, a.Topic); err != nil {
				break
			}
		}
		err = s.flow.SubmitDetails()
	case ActionSelectPaymentMethod:
		err = s.flow.SelectPaymentMethod(booking.PaymentMethod(a.Method))
	case ActionPay:
		s.pay()
	case ActionBack:
		err = s.back()
	case ActionDone:
		var t booking.LoadTicket
		if t, err = s.flow.Done(); err == nil {
			s.load(t)
		}
	default:
		err = errUnknownAction
	}
	if err != nil {
		s.reject(err)
	}
}

func (s *Session) back() error {
	t, err := s.flow.Back()
	if err != nil {
		return err
	}
	if t != nil {
		s.load(*t)
	}
	return nil
}

// selectSlot claims the slot before moving on, so a slot taken by another
// session is rejected at selection time.
func (s *Session) selectSlot(id string) error {
	st := s.flow.Snapshot()
	candidate, ok := slots.Find(st.Slots, id)
	var hold *holds.Hold
	if ok && candidate.Bookable(s.deps.Availability.Now()) && s.deps.Holds != nil {
		h := holds.HoldFor(s.id, candidate)
		ctx, cancel := context.WithTimeout(s.ctx, holdCallTimeout)
		err := s.deps.Holds.Acquire(ctx, h, s.deps.HoldTTL)
		cancel()
		switch {
		case errors.Is(err, holds.ErrHeld):
			s.flow.MarkSlotTaken(id)
			return booking.ErrSlotUnavailable
		case err != nil:
			s.logger.Warn("slot hold failed, continuing without it", "slot_id", id, "error", err)
		default:
			hold = &h
		}
	}
	if err := s.flow.SelectSlot(id); err != nil {
		if hold != nil {
			s.releaseAsync(*hold)
		}
		return err
	}
	s.held = hold
	return nil
}

func (s *Session) releaseHold() {
	if s.held == nil {
		return
	}
	s.releaseAsync(*s.held)
	s.held = nil
}

func (s *Session) releaseAsync(h holds.Hold) {
	store := s.deps.Holds
	if store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), holdCallTimeout)
		defer cancel()
		if err := store.Release(ctx, h); err != nil {
			s.logger.Warn("slot hold release failed", "slot_id", h.SlotID, "error", err)
		}
	}()
}

// load fetches slots for t off the loop and applies them if t is still current.
func (s *Session) load(t booking.LoadTicket) {
	svc := s.deps.Availability
	go func() {
		list, err := svc.Slots(s.ctx, t.Date, s.id)
		s.post(func() {
			if !s.flow.ApplySlots(t, list, err) {
				s.logger.Debug("discarding stale slot load", "date", slots.DayKey(t.Date, s.flow.Location()))
				return
			}
			if err != nil {
				s.logger.Error("slot load failed", "date", slots.DayKey(t.Date, s.flow.Location()), "error", err)
				s.alert(loadErrorMessage(err))
			}
			s.publish()
		})
	}()
}

func loadErrorMessage(err error) string {
	switch {
	case errors.Is(err, calendar.ErrMissingCalendarID), errors.Is(err, calendar.ErrMissingCredentials):
		return "The calendar is not configured yet. Please try again later."
	case errors.Is(err, calendar.ErrTimeout):
		return "Loading availability took too long. Please try again."
	default:
		return "Could not load availability. Please try again."
	}
}

func (s *Session) onStepChange(from, to booking.Step) {
	s.deps.Metrics.ObserveTransition(string(from), string(to))
	s.logger.Info("step changed", "from", string(from), "step", string(to))
	if to == booking.StepSlots {
		s.releaseHold()
	}
	s.rebind()
}

// rebind binds host buttons for the current step. Each handler re-checks on
// the loop that the flow is still on the step it was bound for.
func (s *Session) rebind() {
	st := s.flow.Snapshot()
	var h host.Handlers
	switch st.Step {
	case booking.StepDetails:
		h.Primary = s.hostClick(st.Step, func() { s.apply(Action{Type: ActionSubmitDetails}) })
	case booking.StepPayment:
		h.Primary = s.hostClick(st.Step, s.pay)
	case booking.StepConfirmation:
		h.Primary = s.hostClick(st.Step, func() { s.apply(Action{Type: ActionDone}) })
	}
	if _, ok := booking.BackTarget(st.Step); ok {
		h.Back = s.hostClick(st.Step, func() { s.apply(Action{Type: ActionBack}) })
	}
	s.bridge.Rebind(st.Step, st.Draft, h)
	if st.Step == booking.StepPayment && st.Paying {
		s.bridge.SetBusy(true)
	}
}

func (s *Session) hostClick(step booking.Step, fn func()) func() {
	return func() {
		s.touch()
		s.post(func() {
			if s.flow.Step() != step {
				s.logger.Debug("ignoring host click for a previous step", "bound", string(step), "step", string(s.flow.Step()))
				return
			}
			s.clearNotice()
			fn()
			s.publish()
		})
	}
}

func (s *Session) reject(err error) {
	if errors.Is(err, booking.ErrPaymentInFlight) {
		s.logger.Debug("duplicate payment submission ignored")
		return
	}
	reason := booking.RejectionReason(err)
	msg := booking.UserMessage(err)
	switch {
	case errors.Is(err, errInvalidDate):
		reason, msg = "invalid_date", "Please pick a valid date."
	case errors.Is(err, errUnknownAction):
		reason = "unknown_action"
	}
	s.deps.Metrics.ObserveRejection(reason)
	s.logger.Info("action rejected", "reason", reason, "step", string(s.flow.Step()))
	s.rejected = reason
	s.alert(msg)
}

func (s *Session) alert(msg string) {
	s.notice = msg
	s.platform.ShowAlert(msg)
}

func (s *Session) clearNotice() {
	s.notice = ""
	s.rejected = ""
}

func (s *Session) view() View {
	st := s.flow.Snapshot()
	loc := s.flow.Location()
	v := View{
		SessionID:     s.id,
		Version:       s.version,
		Step:          st.Step,
		SelectedDate:  slots.DayKey(st.SelectedDate, loc),
		Slots:         st.Slots,
		SelectedSlot:  st.SelectedSlot,
		Draft:         st.Draft,
		Loading:       st.Loading,
		LoadFailed:    st.LoadFailed,
		Paying:        st.Paying,
		Notice:        s.notice,
		Rejected:      s.rejected,
		Controls:      s.bridge.Controls(),
		Month:         s.deps.Availability.Month(st.SelectedDate, st.SelectedDate),
		User:          s.platform.User(),
		Theme:         s.platform.Theme(),
		HostAvailable: s.platform.Available(),
	}
	if v.Slots == nil {
		v.Slots = []slots.Slot{}
	}
	return v
}

// publish bumps the version and pushes the view to subscribers.
func (s *Session) publish() View {
	s.version++
	v := s.view()
	s.listenersMu.Lock()
	fns := make([]func(View), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
	return v
}
