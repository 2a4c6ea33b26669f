package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/tg-booking-miniapp/internal/booking"
	"github.com/wolfman30/tg-booking-miniapp/internal/bookings"
	"github.com/wolfman30/tg-booking-miniapp/internal/holds"
	"github.com/wolfman30/tg-booking-miniapp/internal/payments"
	"github.com/wolfman30/tg-booking-miniapp/internal/slots"
)

var (
	errPaymentTimeout = errors.New("session: payment timed out")
	errSlotLost       = errors.New("session: slot was taken before payment")
)

// pay starts the payment step. A second call while one is running is
// swallowed; the primary action is disabled until the attempt resolves.
func (s *Session) pay() {
	ticket, err := s.flow.BeginPayment()
	if err != nil {
		s.reject(err)
		return
	}
	if ticket.AlreadyPaid {
		s.logger.Info("draft already paid, skipping charge", "transaction_id", ticket.Draft.TransactionID)
		return
	}

	req, err := s.paymentRequest(ticket.Draft)
	if err != nil {
		s.completePayment(ticket, nil, nil, err)
		return
	}
	s.bridge.SetBusy(true)

	var hold *holds.Hold
	if s.held != nil {
		h := *s.held
		hold = &h
	}
	store := s.deps.Holds
	processor := s.deps.Payments
	velocity := s.deps.Velocity
	payer := s.payerKey(req)
	timeout := s.deps.PaymentTimeout
	s.logger.Info("payment started", "slot_id", ticket.Draft.SlotID, "method", string(ticket.Draft.Method))

	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, timeout)
		defer cancel()

		if res, _ := velocity.CheckAttempt(ctx, payer); !res.Allowed {
			s.post(func() { s.completePayment(ticket, hold, nil, payments.ErrTooManyAttempts) })
			return
		}

		if hold != nil && store != nil {
			err := store.Acquire(ctx, *hold, s.deps.HoldTTL)
			if errors.Is(err, holds.ErrHeld) {
				s.post(func() { s.completePayment(ticket, hold, nil, errSlotLost) })
				return
			}
			if err != nil {
				s.logger.Warn("slot hold refresh failed", "slot_id", hold.SlotID, "error", err)
			}
		}

		res, err := processor.ProcessPayment(ctx, req)
		if err == nil && (res == nil || !res.Success) {
			err = payments.ErrDeclined
		}
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = errPaymentTimeout
		}
		s.post(func() { s.completePayment(ticket, hold, res, err) })
	}()
}

func (s *Session) paymentRequest(d booking.Draft) (payments.Request, error) {
	req := payments.Request{
		EventID:     d.SlotID,
		AmountCents: d.PriceCents,
		Currency:    d.Currency,
		Method:      string(d.Method),
	}
	if u := s.platform.User(); u != nil {
		id := u.ID
		req.UserID = &id
	}
	if d.Method == booking.MethodInvoice {
		inv, err := payments.NewInvoice(slots.Slot{
			ID:         d.SlotID,
			StartTime:  d.StartTime,
			EndTime:    d.EndTime,
			PriceCents: d.PriceCents,
			Currency:   d.Currency,
		}, d.Topic)
		if err != nil {
			return req, err
		}
		req.Invoice = inv
	}
	return req, nil
}

// payerKey identifies the payer for attempt limits: the host user when
// known, else the session.
func (s *Session) payerKey(req payments.Request) string {
	if req.UserID != nil {
		return fmt.Sprintf("user:%d", *req.UserID)
	}
	return "session:" + s.id
}

// completePayment runs on the loop with the processor's answer.
func (s *Session) completePayment(t booking.PaymentTicket, hold *holds.Hold, res *payments.Result, err error) {
	if !s.flow.PaymentPending(t) {
		s.logger.Warn("discarding payment result for a superseded attempt", "slot_id", t.Draft.SlotID)
		return
	}

	if err != nil {
		s.flow.CompletePayment(t, booking.Receipt{}, err)
		s.bridge.SetBusy(false)
		s.deps.Metrics.ObservePayment(paymentStatus(err))
		s.logger.Warn("payment failed", "slot_id", t.Draft.SlotID, "error", err)
		s.alert(paymentErrorMessage(err))
		s.publish()
		return
	}

	receipt := booking.Receipt{TransactionID: res.TransactionID}
	if rec, berr := s.recordBooking(t.Draft, res.TransactionID); berr != nil {
		s.logger.Error("booking record failed after payment", "transaction_id", res.TransactionID, "error", berr)
	} else {
		receipt.BookingID = rec.Reference
	}

	outcome := s.flow.CompletePayment(t, receipt, nil)
	s.deps.Metrics.ObservePayment("succeeded")
	s.logger.Info("payment succeeded", "slot_id", t.Draft.SlotID, "transaction_id", res.TransactionID, "confirmed", outcome == booking.OutcomeConfirmed)
	if outcome != booking.OutcomeConfirmed {
		s.bridge.SetBusy(false)
	}
	if hold != nil {
		s.confirmHold(*hold)
	}
	s.publish()
}

func (s *Session) recordBooking(d booking.Draft, transactionID string) (*bookings.Booking, error) {
	c := bookings.Confirmation{
		SessionID:     s.id,
		SlotID:        d.SlotID,
		StartTime:     d.StartTime,
		EndTime:       d.EndTime,
		Name:          d.Name,
		Topic:         d.Topic,
		Method:        string(d.Method),
		PriceCents:    d.PriceCents,
		Currency:      d.Currency,
		TransactionID: transactionID,
	}
	if u := s.platform.User(); u != nil {
		id := u.ID
		c.UserID = &id
	}
	return s.deps.Bookings.Confirm(s.ctx, c)
}

func (s *Session) confirmHold(h holds.Hold) {
	store := s.deps.Holds
	if store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), holdCallTimeout)
		defer cancel()
		if err := store.Confirm(ctx, h); err != nil {
			s.logger.Error("slot hold confirm failed", "slot_id", h.SlotID, "error", err)
		}
	}()
}

func paymentStatus(err error) string {
	switch {
	case errors.Is(err, errPaymentTimeout):
		return "timeout"
	case errors.Is(err, errSlotLost):
		return "slot_lost"
	case errors.Is(err, payments.ErrDeclined):
		return "declined"
	case errors.Is(err, payments.ErrTooManyAttempts):
		return "blocked"
	default:
		return "error"
	}
}

func paymentErrorMessage(err error) string {
	switch {
	case errors.Is(err, errPaymentTimeout):
		return "The payment is taking too long. Please try again."
	case errors.Is(err, errSlotLost):
		return "Sorry, this time was just booked by someone else. Please go back and pick another slot."
	case errors.Is(err, payments.ErrTooManyAttempts):
		return "Too many payment attempts. Please try again later."
	default:
		return "Payment failed. Please try again."
	}
}
