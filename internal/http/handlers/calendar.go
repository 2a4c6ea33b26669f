package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/tg-booking-miniapp/internal/availability"
	"github.com/wolfman30/tg-booking-miniapp/internal/bookings"
	"github.com/wolfman30/tg-booking-miniapp/internal/slots"
	"github.com/wolfman30/tg-booking-miniapp/pkg/logging"
)

// CalendarHandler serves read-only availability and booking lookups.
type CalendarHandler struct {
	availability *availability.Service
	bookings     *bookings.Service
	logger       *logging.Logger
}

func NewCalendarHandler(svc *availability.Service, bookingSvc *bookings.Service, logger *logging.Logger) *CalendarHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CalendarHandler{availability: svc, bookings: bookingSvc, logger: logger}
}

// Month handles GET /api/calendar?month=YYYY-MM[&selected=YYYY-MM-DD]
func (h *CalendarHandler) Month(w http.ResponseWriter, r *http.Request) {
	loc := h.availability.Location()
	today := h.availability.Now()

	ref := today
	if raw := r.URL.Query().Get("month"); raw != "" {
		m, err := slots.ParseMonth(raw, loc)
		if err != nil {
			jsonError(w, "month must be YYYY-MM", http.StatusBadRequest)
			return
		}
		ref = m
	}
	selected := today
	if raw := r.URL.Query().Get("selected"); raw != "" {
		d, err := slots.ParseDay(raw, loc)
		if err != nil {
			jsonError(w, "selected must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		selected = d
	}
	writeJSON(w, http.StatusOK, h.availability.Month(ref, selected))
}

// Slots handles GET /api/slots?date=YYYY-MM-DD
func (h *CalendarHandler) Slots(w http.ResponseWriter, r *http.Request) {
	loc := h.availability.Location()
	day, err := slots.ParseDay(r.URL.Query().Get("date"), loc)
	if err != nil {
		jsonError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	list, err := h.availability.Slots(r.Context(), day, "")
	if err != nil {
		h.logger.Warn("slot lookup failed", "date", slots.DayKey(day, loc), "error", err)
		jsonError(w, "availability unavailable", http.StatusBadGateway)
		return
	}
	if list == nil {
		list = []slots.Slot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": slots.DayKey(day, loc), "slots": list})
}

// Booking handles GET /api/bookings/{reference}
func (h *CalendarHandler) Booking(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookings.Get(r.Context(), chi.URLParam(r, "reference"))
	if errors.Is(err, bookings.ErrNotFound) {
		jsonError(w, "booking not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("booking lookup failed", "error", err)
		jsonError(w, "booking lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
