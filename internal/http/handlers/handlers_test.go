package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/tg-booking-miniapp/internal/availability"
	"github.com/wolfman30/tg-booking-miniapp/internal/booking"
	"github.com/wolfman30/tg-booking-miniapp/internal/bookings"
	"github.com/wolfman30/tg-booking-miniapp/internal/calendar"
	"github.com/wolfman30/tg-booking-miniapp/internal/session"
	"github.com/wolfman30/tg-booking-miniapp/internal/slots"
	"github.com/wolfman30/tg-booking-miniapp/pkg/logging"
)

var testNow = time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC)

func newAvailability(source calendar.Source) *availability.Service {
	return availability.NewService(availability.Config{
		Source:  source,
		Options: slots.Options{Location: time.UTC},
		Logger:  logging.New("error"),
		Now:     func() time.Time { return testNow },
	})
}

func newSessionsRouter(t *testing.T) (http.Handler, *session.Manager) {
	t.Helper()
	mgr := session.NewManager(session.Dependencies{
		Availability: newAvailability(calendar.NewMockSource(time.UTC)),
		Logger:       logging.New("error"),
	}, time.Minute)
	t.Cleanup(mgr.Close)
	r := chi.NewRouter()
	r.Mount("/api/sessions", NewSessionsHandler(mgr, logging.New("error")).Routes())
	return r, mgr
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) session.View {
	t.Helper()
	var v session.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestSessionsLifecycle(t *testing.T) {
	router, mgr := newSessionsRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeView(t, rec)
	require.NotEmpty(t, created.SessionID)
	assert.Equal(t, booking.StepSlots, created.Step)
	assert.NotNil(t, created.Controls, "rest sessions render in-page controls")
	assert.Equal(t, 1, mgr.Len())

	var view session.View
	require.Eventually(t, func() bool {
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+created.SessionID, nil))
		if rec.Code != http.StatusOK {
			return false
		}
		view = decodeView(t, rec)
		return !view.Loading
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, view.Slots, slots.SlotsPerDay)

	body := `{"type":"select_date","date":"2024-06-01"}`
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/"+created.SessionID+"/actions", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	rejected := decodeView(t, rec)
	assert.Equal(t, "past_date", rejected.Rejected)
	assert.NotEmpty(t, rejected.Notice)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+created.SessionID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, mgr.Len())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+created.SessionID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionsDispatchValidation(t *testing.T) {
	router, mgr := newSessionsRouter(t)
	s, err := mgr.Create(nil)
	require.NoError(t, err)

	cases := map[string]string{
		"malformed":    `{"type":`,
		"missing type": `{"date":"2024-06-11"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/"+s.ID()+"/actions", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/nope/actions", strings.NewReader(`{"type":"reload"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCalendarMonth(t *testing.T) {
	h := NewCalendarHandler(newAvailability(nil), nil, nil)

	rec := httptest.NewRecorder()
	h.Month(rec, httptest.NewRequest(http.MethodGet, "/api/calendar?month=2024-06&selected=2024-06-12", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var month slots.Month
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &month))
	var past, today, selected int
	for _, d := range month.Days {
		if d.Past {
			past++
		}
		if d.Today {
			today++
		}
		if d.Selected {
			selected++
		}
	}
	assert.Equal(t, 9, past)
	assert.Equal(t, 1, today)
	assert.Equal(t, 1, selected)

	rec = httptest.NewRecorder()
	h.Month(rec, httptest.NewRequest(http.MethodGet, "/api/calendar?month=June", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalendarSlots(t *testing.T) {
	failing := calendar.SourceFunc(func(context.Context, time.Time) ([]slots.BusyInterval, error) {
		return nil, &calendar.UpstreamError{Status: http.StatusForbidden}
	})

	rec := httptest.NewRecorder()
	NewCalendarHandler(newAvailability(failing), nil, nil).Slots(rec, httptest.NewRequest(http.MethodGet, "/api/slots?date=2024-06-11", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = httptest.NewRecorder()
	NewCalendarHandler(newAvailability(nil), nil, nil).Slots(rec, httptest.NewRequest(http.MethodGet, "/api/slots?date=2024-06-11", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Date  string       `json:"date"`
		Slots []slots.Slot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2024-06-11", body.Date)
	assert.Len(t, body.Slots, slots.SlotsPerDay)

	rec = httptest.NewRecorder()
	NewCalendarHandler(newAvailability(nil), nil, nil).Slots(rec, httptest.NewRequest(http.MethodGet, "/api/slots", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingLookup(t *testing.T) {
	svc := bookings.NewService(nil, logging.New("error"))
	b, err := svc.Confirm(context.Background(), bookings.Confirmation{
		SessionID:     "s1",
		SlotID:        "2024-06-11-09",
		Name:          "Ada",
		Topic:         "Engines",
		TransactionID: "txn_1",
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Get("/api/bookings/{reference}", NewCalendarHandler(newAvailability(nil), svc, nil).Booking)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bookings/"+strings.ToLower(b.Reference), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slot_id":"2024-06-11-09"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bookings/ZZZZZZZZ", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"redis": PingFunc(func(context.Context) error { return nil }),
	}, func() int { return 3 })
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sessions":3`)

	h = NewHealthHandler(map[string]Pinger{
		"redis": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	}, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestCalendarConfig(t *testing.T) {
	rec := httptest.NewRecorder()
	CalendarConfig(calendar.Settings{APIKey: "key", CalendarID: "cal@example.com"}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config.json", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"GOOGLE_CALENDAR_API_KEY":"key","GOOGLE_CALENDAR_ID":"cal@example.com"}`, rec.Body.String())
}

func TestJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	jsonError(rec, "oops", http.StatusTeapot)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content type application/json, got %q", ct)
	}
}
