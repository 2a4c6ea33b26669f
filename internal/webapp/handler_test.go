package webapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/tg-booking-miniapp/internal/availability"
	"github.com/wolfman30/tg-booking-miniapp/internal/booking"
	"github.com/wolfman30/tg-booking-miniapp/internal/calendar"
	"github.com/wolfman30/tg-booking-miniapp/internal/holds"
	"github.com/wolfman30/tg-booking-miniapp/internal/payments"
	"github.com/wolfman30/tg-booking-miniapp/internal/session"
	"github.com/wolfman30/tg-booking-miniapp/internal/slots"
	"github.com/wolfman30/tg-booking-miniapp/pkg/logging"
)

var testNow = time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC)

var freeCalendar = calendar.SourceFunc(func(context.Context, time.Time) ([]slots.BusyInterval, error) {
	return nil, nil
})

func newTestServer(t *testing.T) (*httptest.Server, *session.Manager) {
	t.Helper()
	logger := logging.New("error")
	store := holds.NewMemoryStore(time.UTC)
	mgr := session.NewManager(session.Dependencies{
		Availability: availability.NewService(availability.Config{
			Source:  freeCalendar,
			Holds:   store,
			Options: slots.Options{Location: time.UTC},
			Logger:  logger,
			Now:     func() time.Time { return testNow },
		}),
		Holds:    store,
		Payments: payments.NewMockProcessor(payments.MockConfig{Delay: -1, FailureRate: -1}, logger),
		Logger:   logger,
	}, time.Minute)
	srv := httptest.NewServer(http.HandlerFunc(NewHandler(mgr, logger).HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		mgr.Close()
	})
	return srv, mgr
}

func dial(t *testing.T, srv *httptest.Server, query url.Values) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query.Encode()
	ws, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, f InboundFrame) {
	t.Helper()
	require.NoError(t, websocket.JSON.Send(ws, f))
}

// readUntil reads frames until match returns true, collecting everything seen.
func readUntil(t *testing.T, ws *websocket.Conn, match func(OutboundFrame) bool) []OutboundFrame {
	t.Helper()
	var seen []OutboundFrame
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f OutboundFrame
		if err := websocket.JSON.Receive(ws, &f); err != nil {
			t.Fatalf("receive after %d frames: %v", len(seen), err)
		}
		seen = append(seen, f)
		if match(f) {
			return seen
		}
	}
}

func viewWhere(cond func(session.View) bool) func(OutboundFrame) bool {
	return func(f OutboundFrame) bool {
		return (f.Type == FrameView || f.Type == FrameSession) && f.View != nil && cond(*f.View)
	}
}

func loaded(v session.View) bool { return !v.Loading && len(v.Slots) > 0 }

func TestHandleWebSocket_BrowserFlow(t *testing.T) {
	srv, mgr := newTestServer(t)
	ws := dial(t, srv, url.Values{})

	frames := readUntil(t, ws, viewWhere(loaded))
	var sessionID string
	for _, f := range frames {
		assert.NotEqual(t, FrameReady, f.Type, "browser sessions have no host frames")
		if f.Type == FrameSession {
			sessionID = f.SessionID
		}
	}
	require.NotEmpty(t, sessionID)
	assert.Equal(t, 1, mgr.Len())

	last := frames[len(frames)-1].View
	assert.False(t, last.HostAvailable)
	assert.NotNil(t, last.Controls)
	assert.Equal(t, "2024-06-10", last.SelectedDate)

	send(t, ws, InboundFrame{Type: InboundAction, Action: &session.Action{Type: session.ActionSelectSlot, SlotID: "2024-06-10-09"}})
	frames = readUntil(t, ws, viewWhere(func(v session.View) bool { return v.Step == booking.StepDetails }))
	assert.Equal(t, "2024-06-10-09", frames[len(frames)-1].View.Draft.SlotID)

	send(t, ws, InboundFrame{Type: InboundPing})
	readUntil(t, ws, func(f OutboundFrame) bool { return f.Type == FramePong })
}

func TestHandleWebSocket_TelegramButtons(t *testing.T) {
	srv, _ := newTestServer(t)
	q := url.Values{}
	q.Set("platform", "telegram")
	q.Set("init_data", "query_id=AA&user="+url.QueryEscape(`{"id":7,"first_name":"Grace"}`)+"&hash=x")
	ws := dial(t, srv, q)

	frames := readUntil(t, ws, viewWhere(loaded))
	types := make(map[string]bool)
	for _, f := range frames {
		types[f.Type] = true
	}
	assert.True(t, types[FrameReady])
	assert.True(t, types[FrameExpand])
	last := frames[len(frames)-1].View
	assert.True(t, last.HostAvailable)
	assert.Nil(t, last.Controls)
	require.NotNil(t, last.User)
	assert.Equal(t, int64(7), last.User.ID)

	send(t, ws, InboundFrame{Type: InboundAction, Action: &session.Action{Type: session.ActionSelectSlot, SlotID: "2024-06-10-11"}})
	send(t, ws, InboundFrame{Type: InboundAction, Action: &session.Action{Type: session.ActionUpdateDetails, Name: "Grace", Topic: "Compilers"}})
	frames = readUntil(t, ws, viewWhere(func(v session.View) bool { return v.Draft.Topic == "Compilers" }))

	var mainButton *ButtonState
	for _, f := range frames {
		if f.Type == FrameMainButton {
			mainButton = f.Button
		}
	}
	require.NotNil(t, mainButton)
	assert.Equal(t, "Proceed to payment", mainButton.Text)
	assert.True(t, mainButton.Visible)

	send(t, ws, InboundFrame{Type: InboundMainClicked})
	readUntil(t, ws, viewWhere(func(v session.View) bool { return v.Step == booking.StepPayment }))

	send(t, ws, InboundFrame{Type: InboundBackClicked})
	frames = readUntil(t, ws, viewWhere(func(v session.View) bool { return v.Step == booking.StepDetails }))
	assert.Equal(t, "Grace", frames[len(frames)-1].View.Draft.Name)
}

func TestHandleWebSocket_AttachKeepsSession(t *testing.T) {
	srv, mgr := newTestServer(t)
	s, err := mgr.Create(nil)
	require.NoError(t, err)

	q := url.Values{}
	q.Set("session", s.ID())
	ws := dial(t, srv, q)
	frames := readUntil(t, ws, func(f OutboundFrame) bool { return f.Type == FrameSession })
	assert.Equal(t, s.ID(), frames[len(frames)-1].SessionID)

	ws.Close()
	time.Sleep(50 * time.Millisecond)
	_, err = mgr.Get(s.ID())
	assert.NoError(t, err)
}

func TestHandleWebSocket_UnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)
	q := url.Values{}
	q.Set("session", "missing")
	ws := dial(t, srv, q)
	frames := readUntil(t, ws, func(f OutboundFrame) bool { return f.Type == FrameError })
	assert.Equal(t, "session unavailable", frames[0].Message)
}

func TestHandleWebSocket_RemovesOwnedSessionOnClose(t *testing.T) {
	srv, mgr := newTestServer(t)
	ws := dial(t, srv, url.Values{})
	readUntil(t, ws, func(f OutboundFrame) bool { return f.Type == FrameSession })
	require.Equal(t, 1, mgr.Len())

	ws.Close()
	assert.Eventually(t, func() bool { return mgr.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
