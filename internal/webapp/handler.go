// Package webapp carries the mini-app over a WebSocket: the server pushes
// views and host button state, the client sends actions and button clicks.
package webapp

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/wolfman30/tg-booking-miniapp/internal/host"
	"github.com/wolfman30/tg-booking-miniapp/internal/session"
	"github.com/wolfman30/tg-booking-miniapp/pkg/logging"
)

// Outbound frame types.
const (
	FrameSession    = "session"
	FrameView       = "view"
	FrameMainButton = "main_button"
	FrameBackButton = "back_button"
	FrameAlert      = "alert"
	FrameReady      = "ready"
	FrameExpand     = "expand"
	FramePong       = "pong"
	FrameError      = "error"
)

// idleTimeout closes sockets that stop sending; clients ping well inside it.
const idleTimeout = 2 * time.Minute

// Inbound frame types.
const (
	InboundAction      = "action"
	InboundMainClicked = "main_button_clicked"
	InboundBackClicked = "back_button_clicked"
	InboundPing        = "ping"
)

// OutboundFrame is what we send to the client.
type OutboundFrame struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id,omitempty"`
	View      *session.View `json:"view,omitempty"`
	Button    *ButtonState  `json:"button,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// InboundFrame is what the client sends.
type InboundFrame struct {
	Type   string          `json:"type"`
	Action *session.Action `json:"action,omitempty"`
}

// Sessions is the part of the session manager the socket needs.
type Sessions interface {
	Create(platform host.Platform) (*session.Session, error)
	Get(id string) (*session.Session, error)
	Remove(id string) error
}

// Handler serves the booking socket.
type Handler struct {
	sessions Sessions
	logger   *logging.Logger
}

// NewHandler creates a socket handler.
func NewHandler(sessions Sessions, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{sessions: sessions, logger: logger}
}

// conn serialises writes; the session loop and the read loop both send.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(f OutboundFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_ = websocket.JSON.Send(c.ws, f)
}

// HandleWebSocket upgrades to WebSocket and runs one session over it.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(ws *websocket.Conn) {
		h.serveWS(ws, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(ws *websocket.Conn, r *http.Request) {
	c := &conn{ws: ws}
	q := r.URL.Query()

	var tg *TelegramHost
	var s *session.Session
	var err error
	owned := true

	if id := q.Get("session"); id != "" {
		// attach to a session created over REST; it keeps running after the socket closes
		s, err = h.sessions.Get(id)
		owned = false
	} else {
		var platform host.Platform
		if q.Get("platform") == "telegram" {
			user, uerr := host.ParseInitData(q.Get("init_data"))
			if uerr != nil {
				h.logger.Debug("webapp: no user in init data", "error", uerr)
			}
			tg = NewTelegramHost(c.send, user, host.ParseTheme(q.Get("theme")))
			platform = tg
		}
		s, err = h.sessions.Create(platform)
	}
	if err != nil {
		c.send(OutboundFrame{Type: FrameError, Message: "session unavailable"})
		return
	}

	logger := h.logger.ForSession(s.ID())
	unsubscribe := s.Subscribe(func(v session.View) {
		c.send(OutboundFrame{Type: FrameView, View: &v})
	})
	defer func() {
		unsubscribe()
		if owned {
			_ = h.sessions.Remove(s.ID())
		}
	}()

	ctx := r.Context()
	view, err := s.View(ctx)
	if err != nil {
		c.send(OutboundFrame{Type: FrameError, Message: "session unavailable"})
		return
	}
	c.send(OutboundFrame{Type: FrameSession, SessionID: s.ID(), View: &view})
	logger.Info("webapp: connection opened", "telegram", tg != nil)

	for {
		var msg InboundFrame
		_ = ws.SetReadDeadline(time.Now().Add(idleTimeout))
		if err := websocket.JSON.Receive(ws, &msg); err != nil {
			logger.Debug("webapp: connection closed", "error", err)
			return
		}

		switch msg.Type {
		case InboundPing:
			c.send(OutboundFrame{Type: FramePong})
		case InboundAction:
			if msg.Action == nil {
				continue
			}
			h.dispatch(ctx, s, *msg.Action)
		case InboundMainClicked:
			if tg != nil {
				tg.ClickMain()
			}
		case InboundBackClicked:
			if tg != nil {
				tg.ClickBack()
			}
		}
	}
}

// dispatch applies an action; the resulting view reaches the client through
// the session subscription.
func (h *Handler) dispatch(ctx context.Context, s *session.Session, a session.Action) {
	if _, err := s.Dispatch(ctx, a); err != nil {
		h.logger.Warn("webapp: dispatch failed", "session_id", s.ID(), "error", err)
	}
}
