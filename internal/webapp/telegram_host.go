package webapp

import (
	"sync"

	"github.com/wolfman30/tg-booking-miniapp/internal/host"
)

// ButtonState mirrors a host button to the client.
type ButtonState struct {
	Text     string `json:"text,omitempty"`
	Visible  bool   `json:"visible"`
	Enabled  bool   `json:"enabled"`
	Progress bool   `json:"progress"`
}

// TelegramHost implements host.Platform for a client running inside
// Telegram: every button change is sent as a frame, and the client reports
// clicks back over the same socket.
type TelegramHost struct {
	send  func(OutboundFrame)
	user  *host.User
	theme host.Theme

	main *socketButton
	back *socketButton
}

// NewTelegramHost creates a host that writes frames with send.
func NewTelegramHost(send func(OutboundFrame), user *host.User, theme host.Theme) *TelegramHost {
	h := &TelegramHost{send: send, user: user, theme: theme}
	h.main = newSocketButton(FrameMainButton, send)
	h.back = newSocketButton(FrameBackButton, send)
	return h
}

func (h *TelegramHost) Available() bool { return true }

func (h *TelegramHost) Ready() { h.send(OutboundFrame{Type: FrameReady}) }

func (h *TelegramHost) Expand() { h.send(OutboundFrame{Type: FrameExpand}) }

func (h *TelegramHost) ShowAlert(message string) {
	h.send(OutboundFrame{Type: FrameAlert, Message: message})
}

func (h *TelegramHost) MainButton() host.MainButton { return h.main }

func (h *TelegramHost) BackButton() host.BackButton { return h.back }

func (h *TelegramHost) Theme() host.Theme { return h.theme }

func (h *TelegramHost) User() *host.User { return h.user }

// ClickMain runs the main button handlers as if the visitor pressed it.
func (h *TelegramHost) ClickMain() { h.main.click() }

// ClickBack runs the back button handlers.
func (h *TelegramHost) ClickBack() { h.back.click() }

type socketButton struct {
	frame string
	send  func(OutboundFrame)

	mu       sync.Mutex
	state    ButtonState
	handlers map[int]func()
	next     int
}

func newSocketButton(frame string, send func(OutboundFrame)) *socketButton {
	return &socketButton{frame: frame, send: send, state: ButtonState{Enabled: true}, handlers: make(map[int]func())}
}

func (b *socketButton) update(fn func(*ButtonState)) {
	b.mu.Lock()
	fn(&b.state)
	st := b.state
	b.mu.Unlock()
	b.send(OutboundFrame{Type: b.frame, Button: &st})
}

func (b *socketButton) SetText(text string) { b.update(func(s *ButtonState) { s.Text = text }) }

func (b *socketButton) Show() { b.update(func(s *ButtonState) { s.Visible = true }) }

func (b *socketButton) Hide() { b.update(func(s *ButtonState) { s.Visible = false }) }

func (b *socketButton) Enable() { b.update(func(s *ButtonState) { s.Enabled = true }) }

func (b *socketButton) Disable() { b.update(func(s *ButtonState) { s.Enabled = false }) }

func (b *socketButton) ShowProgress(bool) { b.update(func(s *ButtonState) { s.Progress = true }) }

func (b *socketButton) HideProgress() { b.update(func(s *ButtonState) { s.Progress = false }) }

func (b *socketButton) OnClick(fn func()) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// click ignores presses on a hidden or disabled button.
func (b *socketButton) click() {
	b.mu.Lock()
	if !b.state.Visible || !b.state.Enabled {
		b.mu.Unlock()
		return
	}
	fns := make([]func(), 0, len(b.handlers))
	for _, fn := range b.handlers {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
