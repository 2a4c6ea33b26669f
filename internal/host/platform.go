// Package host models the chat client embedding the mini-app: its lifecycle
// hooks, its two navigation buttons, theme and identity. When there is no
// host, Noop stands in and the Bridge exposes in-page controls instead.
package host

// User is the identity supplied by the host. It is trusted as given.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Theme carries host colors for the client to style with.
type Theme struct {
	BgColor          string `json:"bg_color,omitempty"`
	TextColor        string `json:"text_color,omitempty"`
	HintColor        string `json:"hint_color,omitempty"`
	LinkColor        string `json:"link_color,omitempty"`
	ButtonColor      string `json:"button_color,omitempty"`
	ButtonTextColor  string `json:"button_text_color,omitempty"`
	SecondaryBgColor string `json:"secondary_bg_color,omitempty"`
}

// MainButton is the host's primary action control.
type MainButton interface {
	SetText(text string)
	Show()
	Hide()
	Enable()
	Disable()
	ShowProgress(leaveActive bool)
	HideProgress()
	// OnClick registers fn and returns the function that removes it.
	OnClick(fn func()) (unbind func())
}

// BackButton is the host's back control.
type BackButton interface {
	Show()
	Hide()
	OnClick(fn func()) (unbind func())
}

// Platform is the capability surface of the host.
type Platform interface {
	Available() bool
	Ready()
	Expand()
	ShowAlert(message string)
	MainButton() MainButton
	BackButton() BackButton
	Theme() Theme
	User() *User
}

// Detect returns p when it reports itself available and Noop otherwise.
func Detect(p Platform) Platform {
	if p == nil || !p.Available() {
		return Noop{}
	}
	return p
}

// Noop is the platform used when the app runs outside a host.
type Noop struct{}

func (Noop) Available() bool { return false }
func (Noop) Ready() {}
func (Noop) Expand() {}
func (Noop) ShowAlert(string) {}
func (Noop) MainButton() MainButton { return noopButton{} }
func (Noop) BackButton() BackButton { return noopButton{} }
func (Noop) Theme() Theme { return Theme{} }
func (Noop) User() *User { return nil }

type noopButton struct{}

func (noopButton) SetText(string) {}
func (noopButton) Show() {}
func (noopButton) Hide() {}
func (noopButton) Enable() {}
func (noopButton) Disable() {}
func (noopButton) ShowProgress(bool) {}
func (noopButton) HideProgress() {}
func (noopButton) OnClick(func()) func() { return func() {} }
