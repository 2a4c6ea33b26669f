package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoUser means the init data carried no user.
var ErrNoUser = errors.New("host: init data has no user")

// ParseInitData reads the user from Telegram WebApp init data, a URL-encoded
// query string whose user field is JSON. The signature is not checked.
func ParseInitData(raw string) (*User, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrNoUser
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("host: parse init data: %w", err)
	}
	payload := values.Get("user")
	if payload == "" {
		return nil, ErrNoUser
	}
	var u User
	if err := json.Unmarshal([]byte(payload), &u); err != nil {
		return nil, fmt.Errorf("host: decode init data user: %w", err)
	}
	if u.ID == 0 {
		return nil, ErrNoUser
	}
	return &u, nil
}

// ParseTheme decodes theme params JSON. Malformed input yields an empty theme.
func ParseTheme(raw string) Theme {
	var t Theme
	if strings.TrimSpace(raw) == "" {
		return t
	}
	_ = json.Unmarshal([]byte(raw), &t)
	return t
}
