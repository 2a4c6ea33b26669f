package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Settings identify the calendar to read and, for key-based access, the key.
type Settings struct {
	APIKey     string `json:"GOOGLE_CALENDAR_API_KEY"`
	CalendarID string `json:"GOOGLE_CALENDAR_ID"`
}

// SettingsProvider resolves calendar settings.
type SettingsProvider interface {
	Settings(ctx context.Context) (Settings, error)
}

// StaticSettings serves settings taken from the process environment.
type StaticSettings Settings

func (s StaticSettings) Settings(context.Context) (Settings, error) {
	return Settings(s), nil
}

// ConfigLoader fetches the settings document once and caches it. Failed
// loads are not cached, so the next call retries.
type ConfigLoader struct {
	url    string
	client *http.Client

	mu     sync.Mutex
	cached *Settings
}

// NewConfigLoader points the loader at baseURL. A URL that already names a
// .json document is used as is; otherwise /config.json is appended.
func NewConfigLoader(baseURL string, client *http.Client) *ConfigLoader {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.HasSuffix(u, ".json") {
		u += "/config.json"
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &ConfigLoader{url: u, client: client}
}

func (l *ConfigLoader) Settings(ctx context.Context) (Settings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cached != nil {
		return *l.cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return Settings{}, fmt.Errorf("calendar: build config request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return Settings{}, fmt.Errorf("calendar: load config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Settings{}, &UpstreamError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var s Settings
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return Settings{}, fmt.Errorf("calendar: decode config: %w", err)
	}
	l.cached = &s
	return s, nil
}
