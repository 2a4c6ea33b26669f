package calendar

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// CredentialProvider supplies client options for the calendar API. The data
// path only ever calls ClientOptions; interactive consent lives in the
// calendar-auth command.
type CredentialProvider interface {
	ClientOptions(ctx context.Context, s Settings) ([]option.ClientOption, error)
}

// APIKeyCredentials authenticates with the key from Settings.
type APIKeyCredentials struct{}

func (APIKeyCredentials) ClientOptions(_ context.Context, s Settings) ([]option.ClientOption, error) {
	if s.APIKey == "" {
		return nil, ErrMissingCredentials
	}
	return []option.ClientOption{option.WithAPIKey(s.APIKey)}, nil
}

// OAuthConfig configures refresh-token access.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	RefreshToken string
	// Endpoint defaults to Google's OAuth endpoint.
	Endpoint oauth2.Endpoint
	// HTTPClient is used for token refreshes; its timeout bounds the exchange.
	HTTPClient *http.Client
}

// OAuthCredentials exchanges a stored refresh token for bearer tokens.
type OAuthCredentials struct {
	config       *oauth2.Config
	refreshToken string
	httpClient   *http.Client

	once   sync.Once
	source oauth2.TokenSource
}

// NewOAuthCredentials builds a provider with read-only calendar scope.
func NewOAuthCredentials(cfg OAuthConfig) *OAuthCredentials {
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	return &OAuthCredentials{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{gcal.CalendarReadonlyScope},
		},
		refreshToken: cfg.RefreshToken,
		httpClient:   cfg.HTTPClient,
	}
}

func (c *OAuthCredentials) ClientOptions(_ context.Context, _ Settings) ([]option.ClientOption, error) {
	if c.refreshToken == "" {
		return nil, ErrMissingCredentials
	}
	c.once.Do(func() {
		// The token source outlives any single request, so it gets its own
		// context carrying only the refresh HTTP client.
		base := context.Background()
		if c.httpClient != nil {
			base = context.WithValue(base, oauth2.HTTPClient, c.httpClient)
		}
		c.source = oauth2.ReuseTokenSource(nil, c.config.TokenSource(base, &oauth2.Token{RefreshToken: c.refreshToken}))
	})
	return []option.ClientOption{option.WithTokenSource(c.source)}, nil
}

// AuthCodeURL returns the consent URL requesting offline access.
func (c *OAuthCredentials) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens, including the refresh
// token to store as GOOGLE_OAUTH_REFRESH_TOKEN.
func (c *OAuthCredentials) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}
	tok, err := c.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("calendar: exchange authorization code: %w", err)
	}
	return tok, nil
}
