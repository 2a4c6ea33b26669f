// Command calendar-auth runs the interactive Google OAuth consent once and
// prints the refresh token for GOOGLE_OAUTH_REFRESH_TOKEN.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/wolfman30/tg-booking-miniapp/internal/calendar"
	appconfig "github.com/wolfman30/tg-booking-miniapp/internal/config"
)

// exchanger is the part of calendar.OAuthCredentials the flow needs.
type exchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (refreshToken string, err error)
}

type oauthExchanger struct {
	creds *calendar.OAuthCredentials
}

func (e oauthExchanger) AuthCodeURL(state string) string { return e.creds.AuthCodeURL(state) }

func (e oauthExchanger) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := e.creds.Exchange(ctx, code)
	if err != nil {
		return "", err
	}
	return tok.RefreshToken, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := appconfig.Load()
	if cfg.GoogleOAuthClientID == "" || cfg.GoogleOAuthClientSecret == "" {
		log.Fatal("GOOGLE_OAUTH_CLIENT_ID and GOOGLE_OAUTH_CLIENT_SECRET are required")
	}

	creds := calendar.NewOAuthCredentials(calendar.OAuthConfig{
		ClientID:     cfg.GoogleOAuthClientID,
		ClientSecret: cfg.GoogleOAuthClientSecret,
		RedirectURL:  cfg.GoogleOAuthRedirectURI,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	token, err := run(ctx, oauthExchanger{creds: creds}, uuid.NewString(), os.Stdin, os.Stderr)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("GOOGLE_OAUTH_REFRESH_TOKEN=%s\n", token)
}

// run prints the consent URL to prompt, reads the code from in, and returns
// the refresh token.
func run(ctx context.Context, ex exchanger, state string, in io.Reader, prompt io.Writer) (string, error) {
	fmt.Fprintf(prompt, "Open this URL and grant calendar read access:\n\n%s\n\nPaste the authorization code: ", ex.AuthCodeURL(state))

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read authorization code: %w", err)
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return "", errors.New("no authorization code entered")
	}

	token, err := ex.Exchange(ctx, code)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", errors.New("no refresh token returned; revoke the app's access and run again")
	}
	return token, nil
}
