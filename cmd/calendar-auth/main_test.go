package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

type stubExchanger struct {
	gotCode string
	token   string
	err     error
}

func (s *stubExchanger) AuthCodeURL(state string) string {
	return "https://accounts.example/auth?state=" + state
}

func (s *stubExchanger) Exchange(_ context.Context, code string) (string, error) {
	s.gotCode = code
	return s.token, s.err
}

func TestRunExchangesCode(t *testing.T) {
	ex := &stubExchanger{token: "refresh-123"}
	var prompt bytes.Buffer

	token, err := run(context.Background(), ex, "state-1", strings.NewReader("  code-abc \n"), &prompt)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if token != "refresh-123" {
		t.Fatalf("expected refresh token, got %q", token)
	}
	if ex.gotCode != "code-abc" {
		t.Fatalf("expected trimmed code, got %q", ex.gotCode)
	}
	if !strings.Contains(prompt.String(), "state=state-1") {
		t.Fatalf("expected consent url in prompt, got %q", prompt.String())
	}
}

func TestRunRejectsEmptyCode(t *testing.T) {
	if _, err := run(context.Background(), &stubExchanger{}, "s", strings.NewReader("\n"), &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for empty code")
	}
}

func TestRunSurfacesMissingRefreshToken(t *testing.T) {
	if _, err := run(context.Background(), &stubExchanger{}, "s", strings.NewReader("code"), &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error when no refresh token is returned")
	}
}

func TestRunSurfacesExchangeError(t *testing.T) {
	want := errors.New("invalid_grant")
	_, err := run(context.Background(), &stubExchanger{err: want}, "s", strings.NewReader("code\n"), &bytes.Buffer{})
	if !errors.Is(err, want) {
		t.Fatalf("expected exchange error, got %v", err)
	}
}
