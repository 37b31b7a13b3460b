// Package auth turns the application identity into a usable user credential.
//
// Two interchangeable strategies obtain a fresh token from the user:
//   - Loopback: a short-lived HTTP listener on localhost receives the
//     browser redirect carrying the authorization code.
//   - Manual: the user opens the URL on any device and pastes the code
//     shown by Google back into the terminal.
//
// Manager decides when either strategy is needed at all: a stored credential
// that is still valid is reused, an expired one is refreshed, and only when
// both fail does the user get asked again.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
)

// DriveScope grants full read/write access to every file in the user's
// Drive. Updating an arbitrary existing file needs it; narrower scopes only
// cover files the application created or the user picked.
const DriveScope = "https://www.googleapis.com/auth/drive"

// OOBRedirectURI asks Google to display the code instead of redirecting.
const OOBRedirectURI = "urn:ietf:wg:oauth:2.0:oob"

// Defaults for the loopback listener.
const (
	DefaultPort    = 8080
	DefaultTimeout = 3 * time.Minute
)

// Flow obtains a new token through user consent.
type Flow interface {
	Authorize(ctx context.Context) (*oauth2.Token, error)
}

// Strategy selects a Flow implementation.
type Strategy int

const (
	StrategyLoopback Strategy = iota
	StrategyManual
)

func (s Strategy) String() string {
	switch s {
	case StrategyLoopback:
		return "loopback"
	case StrategyManual:
		return "manual"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// StrategyFor maps the offline flag to a strategy.
func StrategyFor(offline bool) Strategy {
	if offline {
		return StrategyManual
	}
	return StrategyLoopback
}

// FlowConfig carries everything either strategy may need. Fields irrelevant
// to the chosen strategy are ignored.
type FlowConfig struct {
	// OAuth holds client credentials, endpoints and scopes. The redirect URL
	// is set by the flow itself.
	OAuth *oauth2.Config

	// Port is the loopback listener port; 0 picks a free port.
	Port int
	// Timeout bounds the wait for the browser redirect.
	Timeout time.Duration
	// Announce shows the authorization URL to the user.
	Announce func(authURL string)
	// OpenURL launches a browser. Nil leaves it to the user.
	OpenURL func(authURL string) error

	// Prompter collects the pasted code in the manual strategy.
	Prompter Prompter

	Logger *slog.Logger
}

// NewFlow builds the flow for s.
func NewFlow(s Strategy, fc FlowConfig) (Flow, error) {
	if fc.OAuth == nil {
		return nil, fmt.Errorf("auth: missing oauth config")
	}
	if fc.Logger == nil {
		fc.Logger = slog.Default()
	}

	switch s {
	case StrategyLoopback:
		return newLoopbackFlow(fc), nil
	case StrategyManual:
		if fc.Prompter == nil {
			return nil, fmt.Errorf("auth: manual strategy needs a prompter")
		}
		return newManualFlow(fc), nil
	default:
		return nil, fmt.Errorf("auth: unknown strategy %s", s)
	}
}

// withRedirect copies cfg so flows never mutate the caller's config.
func withRedirect(cfg *oauth2.Config, redirectURL string) *oauth2.Config {
	c := *cfg
	c.Scopes = append([]string(nil), cfg.Scopes...)
	c.RedirectURL = redirectURL
	return &c
}
