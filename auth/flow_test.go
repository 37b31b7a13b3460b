package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"gdrive-transfer/errs"
)

// redirectTo simulates the browser following Google's redirect.
func redirectTo(t *testing.T, authURL string, query func(state string) url.Values) {
	t.Helper()

	u, err := url.Parse(authURL)
	require.NoError(t, err)

	q := u.Query()
	target := q.Get("redirect_uri") + "?" + query(q.Get("state")).Encode()

	go func() {
		resp, err := http.Get(target) //nolint:noctx // test helper
		if err == nil {
			resp.Body.Close()
		}
	}()
}

func newLoopback(t *testing.T, tokenURL string, timeout time.Duration, announce func(string)) Flow {
	t.Helper()

	flow, err := NewFlow(StrategyLoopback, FlowConfig{
		OAuth:    testOAuthConfig(tokenURL),
		Port:     0,
		Timeout:  timeout,
		Announce: announce,
		Logger:   discardLogger(),
	})
	require.NoError(t, err)

	return flow
}

func TestLoopbackFlow_Success(t *testing.T) {
	ts := newTokenServer(t)

	var announced string
	flow := newLoopback(t, ts.URL, 5*time.Second, func(authURL string) {
		announced = authURL
		redirectTo(t, authURL, func(state string) url.Values {
			return url.Values{"code": {goodCode}, "state": {state}}
		})
	})

	tok, err := flow.Authorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minted-access", tok.AccessToken)
	assert.Equal(t, "minted-refresh", tok.RefreshToken)
	assert.EqualValues(t, 1, ts.exchanges.Load())

	u, err := url.Parse(announced)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, DriveScope, q.Get("scope"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.True(t, strings.HasPrefix(q.Get("redirect_uri"), "http://127.0.0.1:"))
	assert.Equal(t, q.Get("redirect_uri"), ts.redirect())
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(ts.verifier()), q.Get("code_challenge"))
}

func TestLoopbackFlow_TimeoutReleasesPort(t *testing.T) {
	ts := newTokenServer(t)

	var port string
	flow := newLoopback(t, ts.URL, 50*time.Millisecond, func(authURL string) {
		u, _ := url.Parse(authURL)
		redirect, _ := url.Parse(u.Query().Get("redirect_uri"))
		port = redirect.Port()
	})

	_, err := flow.Authorize(context.Background())

	var timeoutErr *errs.AuthTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 50*time.Millisecond, timeoutErr.Timeout)
	assert.Zero(t, ts.exchanges.Load())

	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", port))
	require.NoError(t, err, "listener port must be released after timeout")
	ln.Close()
}

func TestLoopbackFlow_StateMismatch(t *testing.T) {
	ts := newTokenServer(t)

	flow := newLoopback(t, ts.URL, 5*time.Second, func(authURL string) {
		redirectTo(t, authURL, func(string) url.Values {
			return url.Values{"code": {goodCode}, "state": {"forged"}}
		})
	})

	_, err := flow.Authorize(context.Background())

	var codeErr *errs.AuthCodeError
	require.ErrorAs(t, err, &codeErr)
	assert.Contains(t, err.Error(), "state mismatch")
	assert.Zero(t, ts.exchanges.Load())
}

func TestLoopbackFlow_AccessDenied(t *testing.T) {
	ts := newTokenServer(t)

	flow := newLoopback(t, ts.URL, 5*time.Second, func(authURL string) {
		redirectTo(t, authURL, func(state string) url.Values {
			return url.Values{"error": {"access_denied"}, "state": {state}}
		})
	})

	_, err := flow.Authorize(context.Background())

	var codeErr *errs.AuthCodeError
	require.ErrorAs(t, err, &codeErr)
	assert.Contains(t, err.Error(), "access_denied")
}

func TestLoopbackFlow_RejectedCode(t *testing.T) {
	ts := newTokenServer(t)

	flow := newLoopback(t, ts.URL, 5*time.Second, func(authURL string) {
		redirectTo(t, authURL, func(state string) url.Values {
			return url.Values{"code": {"expired-code"}, "state": {state}}
		})
	})

	_, err := flow.Authorize(context.Background())

	var codeErr *errs.AuthCodeError
	require.ErrorAs(t, err, &codeErr)
	assert.EqualValues(t, 1, ts.exchanges.Load())
}

func TestLoopbackFlow_Canceled(t *testing.T) {
	ts := newTokenServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	flow := newLoopback(t, ts.URL, 5*time.Second, func(string) { cancel() })

	_, err := flow.Authorize(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoopbackFlow_OpenURLFailureIsNotFatal(t *testing.T) {
	ts := newTokenServer(t)

	flow, err := NewFlow(StrategyLoopback, FlowConfig{
		OAuth:   testOAuthConfig(ts.URL),
		Timeout: 5 * time.Second,
		OpenURL: func(authURL string) error {
			redirectTo(t, authURL, func(state string) url.Values {
				return url.Values{"code": {goodCode}, "state": {state}}
			})
			return errors.New("no browser")
		},
		Logger: discardLogger(),
	})
	require.NoError(t, err)

	tok, err := flow.Authorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minted-access", tok.AccessToken)
}

func TestLoopbackFlow_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port

	flow, err := NewFlow(StrategyLoopback, FlowConfig{
		OAuth:  testOAuthConfig("http://127.0.0.1:1/token"),
		Port:   port,
		Logger: discardLogger(),
	})
	require.NoError(t, err)

	_, err = flow.Authorize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("port %d", port))
}

func TestManualFlow_Success(t *testing.T) {
	ts := newTokenServer(t)
	prompter := &codePrompter{code: "  " + goodCode + "\n"}

	flow, err := NewFlow(StrategyManual, FlowConfig{
		OAuth:    testOAuthConfig(ts.URL),
		Prompter: prompter,
		Logger:   discardLogger(),
	})
	require.NoError(t, err)

	tok, err := flow.Authorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minted-access", tok.AccessToken)
	assert.Equal(t, OOBRedirectURI, ts.redirect())

	u, err := url.Parse(prompter.authURL)
	require.NoError(t, err)
	assert.Equal(t, OOBRedirectURI, u.Query().Get("redirect_uri"))
	assert.Equal(t, "consent", u.Query().Get("prompt"))
	assert.Equal(t, "offline", u.Query().Get("access_type"))
	assert.Equal(t, "S256", u.Query().Get("code_challenge_method"))
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(ts.verifier()), u.Query().Get("code_challenge"))
}

func TestManualFlow_RejectedCode(t *testing.T) {
	ts := newTokenServer(t)

	flow, err := NewFlow(StrategyManual, FlowConfig{
		OAuth:    testOAuthConfig(ts.URL),
		Prompter: &codePrompter{code: "stale"},
		Logger:   discardLogger(),
	})
	require.NoError(t, err)

	_, err = flow.Authorize(context.Background())

	var codeErr *errs.AuthCodeError
	require.ErrorAs(t, err, &codeErr)
}

func TestManualFlow_EmptyCode(t *testing.T) {
	ts := newTokenServer(t)

	flow, err := NewFlow(StrategyManual, FlowConfig{
		OAuth:    testOAuthConfig(ts.URL),
		Prompter: &codePrompter{code: "   "},
		Logger:   discardLogger(),
	})
	require.NoError(t, err)

	_, err = flow.Authorize(context.Background())

	var codeErr *errs.AuthCodeError
	require.ErrorAs(t, err, &codeErr)
	assert.Zero(t, ts.exchanges.Load())
}

func TestManualFlow_PromptError(t *testing.T) {
	flow, err := NewFlow(StrategyManual, FlowConfig{
		OAuth:    testOAuthConfig("http://127.0.0.1:1/token"),
		Prompter: &codePrompter{err: context.Canceled},
		Logger:   discardLogger(),
	})
	require.NoError(t, err)

	_, err = flow.Authorize(context.Background())
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewFlow_Validation(t *testing.T) {
	_, err := NewFlow(StrategyLoopback, FlowConfig{})
	assert.Error(t, err)

	_, err = NewFlow(StrategyManual, FlowConfig{OAuth: testOAuthConfig("x")})
	assert.Error(t, err)

	_, err = NewFlow(Strategy(9), FlowConfig{OAuth: testOAuthConfig("x")})
	assert.Error(t, err)
}

func TestStrategyFor(t *testing.T) {
	assert.Equal(t, StrategyManual, StrategyFor(true))
	assert.Equal(t, StrategyLoopback, StrategyFor(false))
	assert.Equal(t, "manual", StrategyManual.String())
	assert.Equal(t, "loopback", StrategyLoopback.String())
}

func TestLinePrompter(t *testing.T) {
	var out strings.Builder
	p := &LinePrompter{In: strings.NewReader("4/abc-code\n"), Out: &out}

	code, err := p.PromptCode(context.Background(), "https://auth.example/url")
	require.NoError(t, err)
	assert.Equal(t, "4/abc-code", code)
	assert.Contains(t, out.String(), "https://auth.example/url")
	assert.Contains(t, out.String(), "Enter the authorization code")
}

func TestLinePrompter_NoTrailingNewline(t *testing.T) {
	p := &LinePrompter{In: strings.NewReader("code"), Out: &strings.Builder{}}

	code, err := p.PromptCode(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, "code", code)
}
