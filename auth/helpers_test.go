package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/oauth2"

	"gdrive-transfer/credstore"
)

const (
	goodCode     = "good-code"
	goodRefresh  = "good-refresh"
	testClientID = "client-id"
)

// tokenServer fakes Google's token endpoint.
type tokenServer struct {
	*httptest.Server
	exchanges atomic.Int32
	refreshes atomic.Int32

	mu           sync.Mutex
	lastRedirect string
	lastVerifier string
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()

	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			ts.exchanges.Add(1)
			ts.mu.Lock()
			ts.lastRedirect = r.PostForm.Get("redirect_uri")
			ts.lastVerifier = r.PostForm.Get("code_verifier")
			ts.mu.Unlock()

			if r.PostForm.Get("code") != goodCode {
				writeTokenError(w)
				return
			}
			writeToken(w, "minted-access", "minted-refresh")
		case "refresh_token":
			ts.refreshes.Add(1)
			if r.PostForm.Get("refresh_token") != goodRefresh {
				writeTokenError(w)
				return
			}
			writeToken(w, "refreshed-access", "")
		default:
			writeTokenError(w)
		}
	}))
	t.Cleanup(ts.Close)

	return ts
}

func (ts *tokenServer) redirect() string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.lastRedirect
}

func (ts *tokenServer) verifier() string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.lastVerifier
}

func writeToken(w http.ResponseWriter, access, refresh string) {
	body := map[string]any{
		"access_token": access,
		"token_type":   "Bearer",
		"expires_in":   3600,
		"scope":        DriveScope,
	}
	if refresh != "" {
		body["refresh_token"] = refresh
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func writeTokenError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Bad Request"}`)
}

func testOAuthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     testClientID,
		ClientSecret: "secret",
		Scopes:       []string{DriveScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example.test/o/oauth2/auth",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory credstore.Store counting saves.
type memStore struct {
	cred    *credstore.Credential
	loadErr error
	saveErr error
	saves   int
}

func (s *memStore) Load(context.Context) (*credstore.Credential, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.cred, nil
}

func (s *memStore) Save(_ context.Context, cred *credstore.Credential) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.cred = cred
	return nil
}

// countingStore wraps a real store and counts saves.
type countingStore struct {
	credstore.Store
	saves int
}

func (s *countingStore) Save(ctx context.Context, cred *credstore.Credential) error {
	s.saves++
	return s.Store.Save(ctx, cred)
}

// fakeFlow returns a fixed token and counts invocations.
type fakeFlow struct {
	tok   *oauth2.Token
	err   error
	calls int
}

func (f *fakeFlow) Authorize(context.Context) (*oauth2.Token, error) {
	f.calls++
	return f.tok, f.err
}

// fakeRefresher returns a fixed credential and counts invocations.
type fakeRefresher struct {
	cred  *credstore.Credential
	err   error
	calls int
}

func (r *fakeRefresher) Refresh(context.Context, *credstore.Credential) (*credstore.Credential, error) {
	r.calls++
	return r.cred, r.err
}

// codePrompter answers the manual flow prompt with a fixed code.
type codePrompter struct {
	code    string
	err     error
	authURL string
}

func (p *codePrompter) PromptCode(_ context.Context, authURL string) (string, error) {
	p.authURL = authURL
	return p.code, p.err
}
