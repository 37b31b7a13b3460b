package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"gdrive-transfer/errs"
)

// shutdownTimeout is how long the callback server may take to drain.
const shutdownTimeout = 5 * time.Second

// callbackResult carries the authorization code or error from the handler.
type callbackResult struct {
	code string
	err  error
}

// LoopbackFlow receives the authorization code on a localhost listener.
type LoopbackFlow struct {
	oauth    *oauth2.Config
	port     int
	timeout  time.Duration
	announce func(string)
	openURL  func(string) error
	logger   *slog.Logger
}

func newLoopbackFlow(fc FlowConfig) *LoopbackFlow {
	timeout := fc.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &LoopbackFlow{
		oauth:    fc.OAuth,
		port:     fc.Port,
		timeout:  timeout,
		announce: fc.Announce,
		openURL:  fc.OpenURL,
		logger:   fc.Logger,
	}
}

// Authorize binds the listener, sends the user to the consent page and waits
// for exactly one redirect. The listener is released on every return path.
func (f *LoopbackFlow) Authorize(ctx context.Context) (*oauth2.Token, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(f.port)))
	if err != nil {
		return nil, fmt.Errorf("auth: binding callback listener on port %d: %w", f.port, err)
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return nil, errors.New("auth: listener address is not TCP")
	}

	// Advertise the address actually bound; localhost may resolve to ::1.
	cfg := withRedirect(f.oauth, fmt.Sprintf("http://127.0.0.1:%d/", tcpAddr.Port))
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		handleCallback(w, r, state, resultCh)
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			deliver(resultCh, callbackResult{err: fmt.Errorf("auth: callback server: %w", serveErr)})
		}
	}()

	defer f.shutdown(srv)

	f.logger.Info("waiting for browser authorization",
		slog.Int("port", tcpAddr.Port),
		slog.Duration("timeout", f.timeout),
	)

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	if f.announce != nil {
		f.announce(authURL)
	}
	if f.openURL != nil {
		if openErr := f.openURL(authURL); openErr != nil {
			f.logger.Warn("could not open browser", slog.String("error", openErr.Error()))
		}
	}

	code, err := f.wait(ctx, resultCh)
	if err != nil {
		return nil, err
	}

	f.logger.Info("received authorization code, exchanging for token")

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, &errs.AuthCodeError{Err: err}
	}

	return tok, nil
}

func (f *LoopbackFlow) wait(ctx context.Context, resultCh <-chan callbackResult) (string, error) {
	timer := time.NewTimer(f.timeout)
	defer timer.Stop()

	select {
	case result := <-resultCh:
		if result.err != nil {
			return "", result.err
		}
		return result.code, nil
	case <-timer.C:
		return "", &errs.AuthTimeoutError{Timeout: f.timeout}
	case <-ctx.Done():
		return "", fmt.Errorf("auth: waiting for authorization: %w", ctx.Err())
	}
}

func (f *LoopbackFlow) shutdown(srv *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		f.logger.Warn("callback server shutdown error", slog.String("error", err.Error()))
	}
}

// handleCallback validates the state, extracts the code and reports the
// outcome. Only the first outcome is kept.
func handleCallback(w http.ResponseWriter, r *http.Request, state string, resultCh chan<- callbackResult) {
	q := r.URL.Query()

	if q.Get("state") != state {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		deliver(resultCh, callbackResult{err: &errs.AuthCodeError{Err: errors.New("state mismatch in redirect")}})
		return
	}

	if errParam := q.Get("error"); errParam != "" {
		http.Error(w, "Authorization failed: "+errParam, http.StatusBadRequest)
		deliver(resultCh, callbackResult{err: &errs.AuthCodeError{Err: fmt.Errorf("%s: %s", errParam, q.Get("error_description"))}})
		return
	}

	code := q.Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		deliver(resultCh, callbackResult{err: &errs.AuthCodeError{Err: errors.New("redirect carried no code")}})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><body><h1>%s</h1><p>You can close this window and return to the terminal.</p></body></html>",
		html.EscapeString("Authentication successful"))
	deliver(resultCh, callbackResult{code: code})
}

func deliver(ch chan<- callbackResult, r callbackResult) {
	select {
	case ch <- r:
	default:
	}
}
