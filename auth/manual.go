package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"gdrive-transfer/errs"
)

// Prompter shows the authorization URL and returns the code the user pasted.
type Prompter interface {
	PromptCode(ctx context.Context, authURL string) (string, error)
}

// ManualFlow exchanges a code the user copies from the consent page.
type ManualFlow struct {
	oauth  *oauth2.Config
	prompt Prompter
	logger *slog.Logger
}

func newManualFlow(fc FlowConfig) *ManualFlow {
	return &ManualFlow{oauth: fc.OAuth, prompt: fc.Prompter, logger: fc.Logger}
}

// Authorize prints the consent URL, blocks on the prompt and exchanges the
// pasted code.
func (f *ManualFlow) Authorize(ctx context.Context) (*oauth2.Token, error) {
	cfg := withRedirect(f.oauth, OOBRedirectURI)

	verifier := oauth2.GenerateVerifier()

	// prompt=consent makes Google issue a refresh token on every grant.
	authURL := cfg.AuthCodeURL(uuid.NewString(), oauth2.AccessTypeOffline, oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier))

	f.logger.Info("waiting for pasted authorization code")

	code, err := f.prompt.PromptCode(ctx, authURL)
	if err != nil {
		return nil, fmt.Errorf("auth: reading authorization code: %w", err)
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &errs.AuthCodeError{Err: errors.New("empty authorization code")}
	}

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, &errs.AuthCodeError{Err: err}
	}

	return tok, nil
}

// LinePrompter prints the URL and reads one line. Used when stdin is not a
// terminal.
type LinePrompter struct {
	In  io.Reader
	Out io.Writer
}

// PromptCode implements Prompter.
func (p *LinePrompter) PromptCode(ctx context.Context, authURL string) (string, error) {
	fmt.Fprintf(p.Out, "Please visit the following URL to authorize the application:\n%s\n\nEnter the authorization code: ", authURL)

	type line struct {
		text string
		err  error
	}

	ch := make(chan line, 1)
	go func() {
		text, err := bufio.NewReader(p.In).ReadString('\n')
		if errors.Is(err, io.EOF) && text != "" {
			err = nil
		}
		ch <- line{text: text, err: err}
	}()

	select {
	case l := <-ch:
		return strings.TrimSpace(l.text), l.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
