package auth

import (
	"context"

	"golang.org/x/oauth2"

	"gdrive-transfer/credstore"
	"gdrive-transfer/errs"
)

// Refresher trades a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, cred *credstore.Credential) (*credstore.Credential, error)
}

// TokenRefresher refreshes against the configured token endpoint.
type TokenRefresher struct {
	oauth *oauth2.Config
}

// NewTokenRefresher returns a Refresher using cfg's client and endpoint.
func NewTokenRefresher(cfg *oauth2.Config) *TokenRefresher {
	return &TokenRefresher{oauth: cfg}
}

// Refresh always hits the token endpoint. Failures are *errs.RefreshError.
func (r *TokenRefresher) Refresh(ctx context.Context, cred *credstore.Credential) (*credstore.Credential, error) {
	// Without an access token the source is invalid and must refresh.
	src := r.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})

	tok, err := src.Token()
	if err != nil {
		return nil, &errs.RefreshError{Err: err}
	}

	renewed := credstore.FromOAuth2Token(tok, cred.Scopes)
	if renewed.RefreshToken == "" {
		renewed.RefreshToken = cred.RefreshToken
	}

	return renewed, nil
}
