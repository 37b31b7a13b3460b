// Package credstore holds the user credential minted by the OAuth flow and
// persists it between runs, either in a JSON file or in the OS keyring.
package credstore

import (
	"context"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// expirySkew treats tokens that are about to expire as already expired, so a
// transfer never starts with a token that dies mid-request.
const expirySkew = 10 * time.Second

// Credential is the persisted user credential.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry"`
	Scopes       []string  `json:"scopes"`
}

// Store loads and saves a single credential.
type Store interface {
	// Load returns (nil, nil) when nothing has been stored yet.
	Load(ctx context.Context) (*Credential, error)
	Save(ctx context.Context, cred *Credential) error
}

// FromOAuth2Token converts a token endpoint response. Google echoes the
// granted scopes in the "scope" field; when it is absent the requested
// scopes are assumed.
func FromOAuth2Token(tok *oauth2.Token, requested []string) *Credential {
	scopes := append([]string(nil), requested...)
	if granted, ok := tok.Extra("scope").(string); ok && strings.TrimSpace(granted) != "" {
		scopes = strings.Fields(granted)
	}

	return &Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		Scopes:       scopes,
	}
}

// OAuth2Token converts the credential back for use with oauth2 clients.
func (c *Credential) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}

// Expired reports whether the access token is expired at now. A zero expiry
// never expires.
func (c *Credential) Expired(now time.Time) bool {
	if c.Expiry.IsZero() {
		return false
	}
	return !now.Before(c.Expiry.Add(-expirySkew))
}

// HasScopes reports whether every required scope was granted.
func (c *Credential) HasScopes(required []string) bool {
	return len(c.MissingScopes(required)) == 0
}

// MissingScopes returns the required scopes that were not granted.
func (c *Credential) MissingScopes(required []string) []string {
	var missing []string
	for _, s := range required {
		if !slices.Contains(c.Scopes, s) {
			missing = append(missing, s)
		}
	}
	return missing
}

// Valid reports whether the credential can be used as-is.
func (c *Credential) Valid(now time.Time, required []string) bool {
	return c != nil && c.AccessToken != "" && !c.Expired(now) && c.HasScopes(required)
}

// CanRefresh reports whether a refresh grant could restore the credential.
func (c *Credential) CanRefresh(required []string) bool {
	return c != nil && c.RefreshToken != "" && c.HasScopes(required)
}
