// Package errs defines the error types every stage of a transfer can fail
// with. Callers match them with errors.As; the top-level command prints the
// message and exits non-zero.
package errs

import (
	"fmt"
	"time"
)

// ConfigError reports a missing, unreadable or malformed local file
// (client secrets, credential file, upload source) or an invalid setting.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// AuthTimeoutError is returned when no authorization redirect arrived in time.
type AuthTimeoutError struct {
	Timeout time.Duration
}

func (e *AuthTimeoutError) Error() string {
	return fmt.Sprintf("auth: no authorization received within %s", e.Timeout)
}

// AuthCodeError is returned when an authorization code is missing or the
// token endpoint rejects it.
type AuthCodeError struct {
	Err error
}

func (e *AuthCodeError) Error() string {
	return fmt.Sprintf("auth: authorization code rejected: %v", e.Err)
}

func (e *AuthCodeError) Unwrap() error { return e.Err }

// RefreshError is returned when a refresh token could not be exchanged for a
// new access token.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("auth: token refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// UnsupportedFormatError is returned when a format tag has no MIME type for
// the requested document kind.
type UnsupportedFormatError struct {
	Kind   string
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("transfer: format %q is not supported for %s", e.Format, e.Kind)
}

// RemoteAPIError carries the status and message of a failed Drive API call.
type RemoteAPIError struct {
	Status  int
	Message string
}

func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("drive: remote call failed with status %d: %s", e.Status, e.Message)
}
