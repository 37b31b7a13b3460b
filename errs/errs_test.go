package errs

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigError_UnwrapsCause(t *testing.T) {
	err := fmt.Errorf("loading: %w", &ConfigError{Path: "client_secrets.json", Err: fs.ErrNotExist})

	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "client_secrets.json", cfgErr.Path)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "config client_secrets.json")
}

func TestConfigError_NoPath(t *testing.T) {
	err := &ConfigError{Err: errors.New("bad port")}
	assert.Equal(t, "config: bad port", err.Error())
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "auth: no authorization received within 2m0s",
		(&AuthTimeoutError{Timeout: 2 * time.Minute}).Error())
	assert.Equal(t, `transfer: format "mp3" is not supported for sheet`,
		(&UnsupportedFormatError{Kind: "sheet", Format: "mp3"}).Error())
	assert.Equal(t, "drive: remote call failed with status 404: File not found",
		(&RemoteAPIError{Status: 404, Message: "File not found"}).Error())
}

func TestAuthCodeError_Unwrap(t *testing.T) {
	cause := errors.New("invalid_grant")
	err := &AuthCodeError{Err: cause}
	assert.ErrorIs(t, err, cause)

	refresh := &RefreshError{Err: cause}
	assert.ErrorIs(t, refresh, cause)
}
