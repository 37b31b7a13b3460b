// Package config holds the runtime settings of gdrive-transfer and loads
// them from a TOML file, the environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os/user"
	"time"

	"github.com/go-playground/validator/v10"

	"gdrive-transfer/auth"
	"gdrive-transfer/credstore"
	"gdrive-transfer/transfer"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// StorageType selects where the user credential is persisted.
type StorageType string

const (
	StorageTypeFile    StorageType = "file"
	StorageTypeKeyring StorageType = "keyring"
)

// Default configuration values. File paths are relative to the working
// directory.
const (
	DefaultLogFormat      = LogFormatText
	DefaultClientSecrets  = "client_secrets.json"
	DefaultCredentialFile = "credentials.json"
	DefaultStorage        = StorageTypeFile
	DefaultPort           = auth.DefaultPort
	DefaultTimeout        = auth.DefaultTimeout
	DefaultDocsBaseURL    = transfer.DefaultDocsBaseURL
)

// DefaultScopes is the scope set requested when none is configured.
var DefaultScopes = []string{auth.DriveScope}

// CredentialConfig describes the credential store.
type CredentialConfig struct {
	Storage StorageType `json:"storage" validate:"required,oneof=file keyring"`

	File        string `json:"file,omitempty"`         // For file storage
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage
}

// NewStore creates the credential store described by the configuration.
func (c *CredentialConfig) NewStore() (credstore.Store, error) {
	switch c.Storage {
	case StorageTypeFile:
		return credstore.NewFileStore(c.File), nil
	case StorageTypeKeyring:
		return credstore.NewKeyringStore(c.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Storage)
	}
}

// AuthConfig controls how a new credential is obtained.
type AuthConfig struct {
	// Offline selects the paste-the-code flow instead of the loopback listener.
	Offline bool          `json:"offline"`
	Port    uint16        `json:"port"`
	Timeout time.Duration `json:"timeout" validate:"gte=0"`
	Scopes  []string      `json:"scopes" validate:"required,min=1,dive,required"`

	// Endpoint overrides. Empty keeps the values from the client secrets file.
	AuthURL  string `json:"auth_url,omitempty" validate:"omitempty,url"`
	TokenURL string `json:"token_url,omitempty" validate:"omitempty,url"`

	// NoBrowser disables launching a browser for the loopback flow.
	NoBrowser bool `json:"no_browser"`
}

// DriveConfig holds API locations.
type DriveConfig struct {
	// Endpoint overrides the Drive API base path.
	Endpoint    string `json:"endpoint,omitempty" validate:"omitempty,url"`
	DocsBaseURL string `json:"docs_base_url" validate:"required,url"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel      slog.Level       `json:"log_level"`
	LogFormat     LogFormat        `json:"log_format" validate:"oneof=text json"`
	ClientSecrets string           `json:"client_secrets" validate:"required"`
	Credential    CredentialConfig `json:"credential"`
	Auth          AuthConfig       `json:"auth"`
	Drive         DriveConfig      `json:"drive"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.ClientSecrets == "" {
		c.ClientSecrets = DefaultClientSecrets
	}
	if c.Credential.Storage == "" {
		c.Credential.Storage = DefaultStorage
	}
	if c.Auth.Port == 0 {
		c.Auth.Port = DefaultPort
	}
	if c.Auth.Timeout == 0 {
		c.Auth.Timeout = DefaultTimeout
	}
	if len(c.Auth.Scopes) == 0 {
		c.Auth.Scopes = append([]string(nil), DefaultScopes...)
	}
	if c.Drive.DocsBaseURL == "" {
		c.Drive.DocsBaseURL = DefaultDocsBaseURL
	}

	switch c.Credential.Storage {
	case StorageTypeFile:
		if c.Credential.File == "" {
			c.Credential.File = DefaultCredentialFile
		}
	case StorageTypeKeyring:
		if c.Credential.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("credential.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Credential.KeyringUser = currentUser.Username
		}
	}

	return nil
}

// Validate validates the configuration using struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Credential.Storage {
	case StorageTypeFile:
		if c.Credential.File == "" {
			return errors.New("file path required for file storage")
		}
	case StorageTypeKeyring:
		if c.Credential.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}

// Strategy returns the authorization strategy the configuration selects.
func (c *Config) Strategy() auth.Strategy {
	return auth.StrategyFor(c.Auth.Offline)
}
