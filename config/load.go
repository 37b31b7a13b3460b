package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"gdrive-transfer/errs"
)

// EnvPrefix is stripped from environment variables during config loading
// (e.g., GDRIVE_TRANSFER_AUTH__PORT → auth.port).
const EnvPrefix = "GDRIVE_TRANSFER_"

// flagKeys maps command-line flags to config keys. Flags not listed here
// describe the transfer itself and are not configuration.
var flagKeys = map[string]string{
	"client-secrets": "client_secrets",
	"credentials":    "credential.file",
	"storage":        "credential.storage",
	"keyring-user":   "credential.keyring_user",
	"offline":        "auth.offline",
	"port":           "auth.port",
	"timeout":        "auth.timeout",
	"scope":          "auth.scopes",
	"no-browser":     "auth.no_browser",
	"log-format":     "log_format",
}

// FlagNames returns the flags Load reads configuration from, sorted.
func FlagNames() []string {
	return slices.Sorted(maps.Keys(flagKeys))
}

// Load builds the configuration with precedence:
// defaults → config file → environment variables → changed flags.
// An empty path reads DefaultPath when that file exists.
func Load(path string, flags *pflag.FlagSet, environFunc func() []string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load from config file
	if path == "" {
		path = existingDefaultPath()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, &errs.ConfigError{Path: path, Err: err}
		}
	}

	// 2. Load from environment variables
	envProvider := env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			stripped := strings.TrimPrefix(key, EnvPrefix)
			nested := strings.ToLower(strings.ReplaceAll(stripped, "__", "."))
			return nested, value
		},
		EnvironFunc: environFunc,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, &errs.ConfigError{Err: fmt.Errorf("loading environment variables: %w", err)}
	}

	// 3. Load from CLI flags
	if flags != nil {
		if err := k.Load(confmap.Provider(flagValues(flags), "."), nil); err != nil {
			return nil, &errs.ConfigError{Err: fmt.Errorf("loading flags: %w", err)}
		}
	}

	config := &Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, &errs.ConfigError{Path: path, Err: fmt.Errorf("unmarshaling config: %w", err)}
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, &errs.ConfigError{Err: fmt.Errorf("applying defaults: %w", err)}
	}

	if err := config.Validate(); err != nil {
		return nil, &errs.ConfigError{Path: path, Err: fmt.Errorf("invalid config: %w", err)}
	}

	return config, nil
}

// flagValues collects flags the user actually set, so unset flags do not
// shadow values from earlier sources.
func flagValues(flags *pflag.FlagSet) map[string]any {
	values := make(map[string]any)

	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "verbose":
			if f.Value.String() == "true" {
				values["log_level"] = "debug"
			}
			return
		case "quiet":
			if f.Value.String() == "true" {
				values["log_level"] = "error"
			}
			return
		}

		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}

		if sv, ok := f.Value.(pflag.SliceValue); ok {
			values[key] = sv.GetSlice()
			return
		}
		values[key] = f.Value.String()
	})

	return values
}
