package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name credentials are filed under.
const KeyringService = "gdrive-transfer"

// KeyringStore keeps the credential JSON in the OS keyring (macOS Keychain,
// Windows Credential Manager, Secret Service on Linux).
type KeyringStore struct {
	service string
	user    string
}

var _ Store = (*KeyringStore)(nil)

// NewKeyringStore returns a keyring-backed store for user.
func NewKeyringStore(user string) (*KeyringStore, error) {
	if user == "" {
		return nil, errors.New("credstore: keyring user cannot be empty")
	}

	return &KeyringStore{service: KeyringService, user: user}, nil
}

func (s *KeyringStore) source() string {
	return fmt.Sprintf("keyring:%s/%s", s.service, s.user)
}

// Load returns (nil, nil) when the keyring has no entry for the user.
func (s *KeyringStore) Load(ctx context.Context) (*Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	secret, err := keyring.Get(s.service, s.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil //nolint:nilnil // nothing stored yet
	}
	if err != nil {
		return nil, fmt.Errorf("credstore: reading %s: %w", s.source(), err)
	}

	return decode(s.source(), []byte(secret))
}

// Save overwrites the keyring entry. Keyring backends replace the secret as a
// single operation, so no temp-file dance is needed.
func (s *KeyringStore) Save(ctx context.Context, cred *Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("credstore: encoding: %w", err)
	}

	if err := keyring.Set(s.service, s.user, string(data)); err != nil {
		return fmt.Errorf("credstore: writing %s: %w", s.source(), err)
	}

	return nil
}
