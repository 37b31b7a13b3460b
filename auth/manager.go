package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"gdrive-transfer/credstore"
	"gdrive-transfer/errs"
)

// State is where the last Credential call ended up.
type State int

const (
	StateNoCredential State = iota
	StateLoadedInvalid
	StateLoadedValid
	StateRefreshed
	StateMinted
)

func (s State) String() string {
	switch s {
	case StateNoCredential:
		return "no_credential"
	case StateLoadedInvalid:
		return "loaded_invalid"
	case StateLoadedValid:
		return "loaded_valid"
	case StateRefreshed:
		return "refreshed"
	case StateMinted:
		return "minted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Manager hands out a valid credential, reusing, refreshing or minting one
// as needed and persisting anything new.
type Manager struct {
	store     credstore.Store
	flow      Flow
	refresher Refresher
	scopes    []string
	now       func() time.Time
	logger    *slog.Logger

	state State
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithRefresher enables silent refresh of expired credentials. Without it
// every invalid credential goes through the interactive flow.
func WithRefresher(r Refresher) ManagerOption {
	return func(m *Manager) { m.refresher = r }
}

// NewManager wires a store, a flow and the scopes every credential must carry.
func NewManager(store credstore.Store, flow Flow, scopes []string, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		store:  store,
		flow:   flow,
		scopes: slices.Clone(scopes),
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}

	if slices.Contains(m.scopes, DriveScope) {
		logger.Warn("requesting full Drive access; narrow auth.scopes if the target files allow it",
			slog.String("scope", DriveScope),
		)
	}

	return m
}

// State reports how the last Credential call was satisfied.
func (m *Manager) State() State { return m.state }

// Credential returns a credential that is unexpired and carries the required
// scopes. A valid stored credential is returned without network calls or
// writes.
func (m *Manager) Credential(ctx context.Context) (*credstore.Credential, error) {
	cred, err := m.store.Load(ctx)
	if err != nil {
		var cfgErr *errs.ConfigError
		if !errors.As(err, &cfgErr) {
			return nil, err
		}
		// An unreadable file is replaced by a fresh grant.
		m.logger.Warn("ignoring unusable stored credential", slog.String("error", err.Error()))
		cred = nil
	}

	now := m.now()

	switch {
	case cred == nil:
		m.state = StateNoCredential
	case cred.Valid(now, m.scopes):
		m.state = StateLoadedValid
		m.logger.Debug("using stored credential", slog.Time("expiry", cred.Expiry))
		return cred, nil
	default:
		m.state = StateLoadedInvalid
		m.logger.Info("stored credential is not usable",
			slog.Bool("expired", cred.Expired(now)),
			slog.Bool("has_scopes", cred.HasScopes(m.scopes)),
		)
	}

	if m.state == StateLoadedInvalid && m.refresher != nil && cred.CanRefresh(m.scopes) {
		renewed, err := m.refresher.Refresh(ctx, cred)
		if err == nil {
			if err := checkGranted(renewed, m.scopes); err != nil {
				return nil, err
			}
			if err := m.store.Save(ctx, renewed); err != nil {
				return nil, fmt.Errorf("auth: saving refreshed credential: %w", err)
			}
			m.state = StateRefreshed
			m.logger.Info("refreshed stored credential", slog.Time("expiry", renewed.Expiry))
			return renewed, nil
		}

		var refreshErr *errs.RefreshError
		if !errors.As(err, &refreshErr) {
			return nil, err
		}
		m.logger.Warn("refresh failed, asking for authorization again", slog.String("error", err.Error()))
	}

	tok, err := m.flow.Authorize(ctx)
	if err != nil {
		return nil, err
	}

	minted := credstore.FromOAuth2Token(tok, m.scopes)
	if err := checkGranted(minted, m.scopes); err != nil {
		return nil, err
	}
	if err := m.store.Save(ctx, minted); err != nil {
		return nil, fmt.Errorf("auth: saving credential: %w", err)
	}

	m.state = StateMinted
	m.logger.Info("authorization complete", slog.Time("expiry", minted.Expiry))

	return minted, nil
}

// checkGranted rejects a credential whose grant is narrower than required.
// Google's consent screen lets the user untick individual scopes.
func checkGranted(cred *credstore.Credential, required []string) error {
	missing := cred.MissingScopes(required)
	if len(missing) == 0 {
		return nil
	}
	return &errs.AuthCodeError{
		Err: fmt.Errorf("grant is missing required scopes: %s", strings.Join(missing, " ")),
	}
}
