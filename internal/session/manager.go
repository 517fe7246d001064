// Package session owns the authenticated session record and the token
// health guarantees around it.
package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Arunteja27/code-spa-sub000/internal/core"
	"github.com/Arunteja27/code-spa-sub000/internal/store"
)

// Session is the authenticated state for one user. Mutated only through
// Manager so writes stay serialized.
type Session struct {
	AccessToken   string
	RefreshToken  string
	User          *core.UserProfile
	Authenticated bool
}

// Manager is the single writer for the session record. Auth establishes it,
// the guardian rotates its tokens, disconnect clears it; nobody else
// touches the fields.
type Manager struct {
	mu      sync.RWMutex
	session Session
	secrets store.SecretStore
	logger  *zap.Logger
}

func NewManager(secrets store.SecretStore, logger *zap.Logger) *Manager {
	return &Manager{
		secrets: secrets,
		logger:  logger,
	}
}

// Load restores a persisted session, if any. A session missing either token
// is treated as absent.
func (m *Manager) Load() error {
	access, okA, err := m.secrets.GetSecret(store.KeyAccessToken)
	if err != nil {
		return fmt.Errorf("failed to load access token: %w", err)
	}
	refresh, okR, err := m.secrets.GetSecret(store.KeyRefreshToken)
	if err != nil {
		return fmt.Errorf("failed to load refresh token: %w", err)
	}
	if !okA || !okR || access == "" || refresh == "" {
		return nil
	}

	var user *core.UserProfile
	if raw, ok, err := m.secrets.GetSecret(store.KeyUserProfile); err == nil && ok {
		var profile core.UserProfile
		if jsonErr := json.Unmarshal([]byte(raw), &profile); jsonErr == nil {
			user = &profile
		}
	}

	m.mu.Lock()
	m.session = Session{
		AccessToken:   access,
		RefreshToken:  refresh,
		User:          user,
		Authenticated: true,
	}
	m.mu.Unlock()

	m.logger.Info("Restored persisted session")
	return nil
}

// Establish replaces the session after a successful code exchange. The
// in-memory record and the persisted copy are written together.
func (m *Manager) Establish(accessToken, refreshToken string, user *core.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = Session{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		User:          user,
		Authenticated: true,
	}

	return m.persistLocked()
}

// UpdateTokens applies a refresh result. An empty rotated refresh token
// keeps the previous one. Refresh results never resurrect a session that
// was cleared while the refresh was in flight.
func (m *Manager) UpdateTokens(accessToken, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.session.Authenticated {
		return core.ErrNotAuthenticated
	}

	m.session.AccessToken = accessToken
	if refreshToken != "" {
		m.session.RefreshToken = refreshToken
	}

	return m.persistLocked()
}

// Clear destroys the session and its persisted copy. Idempotent.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = Session{}

	for _, key := range []string{store.KeyAccessToken, store.KeyRefreshToken, store.KeyUserProfile} {
		if err := m.secrets.DeleteSecret(key); err != nil {
			m.logger.Warn("Failed to delete persisted secret", zap.String("key", key), zap.Error(err))
		}
	}
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// AccessToken returns the current bearer token, empty when unauthenticated.
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.AccessToken
}

func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Authenticated
}

func (m *Manager) User() *core.UserProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.User
}

func (m *Manager) persistLocked() error {
	if err := m.secrets.SetSecret(store.KeyAccessToken, m.session.AccessToken); err != nil {
		return fmt.Errorf("failed to persist access token: %w", err)
	}
	if err := m.secrets.SetSecret(store.KeyRefreshToken, m.session.RefreshToken); err != nil {
		return fmt.Errorf("failed to persist refresh token: %w", err)
	}
	if m.session.User != nil {
		raw, err := json.Marshal(m.session.User)
		if err != nil {
			return fmt.Errorf("failed to encode user profile: %w", err)
		}
		if err := m.secrets.SetSecret(store.KeyUserProfile, string(raw)); err != nil {
			return fmt.Errorf("failed to persist user profile: %w", err)
		}
	}
	return nil
}
