package session

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/Arunteja27/code-spa-sub000/internal/core"
	"github.com/Arunteja27/code-spa-sub000/internal/store"
)

func TestManager_EstablishPersistsAndLoadRestores(t *testing.T) {
	secrets := store.NewMemoryStore()
	logger := zap.NewNop()

	first := NewManager(secrets, logger)
	user := &core.UserProfile{ID: "u1", DisplayName: "Test User"}
	if err := first.Establish("access-1", "refresh-1", user); err != nil {
		t.Fatalf("Establish failed: %v", err)
	}

	// A second manager over the same store restores the full session.
	second := NewManager(secrets, logger)
	if err := second.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !second.Authenticated() {
		t.Error("Expected restored session to be authenticated")
	}
	if got := second.AccessToken(); got != "access-1" {
		t.Errorf("Expected access token access-1, got %q", got)
	}
	if second.User() == nil || second.User().DisplayName != "Test User" {
		t.Errorf("Expected restored user profile, got %+v", second.User())
	}
}

func TestManager_LoadIgnoresPartialSession(t *testing.T) {
	secrets := store.NewMemoryStore()
	if err := secrets.SetSecret(store.KeyAccessToken, "access-only"); err != nil {
		t.Fatalf("SetSecret failed: %v", err)
	}

	m := NewManager(secrets, zap.NewNop())
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Authenticated() {
		t.Error("Expected session without refresh token to stay unauthenticated")
	}
}

func TestManager_UpdateTokensKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	m := NewManager(store.NewMemoryStore(), zap.NewNop())
	if err := m.Establish("access-1", "refresh-1", nil); err != nil {
		t.Fatalf("Establish failed: %v", err)
	}

	if err := m.UpdateTokens("access-2", ""); err != nil {
		t.Fatalf("UpdateTokens failed: %v", err)
	}

	s := m.Snapshot()
	if s.AccessToken != "access-2" {
		t.Errorf("Expected access token access-2, got %q", s.AccessToken)
	}
	if s.RefreshToken != "refresh-1" {
		t.Errorf("Expected refresh token to survive, got %q", s.RefreshToken)
	}
}

func TestManager_UpdateTokensRefusesClearedSession(t *testing.T) {
	m := NewManager(store.NewMemoryStore(), zap.NewNop())
	if err := m.Establish("access-1", "refresh-1", nil); err != nil {
		t.Fatalf("Establish failed: %v", err)
	}

	m.Clear()

	err := m.UpdateTokens("access-2", "refresh-2")
	if !errors.Is(err, core.ErrNotAuthenticated) {
		t.Errorf("Expected ErrNotAuthenticated, got %v", err)
	}
	if m.Authenticated() {
		t.Error("Expected session to stay cleared after a late refresh result")
	}
}

func TestManager_ClearIsIdempotentAndDeletesSecrets(t *testing.T) {
	secrets := store.NewMemoryStore()
	m := NewManager(secrets, zap.NewNop())
	if err := m.Establish("access-1", "refresh-1", &core.UserProfile{ID: "u1"}); err != nil {
		t.Fatalf("Establish failed: %v", err)
	}

	m.Clear()
	m.Clear()

	if _, ok, _ := secrets.GetSecret(store.KeyAccessToken); ok {
		t.Error("Expected access token to be deleted")
	}
	if _, ok, _ := secrets.GetSecret(store.KeyRefreshToken); ok {
		t.Error("Expected refresh token to be deleted")
	}
	if _, ok, _ := secrets.GetSecret(store.KeyUserProfile); ok {
		t.Error("Expected user profile to be deleted")
	}
}
