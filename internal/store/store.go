// Package store provides the persisted key/value stores backing the session
// and user preferences, plus an in-memory collection cache.
package store

// SecretStore holds credential material (tokens, user profile). Backends are
// expected to live somewhere secret-capable; the core only sees the keys.
type SecretStore interface {
	GetSecret(key string) (string, bool, error)
	SetSecret(key, value string) error
	DeleteSecret(key string) error
}

// SettingsStore holds plain, non-sensitive preferences such as the
// last-known volume and browsing view.
type SettingsStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Keys used by the playback core. Centralized so the two store halves never
// collide on names.
const (
	KeyAccessToken  = "spotify.access_token"
	KeyRefreshToken = "spotify.refresh_token"
	KeyUserProfile  = "spotify.user_profile"

	KeyLastVolume   = "player.last_volume"
	KeyBrowsingView = "player.browsing_view"
)
