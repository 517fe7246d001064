package core

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy for the playback core. The spotify facade is the only
// place that translates raw transport errors into these values; everything
// above it matches with errors.Is.
var (
	// ErrNotConfigured indicates missing client credentials. Fatal until configured.
	ErrNotConfigured = errors.New("spotify client credentials are not configured")
	// ErrAuthExchangeFailed indicates the authorization code exchange failed. Retryable by re-initiating auth.
	ErrAuthExchangeFailed = errors.New("authorization code exchange failed")
	// ErrRefreshFailed indicates a terminal token refresh failure. The session is demoted and re-auth is required.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrNoDeviceFound indicates no playback device is available. User-actionable, never auto-retried.
	ErrNoDeviceFound = errors.New("no spotify device found, open spotify on a device")
	// ErrPremiumRequired indicates the account lacks playback control rights. Never auto-retried.
	ErrPremiumRequired = errors.New("playback control requires spotify premium")
	// ErrRateLimited indicates the remote API asked us to back off. Self-clears after the cool-down.
	ErrRateLimited = errors.New("rate limited by spotify api")
	// ErrNotAuthenticated indicates no usable session exists.
	ErrNotAuthenticated = errors.New("not authenticated with spotify")
)

// RateLimitedError carries the cool-down the remote asked for. It matches
// ErrRateLimited under errors.Is.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited by spotify api, retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// APIError is a raw remote API failure that did not map to a more specific
// taxonomy value. Treated as failed-but-non-fatal by callers.
type APIError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("spotify api %s returned %d: %s", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("spotify api %s returned %d", e.Endpoint, e.Status)
}

// IsUnauthorized reports whether err is a remote 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 401
}
