// Package spotify wraps the Spotify Web API: typed playback control with
// device resolution and rate-limit policy, plus library collection reads.
// It is the only place raw transport errors become taxonomy errors.
package spotify

import (
	"net/http"
	"time"

	"github.com/Arunteja27/code-spa-sub000/internal/core"
	"github.com/Arunteja27/code-spa-sub000/internal/session"
)

// authTransport injects the session's bearer token into every request. The
// token is read per request so a refresh mid-flight is picked up by the
// next call automatically.
type authTransport struct {
	sessions *session.Manager
	base     http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := t.sessions.AccessToken()
	if token == "" {
		return nil, core.ErrNotAuthenticated
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(clone)
}

// NewHTTPClient builds the authenticated HTTP client shared by the facade
// and the library reader.
func NewHTTPClient(sessions *session.Manager) *http.Client {
	return &http.Client{
		Transport: &authTransport{sessions: sessions, base: http.DefaultTransport},
		Timeout:   15 * time.Second,
	}
}
