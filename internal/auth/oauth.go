// Package auth drives the authorization-code flow against the Spotify
// accounts service, including the loopback callback listener.
package auth

import (
	"context"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/Arunteja27/code-spa-sub000/internal/core"
)

// Scopes is the fixed scope set the playback core requests: profile and
// email, playback state read/write, currently-playing, library, listening
// history, top items, and playlists.
var Scopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopeUserReadCurrentlyPlaying,
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopeUserReadRecentlyPlayed,
	spotifyauth.ScopeUserTopRead,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
}

// NewOAuthConfig builds the oauth2 config for the authorization-code flow.
func NewOAuthConfig(cfg core.SpotifyConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL(),
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}
}

// OAuthRefresher implements session.Refresher on the oauth2 token endpoint.
type OAuthRefresher struct {
	conf *oauth2.Config
}

func NewOAuthRefresher(conf *oauth2.Config) *OAuthRefresher {
	return &OAuthRefresher{conf: conf}
}

// Refresh exchanges the refresh token for a fresh access token. The second
// return value is the rotated refresh token, empty when the provider kept
// the old one.
func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	// A token with only a refresh token forces the refresh grant.
	src := r.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return "", "", err
	}

	rotated := ""
	if tok.RefreshToken != "" && tok.RefreshToken != refreshToken {
		rotated = tok.RefreshToken
	}
	return tok.AccessToken, rotated, nil
}
