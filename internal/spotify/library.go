package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/Arunteja27/code-spa-sub000/internal/core"
	"github.com/Arunteja27/code-spa-sub000/internal/session"
	"github.com/Arunteja27/code-spa-sub000/internal/store"
)

const pageLimit = 50

// Library reads the browsable collections: liked songs, recently played,
// top tracks, and playlists. Reads go through the generated client; results
// are cached so browsing does not compete with the poll loop for the
// request budget.
type Library struct {
	client   *spotify.Client
	cache    *store.CollectionCache
	guardian *session.Guardian
	limits   *RateLimit
	logger   *zap.Logger
}

func NewLibrary(
	httpClient *http.Client,
	cache *store.CollectionCache,
	guardian *session.Guardian,
	limits *RateLimit,
	logger *zap.Logger,
) *Library {
	return &Library{
		client:   spotify.New(httpClient),
		cache:    cache,
		guardian: guardian,
		limits:   limits,
		logger:   logger,
	}
}

// CurrentUser fetches the profile of the session owner. Doubles as the
// guardian's lightweight probe call.
func (l *Library) CurrentUser(ctx context.Context) (*core.UserProfile, error) {
	if remaining, blocked := l.limits.Blocked(); blocked {
		return nil, &core.RateLimitedError{RetryAfter: remaining}
	}

	var profile *core.UserProfile
	err := l.guardian.Do(ctx, func(ctx context.Context) error {
		user, err := l.client.CurrentUser(ctx)
		if err != nil {
			return l.translate("/me", err)
		}
		profile = &core.UserProfile{
			ID:          user.ID,
			DisplayName: user.DisplayName,
			Email:       user.Email,
		}
		return nil
	})
	return profile, err
}

// Probe returns the guardian probe function backed by CurrentUser.
func (l *Library) Probe() func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := l.CurrentUser(ctx)
		return err
	}
}

// Collection fetches one collection by kind. For playlists, playlistID and
// name identify the target. Served from cache within the TTL.
func (l *Library) Collection(ctx context.Context, kind core.CollectionKind, playlistID, name string) (core.Collection, error) {
	want := core.Collection{Kind: kind, PlaylistID: playlistID, Name: name}
	if cached, ok := l.cache.Get(want.Tag()); ok {
		return cached, nil
	}

	if remaining, blocked := l.limits.Blocked(); blocked {
		return core.Collection{}, &core.RateLimitedError{RetryAfter: remaining}
	}

	var tracks []core.Track
	err := l.guardian.Do(ctx, func(ctx context.Context) error {
		var fetchErr error
		switch kind {
		case core.CollectionLikedSongs:
			tracks, fetchErr = l.likedSongs(ctx)
		case core.CollectionRecentlyPlayed:
			tracks, fetchErr = l.recentlyPlayed(ctx)
		case core.CollectionTopTracks:
			tracks, fetchErr = l.topTracks(ctx)
		case core.CollectionPlaylist:
			tracks, fetchErr = l.playlistTracks(ctx, playlistID)
		default:
			fetchErr = fmt.Errorf("unknown collection kind %v", kind)
		}
		return fetchErr
	})
	if err != nil {
		return core.Collection{}, err
	}

	want.Tracks = tracks
	l.cache.Put(want)

	l.logger.Debug("Fetched collection",
		zap.String("collection", want.Tag()),
		zap.Int("tracks", len(tracks)))
	return want, nil
}

// Playlists lists the user's playlists.
func (l *Library) Playlists(ctx context.Context) ([]core.PlaylistSummary, error) {
	if remaining, blocked := l.limits.Blocked(); blocked {
		return nil, &core.RateLimitedError{RetryAfter: remaining}
	}

	var summaries []core.PlaylistSummary
	err := l.guardian.Do(ctx, func(ctx context.Context) error {
		summaries = summaries[:0]
		offset := 0
		for {
			page, err := l.client.CurrentUsersPlaylists(ctx, spotify.Limit(pageLimit), spotify.Offset(offset))
			if err != nil {
				return l.translate("/me/playlists", err)
			}
			for i := range page.Playlists {
				p := &page.Playlists[i]
				summary := core.PlaylistSummary{
					ID:         string(p.ID),
					Name:       p.Name,
					TrackCount: int(p.Tracks.Total),
					Owner:      p.Owner.DisplayName,
				}
				if len(p.Images) > 0 {
					summary.ImageURL = p.Images[0].URL
				}
				summaries = append(summaries, summary)
			}
			if len(page.Playlists) < pageLimit {
				break
			}
			offset += pageLimit
		}
		return nil
	})
	return summaries, err
}

func (l *Library) likedSongs(ctx context.Context) ([]core.Track, error) {
	var tracks []core.Track
	offset := 0
	for {
		page, err := l.client.CurrentUsersTracks(ctx, spotify.Limit(pageLimit), spotify.Offset(offset))
		if err != nil {
			return nil, l.translate("/me/tracks", err)
		}
		for i := range page.Tracks {
			tracks = append(tracks, fullTrackToCore(&page.Tracks[i].FullTrack))
		}
		if len(page.Tracks) < pageLimit {
			break
		}
		offset += pageLimit
	}
	return tracks, nil
}

func (l *Library) recentlyPlayed(ctx context.Context) ([]core.Track, error) {
	items, err := l.client.PlayerRecentlyPlayedOpt(ctx, &spotify.RecentlyPlayedOptions{Limit: pageLimit})
	if err != nil {
		return nil, l.translate("/me/player/recently-played", err)
	}

	tracks := make([]core.Track, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for i := range items {
		t := simpleTrackToCore(&items[i].Track)
		// History repeats tracks; the collection should not.
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

func (l *Library) topTracks(ctx context.Context) ([]core.Track, error) {
	page, err := l.client.CurrentUsersTopTracks(ctx, spotify.Limit(pageLimit))
	if err != nil {
		return nil, l.translate("/me/top/tracks", err)
	}

	tracks := make([]core.Track, 0, len(page.Tracks))
	for i := range page.Tracks {
		tracks = append(tracks, fullTrackToCore(&page.Tracks[i]))
	}
	return tracks, nil
}

func (l *Library) playlistTracks(ctx context.Context, playlistID string) ([]core.Track, error) {
	var tracks []core.Track
	offset := 0
	for {
		page, err := l.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(pageLimit), spotify.Offset(offset))
		if err != nil {
			return nil, l.translate("/playlists/{id}/tracks", err)
		}
		for i := range page.Items {
			// Episodes and removed tracks come back as nil items.
			if page.Items[i].Track.Track != nil {
				tracks = append(tracks, fullTrackToCore(page.Items[i].Track.Track))
			}
		}
		if len(page.Items) < pageLimit {
			break
		}
		offset += pageLimit
	}
	return tracks, nil
}

// translate maps generated-client errors into the taxonomy. The generated
// client does not expose the Retry-After header, so a 429 here applies the
// default cool-down.
func (l *Library) translate(endpoint string, err error) error {
	var spErr spotify.Error
	if !errors.As(err, &spErr) {
		var spErrPtr *spotify.Error
		if !errors.As(err, &spErrPtr) {
			return fmt.Errorf("network error calling %s: %w", endpoint, err)
		}
		spErr = *spErrPtr
	}

	if spErr.Status == http.StatusTooManyRequests {
		applied := l.limits.BlockFromHeader("")
		return &core.RateLimitedError{RetryAfter: applied}
	}
	return &core.APIError{Endpoint: endpoint, Status: spErr.Status, Message: spErr.Message}
}

func fullTrackToCore(t *spotify.FullTrack) core.Track {
	track := core.Track{
		ID:         string(t.ID),
		Name:       t.Name,
		Album:      t.Album.Name,
		DurationMs: int(t.Duration),
		URI:        string(t.URI),
	}
	for i, artist := range t.Artists {
		if i > 0 {
			track.Artist += ", "
		}
		track.Artist += artist.Name
	}
	if len(t.Album.Images) > 0 {
		track.ImageURL = t.Album.Images[0].URL
	}
	return track
}

func simpleTrackToCore(t *spotify.SimpleTrack) core.Track {
	track := core.Track{
		ID:         string(t.ID),
		Name:       t.Name,
		Album:      t.Album.Name,
		DurationMs: int(t.Duration),
		URI:        string(t.URI),
	}
	for i, artist := range t.Artists {
		if i > 0 {
			track.Artist += ", "
		}
		track.Artist += artist.Name
	}
	if len(t.Album.Images) > 0 {
		track.ImageURL = t.Album.Images[0].URL
	}
	return track
}

// FetchProfile fetches the user profile with a bare access token. Used by
// the auth flow before the session exists.
func FetchProfile(ctx context.Context, accessToken string) (*core.UserProfile, error) {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	client := spotify.New(httpClient)

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user profile: %w", err)
	}
	return &core.UserProfile{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
	}, nil
}
