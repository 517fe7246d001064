package core

import (
	"fmt"
)

// CollectionKind identifies which browsable collection a track list came from.
type CollectionKind int

const (
	// CollectionLikedSongs is the user's saved tracks library
	CollectionLikedSongs CollectionKind = iota
	// CollectionRecentlyPlayed is the user's listening history
	CollectionRecentlyPlayed
	// CollectionTopTracks is the user's most played tracks
	CollectionTopTracks
	// CollectionPlaylist is a specific user playlist
	CollectionPlaylist
)

func (k CollectionKind) String() string {
	switch k {
	case CollectionLikedSongs:
		return "liked_songs"
	case CollectionRecentlyPlayed:
		return "recently_played"
	case CollectionTopTracks:
		return "top_tracks"
	case CollectionPlaylist:
		return "playlist"
	default:
		return "unknown"
	}
}

type Track struct {
	ID         string
	Name       string
	Artist     string
	Album      string
	DurationMs int
	ImageURL   string
	URI        string
}

// Playable reports whether the track carries a URI the remote player accepts.
func (t Track) Playable() bool {
	return t.URI != ""
}

// Collection is a named, ordered track list. Identity is the tag, not the
// contents: two fetches of the same playlist are the same collection even
// when the track list drifted in between.
type Collection struct {
	Kind       CollectionKind
	PlaylistID string // set only when Kind == CollectionPlaylist
	Name       string
	Tracks     []Track
}

// Tag returns the collection's identity key.
func (c Collection) Tag() string {
	if c.Kind == CollectionPlaylist {
		return fmt.Sprintf("playlist:%s", c.PlaylistID)
	}
	return c.Kind.String()
}

type PlaylistSummary struct {
	ID         string
	Name       string
	TrackCount int
	ImageURL   string
	Owner      string
}

type UserProfile struct {
	ID          string
	DisplayName string
	Email       string
}

type Device struct {
	ID            string
	Name          string
	Type          string
	Active        bool
	Restricted    bool
	VolumePercent int
}

// PlaybackState is a snapshot of the remote player.
type PlaybackState struct {
	IsPlaying     bool
	VolumePercent int
	Track         *Track
	ProgressMs    int
	DeviceName    string
}

// ActiveSource is the (collection, index) pair that resolves next/previous.
// It is set only by an explicit play action, never by browsing navigation.
type ActiveSource struct {
	Collection Collection
	Index      int
}

// ViewKind identifies a browsing view in the music panel.
type ViewKind int

const (
	// ViewLibrary is the top-level category list
	ViewLibrary ViewKind = iota
	// ViewCategory shows the tracks of one non-playlist collection
	ViewCategory
	// ViewPlaylists is the user's playlist list
	ViewPlaylists
	// ViewPlaylistSongs shows the tracks of one playlist
	ViewPlaylistSongs
)

// BrowsingView is purely navigation state; changing it never touches the
// active playback source.
type BrowsingView struct {
	Kind       ViewKind
	Category   CollectionKind // meaningful for ViewCategory
	PlaylistID string         // meaningful for ViewPlaylistSongs
}

type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
)

// PlaybackUpdate is the outbound playback change event.
type PlaybackUpdate struct {
	IsPlaying  bool
	ProgressMs int
	DurationMs int
	Track      *Track
}
