// Package player holds the navigation state machine, the playback-source
// resolution for next/previous, and the polling loop that watches the
// remote player.
package player

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Arunteja27/code-spa-sub000/internal/core"
)

// Remote is the facade surface the player layer drives.
type Remote interface {
	PlayTrack(ctx context.Context, uri string) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	SkipNext(ctx context.Context) error
	SkipPrevious(ctx context.Context) error
	Seek(ctx context.Context, positionMs int) error
	CurrentState(ctx context.Context) (*core.PlaybackState, error)
}

// Context tracks two independent layers: the browsing view (what the user
// is looking at) and the active playback source (what resolves
// next/previous). Browsing never touches the source; only an explicit play
// does.
type Context struct {
	remote Remote
	logger *zap.Logger

	mu      sync.Mutex
	view    core.BrowsingView
	browsed *core.Collection
	source  *core.ActiveSource

	// Optimistic playback state. seq increments on every play action so a
	// poll issued before the play can be recognized as stale.
	playing bool
	seq     uint64

	// onPlay fires after the source moves, before the network call resolves.
	onPlay func(track core.Track)
}

func NewContext(remote Remote, logger *zap.Logger) *Context {
	return &Context{
		remote: remote,
		logger: logger,
		view:   core.BrowsingView{Kind: core.ViewLibrary},
	}
}

// SetOnPlay registers the hook fired on every local play action.
func (c *Context) SetOnPlay(fn func(track core.Track)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPlay = fn
}

// Navigate replaces the browsing view. Never mutates the active source.
func (c *Context) Navigate(view core.BrowsingView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = view
}

// SetBrowsed records the collection the user is currently looking at.
func (c *Context) SetBrowsed(col core.Collection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.browsed = &col
}

// View returns the current browsing view.
func (c *Context) View() core.BrowsingView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// GoBack walks exactly one level up the view tree:
// PlaylistSongs -> Playlists -> Library, Category -> Library.
func (c *Context) GoBack() core.BrowsingView {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.view.Kind {
	case core.ViewPlaylistSongs:
		c.view = core.BrowsingView{Kind: core.ViewPlaylists}
	case core.ViewPlaylists, core.ViewCategory:
		c.view = core.BrowsingView{Kind: core.ViewLibrary}
	}
	return c.view
}

// Reset returns the view to Library, used when the user leaves the music
// feature entirely. The active source survives; leaving the panel does not
// stop the music.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = core.BrowsingView{Kind: core.ViewLibrary}
	c.browsed = nil
}

// PlayAt plays collection[index] and makes that pair the active source.
// isPlaying goes optimistic-true before the network call so the UI reacts
// to the button press; the next successful poll reconciles it.
func (c *Context) PlayAt(ctx context.Context, col core.Collection, index int) error {
	if index < 0 || index >= len(col.Tracks) {
		return fmt.Errorf("track index %d out of range for %s (%d tracks)",
			index, col.Tag(), len(col.Tracks))
	}

	track := col.Tracks[index]
	if !track.Playable() {
		return fmt.Errorf("track %q has no playable uri", track.Name)
	}

	c.mu.Lock()
	c.source = &core.ActiveSource{Collection: col, Index: index}
	c.playing = true
	c.seq++
	hook := c.onPlay
	c.mu.Unlock()

	if hook != nil {
		hook(track)
	}

	if err := c.remote.PlayTrack(ctx, track.URI); err != nil {
		// Optimistic state stands; the poller corrects it on its next tick.
		c.logger.Warn("Play call failed",
			zap.String("track", track.Name), zap.Error(err))
		return err
	}
	return nil
}

// PlayBrowsedAt plays the currently browsed collection at index.
func (c *Context) PlayBrowsedAt(ctx context.Context, index int) error {
	c.mu.Lock()
	browsed := c.browsed
	c.mu.Unlock()

	if browsed == nil {
		return fmt.Errorf("no collection is being browsed")
	}
	return c.PlayAt(ctx, *browsed, index)
}

// Advance moves the active source by direction (+1 next, -1 previous).
// With no active source, or at a boundary, the skip is delegated to the
// remote player: its own queue (shuffle, externally started playback) may
// legitimately advance where the local index cannot. The boundary case is
// deliberately not a no-op.
func (c *Context) Advance(ctx context.Context, direction int) error {
	c.mu.Lock()
	source := c.source
	c.mu.Unlock()

	if source != nil {
		next := source.Index + direction
		if next >= 0 && next < len(source.Collection.Tracks) {
			return c.PlayAt(ctx, source.Collection, next)
		}
	}

	if direction > 0 {
		return c.remote.SkipNext(ctx)
	}
	return c.remote.SkipPrevious(ctx)
}

// Source returns a copy of the active source, or nil when the remote's own
// queue is in charge.
func (c *Context) Source() *core.ActiveSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source == nil {
		return nil
	}
	src := *c.source
	return &src
}

// ClearSource drops the active source. Idempotent; part of disconnect.
func (c *Context) ClearSource() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.source = nil
	c.playing = false
}

// CurrentTrack returns the active source's track, or nil.
func (c *Context) CurrentTrack() *core.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source == nil {
		return nil
	}
	track := c.source.Collection.Tracks[c.source.Index]
	return &track
}

// IsPlaying returns the optimistic playback flag.
func (c *Context) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// SetPlaying records an observed or optimistic playback flag and bumps the
// generation when the change is user-initiated.
func (c *Context) SetPlaying(playing, userInitiated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = playing
	if userInitiated {
		c.seq++
	}
}

// Seq returns the play generation counter. The poller captures it before a
// request and discards the response if it moved in the meantime.
func (c *Context) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}
