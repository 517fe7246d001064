package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/Arunteja27/code-spa-sub000/internal/core"
	"github.com/Arunteja27/code-spa-sub000/internal/session"
	"github.com/Arunteja27/code-spa-sub000/internal/store"
)

// LibraryAPI is the collection-read surface the controller browses with.
type LibraryAPI interface {
	Collection(ctx context.Context, kind core.CollectionKind, playlistID, name string) (core.Collection, error)
	Playlists(ctx context.Context) ([]core.PlaylistSummary, error)
	Probe() func(context.Context) error
}

// AuthFlow is the auth surface the controller drives on connect/disconnect.
type AuthFlow interface {
	Initiate(ctx context.Context) (bool, error)
	Cancel()
}

// Controller is the inbound surface the UI layer calls. It wires the auth
// flow, the facade, the poller and the playback context together and emits
// the outbound events.
type Controller struct {
	remote   Remote
	library  LibraryAPI
	flow     AuthFlow
	poller   *Poller
	pctx     *Context
	sessions *session.Manager
	guardian *session.Guardian
	settings store.SettingsStore
	events   core.Events
	metrics  core.Metrics
	logger   *zap.Logger
}

func NewController(
	remote Remote,
	library LibraryAPI,
	flow AuthFlow,
	poller *Poller,
	pctx *Context,
	sessions *session.Manager,
	guardian *session.Guardian,
	settings store.SettingsStore,
	events core.Events,
	metrics core.Metrics,
	logger *zap.Logger,
) *Controller {
	if events == nil {
		events = core.NopEvents{}
	}
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	c := &Controller{
		remote:   remote,
		library:  library,
		flow:     flow,
		poller:   poller,
		pctx:     pctx,
		sessions: sessions,
		guardian: guardian,
		settings: settings,
		events:   events,
		metrics:  metrics,
		logger:   logger,
	}

	poller.SetAdvance(func(ctx context.Context) error {
		return pctx.Advance(ctx, +1)
	})
	poller.SetSeq(pctx.Seq)
	poller.SetObserve(func(isPlaying bool) {
		pctx.SetPlaying(isPlaying, false)
	})
	poller.SetOnVolume(c.rememberVolume)

	pctx.SetOnPlay(func(track core.Track) {
		c.events.TrackChanged(track)
		poller.ScheduleTrackEnd(track, 0)
	})

	return c
}

// Connect authenticates and starts the poller. A persisted session is
// validated and reused; otherwise a fresh auth attempt runs.
func (c *Controller) Connect(ctx context.Context) error {
	c.events.ConnectionStatusChanged(core.StatusConnecting)

	if c.sessions.Authenticated() {
		err := c.guardian.Validate(ctx, c.library.Probe())
		if err == nil {
			c.onConnected(ctx)
			return nil
		}
		if !sessionUnusable(err) {
			// A rate limit or network hiccup during validation says nothing
			// about the tokens; keep the session and let the caller retry.
			c.logger.Warn("Session validation hit a transient failure", zap.Error(err))
			c.events.ConnectionStatusChanged(core.StatusError)
			return err
		}
		c.logger.Info("Persisted session unusable, starting fresh auth")
	}

	ok, err := c.flow.Initiate(ctx)
	if err != nil {
		c.events.ConnectionStatusChanged(core.StatusError)
		return err
	}
	if !ok {
		c.events.ConnectionStatusChanged(core.StatusDisconnected)
		return nil
	}

	c.onConnected(ctx)
	return nil
}

// sessionUnusable reports whether a validation failure means the persisted
// tokens are dead. Only a failed refresh chain or a missing session discards
// them; everything else is transient.
func sessionUnusable(err error) bool {
	return errors.Is(err, core.ErrRefreshFailed) ||
		errors.Is(err, core.ErrNotAuthenticated) ||
		core.IsUnauthorized(err)
}

func (c *Controller) onConnected(ctx context.Context) {
	c.metrics.SetSessionActive(true)
	c.poller.Start(ctx)
	c.events.ConnectionStatusChanged(core.StatusConnected)

	if user := c.sessions.User(); user != nil {
		c.logger.Info("Connected", zap.String("user", user.DisplayName))
	}
}

// Disconnect tears the session down in order: stop the poller, cancel the
// pending track-end timer, close any open callback listener, then clear the
// session. Every step is idempotent, so calling Disconnect twice is safe.
func (c *Controller) Disconnect() {
	c.poller.Stop()
	c.poller.CancelTrackEnd()
	c.flow.Cancel()
	c.pctx.ClearSource()
	c.pctx.Reset()
	c.sessions.Clear()

	c.metrics.SetSessionActive(false)
	c.events.ConnectionStatusChanged(core.StatusDisconnected)
	c.logger.Info("Disconnected")
}

// Navigate replaces the browsing view and remembers it.
func (c *Controller) Navigate(view core.BrowsingView) {
	c.pctx.Navigate(view)
	c.rememberView(view)
}

// GoBack walks one level up the view tree.
func (c *Controller) GoBack() core.BrowsingView {
	view := c.pctx.GoBack()
	c.rememberView(view)
	return view
}

// SelectCategory fetches the category's collection and browses it.
func (c *Controller) SelectCategory(ctx context.Context, kind core.CollectionKind) (core.Collection, error) {
	col, err := c.library.Collection(ctx, kind, "", "")
	if err != nil {
		return core.Collection{}, err
	}

	view := core.BrowsingView{Kind: core.ViewCategory, Category: kind}
	c.pctx.Navigate(view)
	c.pctx.SetBrowsed(col)
	c.rememberView(view)
	return col, nil
}

// Playlists lists the user's playlists and browses the playlist view.
func (c *Controller) Playlists(ctx context.Context) ([]core.PlaylistSummary, error) {
	lists, err := c.library.Playlists(ctx)
	if err != nil {
		return nil, err
	}
	c.Navigate(core.BrowsingView{Kind: core.ViewPlaylists})
	return lists, nil
}

// SelectPlaylist fetches one playlist's tracks and browses them.
func (c *Controller) SelectPlaylist(ctx context.Context, playlistID, name string) (core.Collection, error) {
	col, err := c.library.Collection(ctx, core.CollectionPlaylist, playlistID, name)
	if err != nil {
		return core.Collection{}, err
	}

	view := core.BrowsingView{Kind: core.ViewPlaylistSongs, PlaylistID: playlistID}
	c.pctx.Navigate(view)
	c.pctx.SetBrowsed(col)
	c.rememberView(view)
	return col, nil
}

// PlayTrackAtIndex plays the browsed collection at index and makes it the
// active playback source.
func (c *Controller) PlayTrackAtIndex(ctx context.Context, index int) error {
	return c.pctx.PlayBrowsedAt(ctx, index)
}

// TogglePlayback pauses or resumes, flipping the optimistic flag first.
func (c *Controller) TogglePlayback(ctx context.Context) error {
	if c.pctx.IsPlaying() {
		c.pctx.SetPlaying(false, true)
		return c.remote.Pause(ctx)
	}
	c.pctx.SetPlaying(true, true)
	return c.remote.Resume(ctx)
}

func (c *Controller) NextTrack(ctx context.Context) error {
	return c.pctx.Advance(ctx, +1)
}

func (c *Controller) PreviousTrack(ctx context.Context) error {
	return c.pctx.Advance(ctx, -1)
}

// SeekToPosition seeks to percent (0..100) of the active track's duration.
func (c *Controller) SeekToPosition(ctx context.Context, percent float64) error {
	track := c.pctx.CurrentTrack()
	if track == nil {
		return fmt.Errorf("no active track to seek in")
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	positionMs := int(float64(track.DurationMs) * percent / 100)
	return c.remote.Seek(ctx, positionMs)
}

// RestoreView loads the remembered browsing view, defaulting to Library.
func (c *Controller) RestoreView() core.BrowsingView {
	raw, ok, err := c.settings.Get(store.KeyBrowsingView)
	if err != nil || !ok {
		return core.BrowsingView{Kind: core.ViewLibrary}
	}
	var view core.BrowsingView
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		return core.BrowsingView{Kind: core.ViewLibrary}
	}
	c.pctx.Navigate(view)
	return view
}

func (c *Controller) rememberView(view core.BrowsingView) {
	raw, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := c.settings.Set(store.KeyBrowsingView, string(raw)); err != nil {
		c.logger.Debug("Failed to persist browsing view", zap.Error(err))
	}
}

func (c *Controller) rememberVolume(percent int) {
	if err := c.settings.Set(store.KeyLastVolume, strconv.Itoa(percent)); err != nil {
		c.logger.Debug("Failed to persist volume", zap.Error(err))
	}
}
