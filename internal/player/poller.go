package player

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Arunteja27/code-spa-sub000/internal/core"
)

// Poller samples the remote player on a repeating timer while a session is
// live, detects track completion, and triggers auto-advance. It exists only
// between authenticate and disconnect.
type Poller struct {
	remote  Remote
	events  core.Events
	metrics core.Metrics
	logger  *zap.Logger

	interval time.Duration
	endLead  time.Duration

	// advance is the auto-advance action, wired to Context.Advance(+1).
	advance func(ctx context.Context) error
	// seq reads the play generation so a stale response never overwrites a
	// just-issued optimistic update.
	seq func() uint64
	// observe lets the controller fold confirmed state back into Context.
	observe func(isPlaying bool)
	// onVolume fires when the observed volume changes.
	onVolume func(percent int)

	mu      sync.Mutex
	running bool
	baseCtx context.Context
	cancel  context.CancelFunc

	endTimer *time.Timer
	// advancedFor is the track ID an auto-advance already fired for, so the
	// threshold check and the one-shot timer can never double-fire.
	advancedFor string
	// announced is the track ID TrackChanged was last emitted for outside the
	// poll loop, so the next tick observing it does not announce it again.
	announced string

	busy atomic.Bool

	lastKnown struct {
		valid     bool
		isPlaying bool
		volume    int
		trackID   string
	}
}

func NewPoller(
	remote Remote,
	events core.Events,
	metrics core.Metrics,
	interval, endLead time.Duration,
	logger *zap.Logger,
) *Poller {
	if events == nil {
		events = core.NopEvents{}
	}
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &Poller{
		remote:   remote,
		events:   events,
		metrics:  metrics,
		interval: interval,
		endLead:  endLead,
		logger:   logger,
	}
}

// SetAdvance wires the auto-advance action.
func (p *Poller) SetAdvance(fn func(ctx context.Context) error) { p.advance = fn }

// SetSeq wires the play generation reader.
func (p *Poller) SetSeq(fn func() uint64) { p.seq = fn }

// SetObserve wires the confirmed-state callback.
func (p *Poller) SetObserve(fn func(isPlaying bool)) { p.observe = fn }

// SetOnVolume wires the volume-change callback.
func (p *Poller) SetOnVolume(fn func(percent int)) { p.onVolume = fn }

// Start moves the poller to Running. Idempotent.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.baseCtx, p.cancel = context.WithCancel(ctx)
	runCtx := p.baseCtx
	p.mu.Unlock()

	p.logger.Info("Playback poller started", zap.Duration("interval", p.interval))

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				p.tick(runCtx)
			}
		}
	}()
}

// Stop cancels the repeating timer and any pending track-end timer.
// Idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false
	p.cancel()
	p.cancelEndTimerLocked()
	p.lastKnown.valid = false
	p.announced = ""

	p.logger.Info("Playback poller stopped")
}

// tick samples remote state once. Errors are logged and swallowed so a
// transient failure never halts the loop.
func (p *Poller) tick(ctx context.Context) {
	// No overlapping ticks: if the prior request is still in flight, skip.
	if !p.busy.CompareAndSwap(false, true) {
		p.metrics.RecordPollTick("skipped_busy")
		return
	}
	defer p.busy.Store(false)

	var seqBefore uint64
	if p.seq != nil {
		seqBefore = p.seq()
	}

	state, err := p.remote.CurrentState(ctx)
	if err != nil {
		if errors.Is(err, core.ErrRateLimited) {
			p.metrics.RecordPollTick("rate_limited")
			return
		}
		p.metrics.RecordPollTick("error")
		p.logger.Debug("Poll tick failed", zap.Error(err))
		return
	}

	if p.seq != nil && p.seq() != seqBefore {
		// A play action landed while this request was in flight; its
		// optimistic state outranks this stale sample.
		p.metrics.RecordPollTick("stale")
		return
	}

	if state == nil {
		p.metrics.RecordPollTick("idle")
		return
	}

	p.metrics.RecordPollTick("ok")
	p.apply(ctx, state)
}

func (p *Poller) apply(ctx context.Context, state *core.PlaybackState) {
	p.mu.Lock()
	changed := !p.lastKnown.valid ||
		state.IsPlaying != p.lastKnown.isPlaying ||
		state.VolumePercent != p.lastKnown.volume
	volumeChanged := p.lastKnown.valid && state.VolumePercent != p.lastKnown.volume

	trackID := ""
	if state.Track != nil {
		trackID = state.Track.ID
	}
	newTrack := trackID != "" && trackID != p.lastKnown.trackID
	alreadyAnnounced := newTrack && trackID == p.announced
	if newTrack {
		p.advancedFor = ""
	}

	p.lastKnown.valid = true
	p.lastKnown.isPlaying = state.IsPlaying
	p.lastKnown.volume = state.VolumePercent
	p.lastKnown.trackID = trackID
	p.mu.Unlock()

	if p.observe != nil {
		p.observe(state.IsPlaying)
	}
	if volumeChanged && p.onVolume != nil {
		p.onVolume(state.VolumePercent)
	}

	if newTrack && !alreadyAnnounced {
		p.events.TrackChanged(*state.Track)
		// A track the remote started on its own still deserves an end timer.
		p.ScheduleTrackEnd(*state.Track, state.ProgressMs)
	}

	if changed {
		update := core.PlaybackUpdate{
			IsPlaying:  state.IsPlaying,
			ProgressMs: state.ProgressMs,
			Track:      state.Track,
		}
		if state.Track != nil {
			update.DurationMs = state.Track.DurationMs
		}
		p.events.PlaybackStateUpdate(update)
	}

	p.detectTrackEnd(ctx, state)
}

// detectTrackEnd is the pull-based half of completion detection: a stopped
// player sitting within the end lead of the track's duration means the
// track finished.
func (p *Poller) detectTrackEnd(ctx context.Context, state *core.PlaybackState) {
	if state.Track == nil || state.IsPlaying {
		return
	}
	leadMs := int(p.endLead.Milliseconds())
	if state.ProgressMs < state.Track.DurationMs-leadMs {
		return
	}
	p.autoAdvance(ctx, state.Track.ID)
}

// ScheduleTrackEnd is the push-based half: a one-shot timer armed on every
// play, cancelled and re-armed whenever a new track starts, so a stale
// timer from the previous track can never double-fire.
func (p *Poller) ScheduleTrackEnd(track core.Track, progressMs int) {
	remaining := time.Duration(track.DurationMs-progressMs)*time.Millisecond - p.endLead
	if remaining < 0 {
		remaining = 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// The caller has already emitted TrackChanged for this track.
	p.announced = track.ID

	if !p.running {
		return
	}
	p.cancelEndTimerLocked()
	// A fresh play re-arms advancement even for a repeated track.
	p.advancedFor = ""

	trackID := track.ID
	runCtx := p.baseCtx
	p.endTimer = time.AfterFunc(remaining, func() {
		p.autoAdvance(runCtx, trackID)
	})

	p.logger.Debug("Track-end timer scheduled",
		zap.String("track", track.Name),
		zap.Duration("fireIn", remaining))
}

// CancelTrackEnd drops any pending end timer. Idempotent.
func (p *Poller) CancelTrackEnd() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelEndTimerLocked()
}

func (p *Poller) cancelEndTimerLocked() {
	if p.endTimer != nil {
		p.endTimer.Stop()
		p.endTimer = nil
	}
}

// autoAdvance fires at most once per track, whichever detection half gets
// there first.
func (p *Poller) autoAdvance(ctx context.Context, trackID string) {
	p.mu.Lock()
	if !p.running || p.advancedFor == trackID {
		p.mu.Unlock()
		return
	}
	p.advancedFor = trackID
	advance := p.advance
	p.mu.Unlock()

	if advance == nil {
		return
	}

	p.metrics.RecordAutoAdvance()
	p.logger.Info("Track finished, auto-advancing", zap.String("trackID", trackID))

	if err := advance(ctx); err != nil {
		p.logger.Warn("Auto-advance failed", zap.Error(err))
	}
}
