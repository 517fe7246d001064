package player

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Arunteja27/code-spa-sub000/internal/core"
)

type recordingEvents struct {
	mu       sync.Mutex
	updates  []core.PlaybackUpdate
	tracks   []core.Track
	statuses []core.ConnectionStatus
}

func (e *recordingEvents) PlaybackStateUpdate(update core.PlaybackUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updates = append(e.updates, update)
}

func (e *recordingEvents) TrackChanged(track core.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracks = append(e.tracks, track)
}

func (e *recordingEvents) ConnectionStatusChanged(status core.ConnectionStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statuses = append(e.statuses, status)
}

func (e *recordingEvents) updateCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.updates)
}

func (e *recordingEvents) trackCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tracks)
}

type advanceCounter struct {
	mu    sync.Mutex
	calls int
}

func (a *advanceCounter) fn(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return nil
}

func (a *advanceCounter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func playingState(trackID string, progressMs int, isPlaying bool) *core.PlaybackState {
	return &core.PlaybackState{
		IsPlaying:     isPlaying,
		ProgressMs:    progressMs,
		VolumePercent: 50,
		Track: &core.Track{
			ID:         trackID,
			Name:       "Track " + trackID,
			URI:        "spotify:track:" + trackID,
			DurationMs: 60000,
		},
	}
}

// newTestPoller starts a poller with an interval long enough that the
// ticker never fires on its own; tests drive ticks by hand.
func newTestPoller(t *testing.T, remote *mockRemote, events core.Events) *Poller {
	t.Helper()
	p := NewPoller(remote, events, nil, time.Hour, 2*time.Second, zap.NewNop())
	p.Start(context.Background())
	t.Cleanup(p.Stop)
	return p
}

func TestPoller_EmitsOnChangeOnly(t *testing.T) {
	remote := &mockRemote{}
	state := playingState("t1", 1000, true)
	remote.stateFn = func(context.Context) (*core.PlaybackState, error) { return state, nil }

	events := &recordingEvents{}
	p := newTestPoller(t, remote, events)
	ctx := context.Background()

	p.tick(ctx)
	if events.trackCount() != 1 {
		t.Fatalf("Expected one TrackChanged, got %d", events.trackCount())
	}
	if events.updateCount() != 1 {
		t.Fatalf("Expected one PlaybackStateUpdate, got %d", events.updateCount())
	}

	// The same sample again changes nothing.
	p.tick(ctx)
	if events.trackCount() != 1 || events.updateCount() != 1 {
		t.Errorf("Expected no events for an unchanged sample, got tracks=%d updates=%d",
			events.trackCount(), events.updateCount())
	}

	// Pausing is a change.
	state = playingState("t1", 30000, false)
	p.tick(ctx)
	if events.updateCount() != 2 {
		t.Errorf("Expected a state update on pause, got %d", events.updateCount())
	}
	if events.trackCount() != 1 {
		t.Errorf("Expected no TrackChanged on pause, got %d", events.trackCount())
	}
}

func TestPoller_TrackEndAdvancesExactlyOnce(t *testing.T) {
	remote := &mockRemote{}
	// Stopped within the end lead of the duration: the track finished.
	state := playingState("t1", 59000, false)
	remote.stateFn = func(context.Context) (*core.PlaybackState, error) { return state, nil }

	adv := &advanceCounter{}
	p := newTestPoller(t, remote, &recordingEvents{})
	p.SetAdvance(adv.fn)
	ctx := context.Background()

	p.tick(ctx)
	p.tick(ctx)
	p.tick(ctx)

	if adv.count() != 1 {
		t.Errorf("Expected exactly one auto-advance, got %d", adv.count())
	}
}

func TestPoller_PausedMidTrackDoesNotAdvance(t *testing.T) {
	remote := &mockRemote{}
	state := playingState("t1", 30000, false)
	remote.stateFn = func(context.Context) (*core.PlaybackState, error) { return state, nil }

	adv := &advanceCounter{}
	p := newTestPoller(t, remote, &recordingEvents{})
	p.SetAdvance(adv.fn)

	p.tick(context.Background())

	if adv.count() != 0 {
		t.Errorf("Expected no advance for a mid-track pause, got %d", adv.count())
	}
}

func TestPoller_ScheduledTimerAdvancesOnce(t *testing.T) {
	remote := &mockRemote{}
	adv := &advanceCounter{}

	p := NewPoller(remote, &recordingEvents{}, nil, time.Hour, 0, zap.NewNop())
	p.Start(context.Background())
	defer p.Stop()
	p.SetAdvance(adv.fn)

	track := core.Track{ID: "t1", Name: "One", URI: "spotify:track:t1", DurationMs: 30}
	p.ScheduleTrackEnd(track, 0)

	deadline := time.After(time.Second)
	for adv.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("Track-end timer never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}

	time.Sleep(50 * time.Millisecond)
	if adv.count() != 1 {
		t.Errorf("Expected the timer to fire once, got %d", adv.count())
	}
}

func TestPoller_NewPlaySupersedesPendingTimer(t *testing.T) {
	remote := &mockRemote{}
	adv := &advanceCounter{}

	p := NewPoller(remote, &recordingEvents{}, nil, time.Hour, 0, zap.NewNop())
	p.Start(context.Background())
	defer p.Stop()
	p.SetAdvance(adv.fn)

	long := core.Track{ID: "t1", Name: "One", URI: "spotify:track:t1", DurationMs: 40}
	short := core.Track{ID: "t2", Name: "Two", URI: "spotify:track:t2", DurationMs: 30}
	p.ScheduleTrackEnd(long, 0)
	p.ScheduleTrackEnd(short, 0)

	time.Sleep(200 * time.Millisecond)
	if adv.count() != 1 {
		t.Errorf("Expected only the superseding timer to fire, got %d", adv.count())
	}
}

func TestPoller_ObservingAnAnnouncedPlayEmitsNoDuplicate(t *testing.T) {
	remote := &mockRemote{}
	state := playingState("t1", 1000, true)
	remote.stateFn = func(context.Context) (*core.PlaybackState, error) { return state, nil }

	events := &recordingEvents{}
	p := newTestPoller(t, remote, events)
	ctx := context.Background()

	// A user-initiated play announces the track itself and arms the end
	// timer through this call.
	p.ScheduleTrackEnd(*state.Track, 0)

	p.tick(ctx)
	if events.trackCount() != 0 {
		t.Fatalf("Expected no second TrackChanged for an announced play, got %d", events.trackCount())
	}
	if events.updateCount() != 1 {
		t.Errorf("Expected the state update to still emit, got %d", events.updateCount())
	}

	// A track the remote switched to on its own is still announced.
	remote.stateFn = func(context.Context) (*core.PlaybackState, error) {
		return playingState("t2", 0, true), nil
	}

	p.tick(ctx)
	if events.trackCount() != 1 {
		t.Errorf("Expected a remote-started track to be announced once, got %d", events.trackCount())
	}
}

func TestPoller_StaleSampleIsDiscarded(t *testing.T) {
	remote := &mockRemote{}
	state := playingState("t1", 1000, true)

	var seq uint64
	remote.stateFn = func(context.Context) (*core.PlaybackState, error) {
		// A play action lands while the request is in flight.
		seq++
		return state, nil
	}

	observed := 0
	events := &recordingEvents{}
	p := newTestPoller(t, remote, events)
	p.SetSeq(func() uint64 { return seq })
	p.SetObserve(func(bool) { observed++ })

	p.tick(context.Background())

	if observed != 0 {
		t.Error("Expected stale sample not to reach the observer")
	}
	if events.updateCount() != 0 || events.trackCount() != 0 {
		t.Error("Expected stale sample to emit no events")
	}
}

func TestPoller_BusySkipsOverlappingTick(t *testing.T) {
	remote := &mockRemote{}
	release := make(chan struct{})
	entered := make(chan struct{})
	remote.stateFn = func(context.Context) (*core.PlaybackState, error) {
		entered <- struct{}{}
		<-release
		return nil, nil
	}

	p := newTestPoller(t, remote, &recordingEvents{})
	ctx := context.Background()

	go p.tick(ctx)
	<-entered

	// While the first request is in flight, further ticks bail out.
	p.tick(ctx)
	p.tick(ctx)
	close(release)

	// Give the first tick a moment to finish.
	time.Sleep(50 * time.Millisecond)

	remote.mu.Lock()
	calls := remote.stateCalls
	remote.mu.Unlock()
	if calls != 1 {
		t.Errorf("Expected one in-flight request, got %d", calls)
	}
}

func TestPoller_VolumeChangeFiresHook(t *testing.T) {
	remote := &mockRemote{}
	state := playingState("t1", 1000, true)
	remote.stateFn = func(context.Context) (*core.PlaybackState, error) { return state, nil }

	var volumes []int
	p := newTestPoller(t, remote, &recordingEvents{})
	p.SetOnVolume(func(percent int) { volumes = append(volumes, percent) })
	ctx := context.Background()

	// The first sample establishes the baseline without firing.
	p.tick(ctx)
	if len(volumes) != 0 {
		t.Fatalf("Expected no volume hook on the first sample, got %v", volumes)
	}

	state = playingState("t1", 2000, true)
	state.VolumePercent = 80
	p.tick(ctx)

	if len(volumes) != 1 || volumes[0] != 80 {
		t.Errorf("Expected one volume change to 80, got %v", volumes)
	}
}

func TestPoller_StopIsIdempotentAndCancelsTimer(t *testing.T) {
	remote := &mockRemote{}
	adv := &advanceCounter{}

	p := NewPoller(remote, &recordingEvents{}, nil, time.Hour, 0, zap.NewNop())
	p.Start(context.Background())
	p.SetAdvance(adv.fn)

	track := core.Track{ID: "t1", Name: "One", URI: "spotify:track:t1", DurationMs: 50}
	p.ScheduleTrackEnd(track, 0)

	p.Stop()
	p.Stop()

	time.Sleep(200 * time.Millisecond)
	if adv.count() != 0 {
		t.Errorf("Expected no advance after stop, got %d", adv.count())
	}
}
