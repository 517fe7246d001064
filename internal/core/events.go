package core

import (
	"go.uber.org/zap"
)

// Events is the outbound surface consumed by the UI layer. The core never
// renders anything; it only reports what changed.
type Events interface {
	PlaybackStateUpdate(update PlaybackUpdate)
	TrackChanged(track Track)
	ConnectionStatusChanged(status ConnectionStatus)
}

// LogEvents is an Events sink that writes every event to the log. Used when
// no UI is attached, and as the default sink in the daemon.
type LogEvents struct {
	logger *zap.Logger
}

func NewLogEvents(logger *zap.Logger) *LogEvents {
	return &LogEvents{logger: logger}
}

func (e *LogEvents) PlaybackStateUpdate(update PlaybackUpdate) {
	fields := []zap.Field{
		zap.Bool("isPlaying", update.IsPlaying),
		zap.Int("progressMs", update.ProgressMs),
		zap.Int("durationMs", update.DurationMs),
	}
	if update.Track != nil {
		fields = append(fields, zap.String("track", update.Track.Name))
	}
	e.logger.Debug("Playback state update", fields...)
}

func (e *LogEvents) TrackChanged(track Track) {
	e.logger.Info("Track changed",
		zap.String("track", track.Name),
		zap.String("artist", track.Artist))
}

func (e *LogEvents) ConnectionStatusChanged(status ConnectionStatus) {
	e.logger.Info("Connection status changed", zap.String("status", string(status)))
}

// NopEvents discards all events.
type NopEvents struct{}

func (NopEvents) PlaybackStateUpdate(PlaybackUpdate)       {}
func (NopEvents) TrackChanged(Track)                       {}
func (NopEvents) ConnectionStatusChanged(ConnectionStatus) {}
