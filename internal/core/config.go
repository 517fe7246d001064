package core

import (
	"fmt"
	"time"
)

type Config struct {
	Spotify SpotifyConfig
	Player  PlayerConfig
	Server  ServerConfig
	Store   StoreConfig
	Log     LogConfig
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	CallbackPort int
	CallbackPath string
	// AuthTimeout bounds how long an auth attempt waits for the callback.
	AuthTimeout time.Duration
	// RequestsPerSecond is the client-side ceiling on outgoing API calls.
	RequestsPerSecond float64
	// RateLimitCooldown is the back-off applied on a 429 without a Retry-After header.
	RateLimitCooldown time.Duration
	// TransferSettle is the wait between transferring playback to a device
	// and issuing the first play call against it.
	TransferSettle time.Duration
}

// RedirectURL returns the loopback redirect the authorize URL points at.
func (c SpotifyConfig) RedirectURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", c.CallbackPort, c.CallbackPath)
}

// Configured reports whether client credentials are present.
func (c SpotifyConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type PlayerConfig struct {
	PollInterval time.Duration
	// TrackEndLead is how far before the track's end the poller treats a
	// stopped player as "track finished" and auto-advances.
	TrackEndLead time.Duration
	// CollectionTTL bounds how long fetched collections are served from cache.
	CollectionTTL time.Duration
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type StoreConfig struct {
	Path string
}

type LogConfig struct {
	Level string
}

func DefaultConfig() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			CallbackPort:      8888,
			CallbackPath:      "/callback",
			AuthTimeout:       120 * time.Second,
			RequestsPerSecond: 5,
			RateLimitCooldown: 30 * time.Second,
			TransferSettle:    time.Second,
		},
		Player: PlayerConfig{
			PollInterval:  2 * time.Second,
			TrackEndLead:  2 * time.Second,
			CollectionTTL: 5 * time.Minute,
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8037,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Path: "./codespa.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
