package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Arunteja27/code-spa-sub000/internal/core"
	"github.com/Arunteja27/code-spa-sub000/internal/session"
)

const apiBase = "https://api.spotify.com/v1"

// Facade exposes the typed playback operations. Player endpoints are called
// over raw HTTP because the 429/403 handling needs header-level access the
// generated client does not expose.
type Facade struct {
	http     *http.Client
	guardian *session.Guardian
	limits   *RateLimit
	limiter  *rate.Limiter
	metrics  core.Metrics
	logger   *zap.Logger

	baseURL string
	settle  time.Duration
	// sleep is swapped out in tests so the transfer settle delay is instant.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewFacade(
	cfg core.SpotifyConfig,
	httpClient *http.Client,
	guardian *session.Guardian,
	limits *RateLimit,
	metrics core.Metrics,
	logger *zap.Logger,
) *Facade {
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &Facade{
		http:     httpClient,
		guardian: guardian,
		limits:   limits,
		limiter:  rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		metrics:  metrics,
		logger:   logger,
		baseURL:  apiBase,
		settle:   cfg.TransferSettle,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SetBaseURL points the facade at a test server.
func (f *Facade) SetBaseURL(base string) {
	f.baseURL = base
}

// PlayTrack starts playback of uri, resolving a target device first. When
// no device is active, playback is transferred to the first non-restricted
// device and the play call waits out the settle delay; an immediate play
// after a transfer is routinely rejected by the remote.
func (f *Facade) PlayTrack(ctx context.Context, uri string) error {
	if err := f.gate(); err != nil {
		return err
	}
	return f.guardian.Do(ctx, func(ctx context.Context) error {
		deviceID, err := f.resolveDevice(ctx)
		if err != nil {
			return err
		}

		query := url.Values{}
		if deviceID != "" {
			query.Set("device_id", deviceID)
		}
		body := map[string]any{"uris": []string{uri}}
		return f.call(ctx, http.MethodPut, "/me/player/play", query, body, nil)
	})
}

func (f *Facade) Pause(ctx context.Context) error {
	if err := f.gate(); err != nil {
		return err
	}
	return f.guardian.Do(ctx, func(ctx context.Context) error {
		return f.call(ctx, http.MethodPut, "/me/player/pause", nil, nil, nil)
	})
}

func (f *Facade) Resume(ctx context.Context) error {
	if err := f.gate(); err != nil {
		return err
	}
	return f.guardian.Do(ctx, func(ctx context.Context) error {
		return f.call(ctx, http.MethodPut, "/me/player/play", nil, nil, nil)
	})
}

func (f *Facade) SkipNext(ctx context.Context) error {
	if err := f.gate(); err != nil {
		return err
	}
	return f.guardian.Do(ctx, func(ctx context.Context) error {
		return f.call(ctx, http.MethodPost, "/me/player/next", nil, nil, nil)
	})
}

func (f *Facade) SkipPrevious(ctx context.Context) error {
	if err := f.gate(); err != nil {
		return err
	}
	return f.guardian.Do(ctx, func(ctx context.Context) error {
		return f.call(ctx, http.MethodPost, "/me/player/previous", nil, nil, nil)
	})
}

func (f *Facade) Seek(ctx context.Context, positionMs int) error {
	if err := f.gate(); err != nil {
		return err
	}
	return f.guardian.Do(ctx, func(ctx context.Context) error {
		query := url.Values{}
		query.Set("position_ms", strconv.Itoa(positionMs))
		return f.call(ctx, http.MethodPut, "/me/player/seek", query, nil, nil)
	})
}

func (f *Facade) Devices(ctx context.Context) ([]core.Device, error) {
	if err := f.gate(); err != nil {
		return nil, err
	}
	var devices []core.Device
	err := f.guardian.Do(ctx, func(ctx context.Context) error {
		var resp devicesResponse
		if err := f.call(ctx, http.MethodGet, "/me/player/devices", nil, nil, &resp); err != nil {
			return err
		}
		devices = resp.toDevices()
		return nil
	})
	return devices, err
}

// CurrentState samples the remote player. A 204 means no active playback
// and yields (nil, nil).
func (f *Facade) CurrentState(ctx context.Context) (*core.PlaybackState, error) {
	if err := f.gate(); err != nil {
		return nil, err
	}
	var state *core.PlaybackState
	err := f.guardian.Do(ctx, func(ctx context.Context) error {
		var resp playerStateResponse
		found, err := f.callMaybe(ctx, http.MethodGet, "/me/player", nil, &resp)
		if err != nil {
			return err
		}
		if !found {
			state = nil
			return nil
		}
		state = resp.toState()
		return nil
	})
	return state, err
}

// gate short-circuits with RateLimited while the cool-down window is open.
// No network I/O happens behind a closed gate.
func (f *Facade) gate() error {
	if remaining, blocked := f.limits.Blocked(); blocked {
		f.metrics.RecordRateLimited()
		return &core.RateLimitedError{RetryAfter: remaining}
	}
	return nil
}

// resolveDevice picks the playback target: the active device when one
// exists, otherwise the first non-restricted device after transferring
// playback to it and waiting out the settle delay.
func (f *Facade) resolveDevice(ctx context.Context) (string, error) {
	var resp devicesResponse
	if err := f.call(ctx, http.MethodGet, "/me/player/devices", nil, nil, &resp); err != nil {
		return "", err
	}

	devices := resp.toDevices()
	if len(devices) == 0 {
		return "", core.ErrNoDeviceFound
	}

	for _, d := range devices {
		if d.Active {
			return d.ID, nil
		}
	}

	var target *core.Device
	for i := range devices {
		if !devices[i].Restricted {
			target = &devices[i]
			break
		}
	}
	if target == nil {
		return "", core.ErrNoDeviceFound
	}

	f.logger.Info("No active device, transferring playback",
		zap.String("device", target.Name))

	transfer := map[string]any{"device_ids": []string{target.ID}, "play": false}
	if err := f.call(ctx, http.MethodPut, "/me/player", nil, transfer, nil); err != nil {
		return "", err
	}

	if err := f.sleep(ctx, f.settle); err != nil {
		return "", err
	}
	return target.ID, nil
}

func (f *Facade) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	_, err := f.request(ctx, method, path, query, body, out)
	return err
}

// callMaybe is call for endpoints where 204 is a meaningful "nothing there".
func (f *Facade) callMaybe(ctx context.Context, method, path string, query url.Values, out any) (bool, error) {
	return f.request(ctx, method, path, query, nil, out)
}

func (f *Facade) request(ctx context.Context, method, path string, query url.Values, body, out any) (bool, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return false, err
	}

	endpoint := f.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return false, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.http.Do(req)
	if err != nil {
		f.metrics.RecordAPIRequest(path, "network_error")
		return false, fmt.Errorf("network error calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	f.metrics.RecordAPIRequest(path, strconv.Itoa(resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return false, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return false, fmt.Errorf("failed to decode %s response: %w", path, err)
			}
		} else {
			_, _ = io.Copy(io.Discard, resp.Body)
		}
		return true, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		applied := f.limits.BlockFromHeader(resp.Header.Get("Retry-After"))
		f.metrics.RecordRateLimited()
		f.logger.Warn("Rate limited by remote API",
			zap.String("endpoint", path),
			zap.Duration("cooldown", applied))
		return false, &core.RateLimitedError{RetryAfter: applied}

	case resp.StatusCode == http.StatusForbidden:
		// Playback control is restricted to premium accounts.
		return false, fmt.Errorf("%w: %s", core.ErrPremiumRequired, path)

	default:
		return false, &core.APIError{
			Endpoint: path,
			Status:   resp.StatusCode,
			Message:  readErrorMessage(resp.Body),
		}
	}
}

func readErrorMessage(body io.Reader) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return ""
	}
	return payload.Error.Message
}
