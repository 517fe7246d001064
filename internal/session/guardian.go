package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Arunteja27/code-spa-sub000/internal/core"
)

// Refresher exchanges a refresh token for a fresh access token and,
// optionally, a rotated refresh token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (accessToken, refreshToken2 string, err error)
}

// Guardian wraps authenticated calls with the token health guarantee: any
// call that comes back 401 gets exactly one refresh and one retry. A second
// 401 demotes the session.
type Guardian struct {
	sessions  *Manager
	refresher Refresher
	group     singleflight.Group
	logger    *zap.Logger
	metrics   core.Metrics
}

func NewGuardian(sessions *Manager, refresher Refresher, metrics core.Metrics, logger *zap.Logger) *Guardian {
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &Guardian{
		sessions:  sessions,
		refresher: refresher,
		logger:    logger,
		metrics:   metrics,
	}
}

// Do runs fn, refreshing and retrying once if the remote answered 401.
func (g *Guardian) Do(ctx context.Context, fn func(context.Context) error) error {
	err := fn(ctx)
	if !core.IsUnauthorized(err) {
		return err
	}

	g.logger.Debug("Remote call unauthorized, refreshing token")
	if refreshErr := g.Refresh(ctx); refreshErr != nil {
		return refreshErr
	}

	err = fn(ctx)
	if core.IsUnauthorized(err) {
		// Fresh token still rejected: the session is dead, not stale.
		g.demote("call unauthorized after refresh")
		return fmt.Errorf("retried call still unauthorized: %w", core.ErrRefreshFailed)
	}
	return err
}

// Validate issues one lightweight authenticated probe under the retry-once
// policy. Used at startup to decide whether a restored session is usable.
func (g *Guardian) Validate(ctx context.Context, probe func(context.Context) error) error {
	if !g.sessions.Authenticated() {
		return core.ErrNotAuthenticated
	}
	return g.Do(ctx, probe)
}

// Refresh performs a single-flight token refresh: concurrent callers share
// one in-flight exchange instead of racing the token endpoint.
func (g *Guardian) Refresh(ctx context.Context) error {
	_, err, shared := g.group.Do("refresh", func() (interface{}, error) {
		return nil, g.refreshOnce(ctx)
	})
	if shared {
		g.logger.Debug("Joined in-flight token refresh")
	}
	return err
}

func (g *Guardian) refreshOnce(ctx context.Context) error {
	refreshToken := g.sessions.Snapshot().RefreshToken
	if refreshToken == "" {
		g.demote("no refresh token available")
		return core.ErrRefreshFailed
	}

	access, rotated, err := g.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		g.metrics.RecordTokenRefresh("failure")
		g.demote("refresh exchange failed")
		return fmt.Errorf("%w: %v", core.ErrRefreshFailed, err)
	}

	if err := g.sessions.UpdateTokens(access, rotated); err != nil {
		// Session was cleared while the refresh was in flight; the new
		// tokens belong to nobody.
		g.metrics.RecordTokenRefresh("discarded")
		return err
	}

	g.metrics.RecordTokenRefresh("success")
	g.logger.Info("Access token refreshed", zap.Bool("refreshTokenRotated", rotated != ""))
	return nil
}

func (g *Guardian) demote(reason string) {
	if !g.sessions.Authenticated() {
		return
	}
	g.logger.Warn("Demoting session to unauthenticated", zap.String("reason", reason))
	g.sessions.Clear()
	g.metrics.SetSessionActive(false)
}
