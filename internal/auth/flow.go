package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/Arunteja27/code-spa-sub000/internal/core"
	"github.com/Arunteja27/code-spa-sub000/internal/session"
)

// Exchanger trades an authorization code for tokens. *oauth2.Config
// satisfies it; tests substitute a fake.
type Exchanger interface {
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
}

// ProfileFunc fetches the user profile with a freshly minted access token,
// before the session exists.
type ProfileFunc func(ctx context.Context, accessToken string) (*core.UserProfile, error)

// Flow drives one authorization-code attempt end to end: authorize URL,
// loopback callback, code exchange, profile fetch, session persist. At most
// one attempt is in flight; a new Initiate cancels and replaces the prior
// listener.
type Flow struct {
	cfg      core.SpotifyConfig
	oauth    Exchanger
	sessions *session.Manager
	profile  ProfileFunc
	metrics  core.Metrics
	logger   *zap.Logger

	// newListener builds a fresh listener per attempt. Tests inject an
	// in-memory fake here.
	newListener func() Listener
	openURL     func(url string) error

	mu       sync.Mutex
	active   Listener
	cancelFn context.CancelFunc
}

func NewFlow(
	cfg core.SpotifyConfig,
	oauth Exchanger,
	sessions *session.Manager,
	profile ProfileFunc,
	metrics core.Metrics,
	logger *zap.Logger,
) *Flow {
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	f := &Flow{
		cfg:      cfg,
		oauth:    oauth,
		sessions: sessions,
		profile:  profile,
		metrics:  metrics,
		logger:   logger,
		openURL:  OpenBrowser,
	}
	f.newListener = func() Listener {
		return NewLoopbackListener(cfg.CallbackPort, cfg.CallbackPath, logger.Named("listener"))
	}
	return f
}

// SetListenerFactory overrides how listeners are built. Test hook.
func (f *Flow) SetListenerFactory(factory func() Listener) {
	f.newListener = factory
}

// SetURLOpener overrides how the authorize URL is opened. Test hook.
func (f *Flow) SetURLOpener(open func(url string) error) {
	f.openURL = open
}

// Initiate runs one auth attempt. It returns (true, nil) on a completed
// login, (false, nil) when the user denied or the callback never arrived,
// and (false, err) on configuration or exchange failures.
func (f *Flow) Initiate(ctx context.Context) (bool, error) {
	if !f.cfg.Configured() {
		// No listener is opened in this case.
		return false, core.ErrNotConfigured
	}

	attemptCtx, listener := f.beginAttempt(ctx)
	defer f.endAttempt(listener)

	results, err := listener.Start(attemptCtx)
	if err != nil {
		return false, fmt.Errorf("failed to start callback listener: %w", err)
	}

	state := uuid.NewString()
	authURL := f.oauth.AuthCodeURL(state)
	if openErr := f.openURL(authURL); openErr != nil {
		// Still waiting on the callback: the user may open the URL manually.
		f.logger.Warn("Failed to open browser for authorization",
			zap.String("url", authURL), zap.Error(openErr))
	}

	timer := time.NewTimer(f.cfg.AuthTimeout)
	defer timer.Stop()

	select {
	case <-attemptCtx.Done():
		f.logger.Info("Auth attempt cancelled")
		f.metrics.RecordAuthAttempt("cancelled")
		return false, nil

	case <-timer.C:
		// No callback arrived; close the listener rather than leak the socket.
		f.logger.Warn("Auth attempt timed out waiting for callback",
			zap.Duration("timeout", f.cfg.AuthTimeout))
		f.metrics.RecordAuthAttempt("timeout")
		return false, nil

	case result, ok := <-results:
		if !ok {
			return false, nil
		}
		return f.completeAttempt(attemptCtx, state, result)
	}
}

func (f *Flow) completeAttempt(ctx context.Context, state string, result CallbackResult) (bool, error) {
	if result.Err != nil {
		f.logger.Warn("Authorization denied by user", zap.Error(result.Err))
		f.metrics.RecordAuthAttempt("denied")
		return false, nil
	}

	if result.State != state {
		f.metrics.RecordAuthAttempt("state_mismatch")
		return false, fmt.Errorf("callback state mismatch")
	}

	token, err := f.oauth.Exchange(ctx, result.Code)
	if err != nil {
		f.metrics.RecordAuthAttempt("exchange_failed")
		return false, fmt.Errorf("%w: %v", core.ErrAuthExchangeFailed, err)
	}

	var user *core.UserProfile
	if f.profile != nil {
		if user, err = f.profile(ctx, token.AccessToken); err != nil {
			// Tokens are good; a missing display name is not worth failing login over.
			f.logger.Warn("Failed to fetch user profile after login", zap.Error(err))
			user = nil
		}
	}

	if err := f.sessions.Establish(token.AccessToken, token.RefreshToken, user); err != nil {
		return false, fmt.Errorf("failed to persist session: %w", err)
	}

	f.metrics.RecordAuthAttempt("success")
	f.metrics.SetSessionActive(true)
	if user != nil {
		f.logger.Info("Authenticated successfully", zap.String("user", user.DisplayName))
	} else {
		f.logger.Info("Authenticated successfully")
	}
	return true, nil
}

// beginAttempt cancels any prior attempt and registers a new one.
func (f *Flow) beginAttempt(ctx context.Context) (context.Context, Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancelFn != nil {
		f.logger.Info("Replacing in-flight auth attempt")
		f.cancelFn()
		if f.active != nil {
			_ = f.active.Close()
		}
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	listener := f.newListener()
	f.cancelFn = cancel
	f.active = listener
	return attemptCtx, listener
}

func (f *Flow) endAttempt(listener Listener) {
	_ = listener.Close()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == listener {
		f.active = nil
		if f.cancelFn != nil {
			f.cancelFn()
			f.cancelFn = nil
		}
	}
}

// Cancel closes any still-open listener and cancels the pending attempt.
// Idempotent; called from disconnect.
func (f *Flow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancelFn != nil {
		f.cancelFn()
		f.cancelFn = nil
	}
	if f.active != nil {
		_ = f.active.Close()
		f.active = nil
	}
}
