package auth

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/Arunteja27/code-spa-sub000/internal/core"
	"github.com/Arunteja27/code-spa-sub000/internal/session"
	"github.com/Arunteja27/code-spa-sub000/internal/store"
)

type fakeExchanger struct {
	mu        sync.Mutex
	lastState string
	token     *oauth2.Token
	err       error
	exchanged []string
}

func (f *fakeExchanger) AuthCodeURL(state string, _ ...oauth2.AuthCodeOption) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastState = state
	return "https://accounts.example.com/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeExchanger) Exchange(_ context.Context, code string, _ ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanged = append(f.exchanged, code)
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

func (f *fakeExchanger) state() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastState
}

type fakeListener struct {
	mu      sync.Mutex
	results chan CallbackResult
	closed  bool
}

func newFakeListener() *fakeListener {
	return &fakeListener{results: make(chan CallbackResult, 1)}
}

func (f *fakeListener) Start(_ context.Context) (<-chan CallbackResult, error) {
	return f.results, nil
}

func (f *fakeListener) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeListener) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func testFlowConfig() core.SpotifyConfig {
	return core.SpotifyConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		CallbackPort: 8888,
		CallbackPath: "/callback",
		AuthTimeout:  200 * time.Millisecond,
	}
}

func newTestFlow(exchanger *fakeExchanger, listener *fakeListener) (*Flow, *session.Manager) {
	sessions := session.NewManager(store.NewMemoryStore(), zap.NewNop())
	flow := NewFlow(testFlowConfig(), exchanger, sessions, nil, nil, zap.NewNop())
	flow.SetListenerFactory(func() Listener { return listener })
	flow.SetURLOpener(func(string) error { return nil })
	return flow, sessions
}

func TestFlow_SuccessfulLogin(t *testing.T) {
	exchanger := &fakeExchanger{
		token: &oauth2.Token{AccessToken: "access-1", RefreshToken: "refresh-1"},
	}
	listener := newFakeListener()
	flow, sessions := newTestFlow(exchanger, listener)

	opened := make(chan string, 1)
	flow.SetURLOpener(func(u string) error {
		opened <- u
		return nil
	})

	go func() {
		<-opened
		listener.results <- CallbackResult{Code: "abc123", State: exchanger.state()}
	}()

	ok, err := flow.Initiate(context.Background())
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected login to complete")
	}

	if len(exchanger.exchanged) != 1 || exchanger.exchanged[0] != "abc123" {
		t.Errorf("Expected code abc123 to be exchanged, got %v", exchanger.exchanged)
	}
	if !sessions.Authenticated() {
		t.Error("Expected session to be established")
	}
	if got := sessions.AccessToken(); got != "access-1" {
		t.Errorf("Expected access token access-1, got %q", got)
	}
	if !listener.isClosed() {
		t.Error("Expected listener to be closed after the attempt")
	}
}

func TestFlow_DeniedIsNotAnError(t *testing.T) {
	exchanger := &fakeExchanger{}
	listener := newFakeListener()
	flow, sessions := newTestFlow(exchanger, listener)

	listener.results <- CallbackResult{Err: errors.New("access_denied")}

	ok, err := flow.Initiate(context.Background())
	if err != nil {
		t.Fatalf("Expected denial to report cleanly, got %v", err)
	}
	if ok {
		t.Error("Expected denied attempt to report not-logged-in")
	}
	if sessions.Authenticated() {
		t.Error("Expected no session after denial")
	}
	if len(exchanger.exchanged) != 0 {
		t.Errorf("Expected no code exchange after denial, got %v", exchanger.exchanged)
	}
}

func TestFlow_StateMismatchFailsWithoutExchange(t *testing.T) {
	exchanger := &fakeExchanger{}
	listener := newFakeListener()
	flow, _ := newTestFlow(exchanger, listener)

	listener.results <- CallbackResult{Code: "abc123", State: "forged-state"}

	ok, err := flow.Initiate(context.Background())
	if err == nil {
		t.Fatal("Expected state mismatch to fail")
	}
	if ok {
		t.Error("Expected no login on state mismatch")
	}
	if len(exchanger.exchanged) != 0 {
		t.Errorf("Expected no code exchange on state mismatch, got %v", exchanger.exchanged)
	}
}

func TestFlow_ExchangeFailure(t *testing.T) {
	exchanger := &fakeExchanger{err: errors.New("invalid_grant")}
	listener := newFakeListener()
	flow, sessions := newTestFlow(exchanger, listener)

	opened := make(chan struct{}, 1)
	flow.SetURLOpener(func(string) error {
		opened <- struct{}{}
		return nil
	})
	go func() {
		<-opened
		listener.results <- CallbackResult{Code: "abc123", State: exchanger.state()}
	}()

	ok, err := flow.Initiate(context.Background())
	if !errors.Is(err, core.ErrAuthExchangeFailed) {
		t.Errorf("Expected ErrAuthExchangeFailed, got %v", err)
	}
	if ok {
		t.Error("Expected no login on exchange failure")
	}
	if sessions.Authenticated() {
		t.Error("Expected no session on exchange failure")
	}
}

func TestFlow_TimeoutClosesListener(t *testing.T) {
	exchanger := &fakeExchanger{}
	listener := newFakeListener()
	flow, _ := newTestFlow(exchanger, listener)

	ok, err := flow.Initiate(context.Background())
	if err != nil {
		t.Fatalf("Expected timeout to report cleanly, got %v", err)
	}
	if ok {
		t.Error("Expected timed-out attempt to report not-logged-in")
	}
	if !listener.isClosed() {
		t.Error("Expected listener to be closed after timeout")
	}
}

func TestFlow_NotConfiguredOpensNoListener(t *testing.T) {
	listener := newFakeListener()
	sessions := session.NewManager(store.NewMemoryStore(), zap.NewNop())
	flow := NewFlow(core.SpotifyConfig{}, &fakeExchanger{}, sessions, nil, nil, zap.NewNop())

	factoryCalled := false
	flow.SetListenerFactory(func() Listener {
		factoryCalled = true
		return listener
	})

	ok, err := flow.Initiate(context.Background())
	if !errors.Is(err, core.ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
	if ok {
		t.Error("Expected no login without credentials")
	}
	if factoryCalled {
		t.Error("Expected no listener to be opened without credentials")
	}
}

func TestFlow_CancelEndsPendingAttempt(t *testing.T) {
	exchanger := &fakeExchanger{}
	listener := newFakeListener()
	flow, _ := newTestFlow(exchanger, listener)
	flow.cfg.AuthTimeout = 5 * time.Second

	result := make(chan bool, 1)
	go func() {
		ok, _ := flow.Initiate(context.Background())
		result <- ok
	}()

	// Let the attempt start before cancelling it.
	time.Sleep(50 * time.Millisecond)
	flow.Cancel()

	select {
	case ok := <-result:
		if ok {
			t.Error("Expected cancelled attempt to report not-logged-in")
		}
	case <-time.After(time.Second):
		t.Fatal("Cancelled attempt never returned")
	}

	if !listener.isClosed() {
		t.Error("Expected listener to be closed after cancel")
	}
}
