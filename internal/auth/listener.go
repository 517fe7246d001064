package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CallbackResult is what the redirect delivered: either an authorization
// code (with the echoed state) or the provider's error.
type CallbackResult struct {
	Code  string
	State string
	Err   error
}

// Listener receives the OAuth redirect. The loopback implementation binds a
// real socket; tests substitute an in-memory fake that delivers a result
// without any networking.
type Listener interface {
	// Start begins accepting the callback and returns a channel that
	// delivers exactly one result.
	Start(ctx context.Context) (<-chan CallbackResult, error)
	// Close stops the listener. Idempotent.
	Close() error
}

// LoopbackListener is a short-lived local HTTP server bound to a fixed
// loopback port, alive only for the duration of one auth attempt.
type LoopbackListener struct {
	port   int
	path   string
	logger *zap.Logger

	mu      sync.Mutex
	server  *http.Server
	results chan CallbackResult
	once    sync.Once
	closed  bool
}

func NewLoopbackListener(port int, path string, logger *zap.Logger) *LoopbackListener {
	return &LoopbackListener{
		port:    port,
		path:    path,
		logger:  logger,
		results: make(chan CallbackResult, 1),
	}
}

func (l *LoopbackListener) Start(ctx context.Context) (<-chan CallbackResult, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", l.port))
	if err != nil {
		return nil, fmt.Errorf("failed to bind callback port %d: %w", l.port, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(l.path, l.handleCallback)

	server := &http.Server{
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	l.mu.Lock()
	l.server = server
	l.mu.Unlock()

	go func() {
		if serveErr := server.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			l.logger.Warn("Callback listener stopped unexpectedly", zap.Error(serveErr))
		}
	}()

	go func() {
		<-ctx.Done()
		if closeErr := l.Close(); closeErr != nil {
			l.logger.Debug("Callback listener close after cancel", zap.Error(closeErr))
		}
	}()

	l.logger.Debug("Callback listener started",
		zap.Int("port", l.port),
		zap.String("path", l.path))
	return l.results, nil
}

func (l *LoopbackListener) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		l.deliver(CallbackResult{Err: fmt.Errorf("authorization denied: %s", errParam)})
		writePage(w, http.StatusOK, deniedPage)
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	l.deliver(CallbackResult{Code: code, State: query.Get("state")})
	writePage(w, http.StatusOK, successPage)
}

// deliver sends the result exactly once; a second redirect hit is ignored.
func (l *LoopbackListener) deliver(result CallbackResult) {
	l.once.Do(func() {
		l.results <- result
		close(l.results)
	})
}

func (l *LoopbackListener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	server := l.server
	l.mu.Unlock()

	if server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func writePage(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>Connected</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #1e1e1e; color: #ccc; }
        .card { text-align: center; background: #252526; padding: 2rem;
                border-radius: 8px; }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
    </style>
</head>
<body>
    <div class="card">
        <h1>Spotify connected</h1>
        <p>You can close this window and return to your editor.</p>
    </div>
</body>
</html>
`

const deniedPage = `<!DOCTYPE html>
<html>
<head>
    <title>Authorization failed</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #1e1e1e; color: #ccc; }
        .card { text-align: center; background: #252526; padding: 2rem;
                border-radius: 8px; }
        h1 { color: #f14c4c; margin: 0 0 1rem 0; }
    </style>
</head>
<body>
    <div class="card">
        <h1>Authorization failed</h1>
        <p>Spotify was not connected. You can close this window and try again.</p>
    </div>
</body>
</html>
`
