package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"

	"github.com/Arunteja27/code-spa-sub000/internal/core"
	"github.com/Arunteja27/code-spa-sub000/internal/session"
	"github.com/Arunteja27/code-spa-sub000/internal/store"
)

// rewriteTransport sends the generated client's requests to a test server
// instead of the real API host.
type rewriteTransport struct {
	base *url.URL
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = rt.base.Scheme
	req.URL.Host = rt.base.Host
	return http.DefaultTransport.RoundTrip(req)
}

func newLibraryFixture(t *testing.T, handler http.HandlerFunc) *Library {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	base, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("Failed to parse server URL: %v", err)
	}

	sessions := session.NewManager(store.NewMemoryStore(), zap.NewNop())
	if err := sessions.Establish("access-1", "refresh-1", nil); err != nil {
		t.Fatalf("Establish failed: %v", err)
	}
	guardian := session.NewGuardian(sessions, &stubRefresher{access: "access-2"}, nil, zap.NewNop())

	httpClient := &http.Client{Transport: rewriteTransport{base: base}}
	cache := store.NewCollectionCache(store.DefaultCacheSize, time.Minute)
	return NewLibrary(httpClient, cache, guardian, NewRateLimit(30*time.Second), zap.NewNop())
}

func TestLibrary_PlaylistsWalkAllPages(t *testing.T) {
	var offsets []string
	l := newLibraryFixture(t, func(w http.ResponseWriter, r *http.Request) {
		offset := r.URL.Query().Get("offset")
		offsets = append(offsets, offset)

		var items []map[string]any
		start, count := 0, pageLimit
		if offset == "50" {
			start, count = 50, 3
		}
		for i := start; i < start+count; i++ {
			items = append(items, map[string]any{
				"id":     fmt.Sprintf("pl-%d", i),
				"name":   fmt.Sprintf("Playlist %d", i),
				"owner":  map[string]any{"display_name": "me"},
				"tracks": map[string]any{"total": 10},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
	})

	summaries, err := l.Playlists(context.Background())
	if err != nil {
		t.Fatalf("Playlists failed: %v", err)
	}

	if len(summaries) != 53 {
		t.Fatalf("Expected 53 playlists across two pages, got %d", len(summaries))
	}
	if summaries[0].ID != "pl-0" || summaries[52].ID != "pl-52" {
		t.Errorf("Expected page order preserved, got first %s last %s",
			summaries[0].ID, summaries[52].ID)
	}
	if len(offsets) != 2 || offsets[1] != "50" {
		t.Errorf("Expected offsets [0 50], got %v", offsets)
	}
}

func TestLibrary_TranslateRateLimit(t *testing.T) {
	l := &Library{limits: NewRateLimit(30 * time.Second), logger: zap.NewNop()}

	err := l.translate("/me/tracks", spotify.Error{Status: http.StatusTooManyRequests, Message: "slow down"})

	var rle *core.RateLimitedError
	if !errors.As(err, &rle) {
		t.Fatalf("Expected RateLimitedError, got %v", err)
	}
	if rle.RetryAfter != 30*time.Second {
		t.Errorf("Expected default cool-down, got %s", rle.RetryAfter)
	}
	if _, blocked := l.limits.Blocked(); !blocked {
		t.Error("Expected the limiter to open a cool-down window")
	}
}

func TestLibrary_TranslateUnauthorized(t *testing.T) {
	l := &Library{limits: NewRateLimit(30 * time.Second), logger: zap.NewNop()}

	err := l.translate("/me", spotify.Error{Status: http.StatusUnauthorized, Message: "token expired"})

	if !core.IsUnauthorized(err) {
		t.Errorf("Expected a 401 to translate to unauthorized, got %v", err)
	}
}

func TestLibrary_TranslateTransportError(t *testing.T) {
	l := &Library{limits: NewRateLimit(30 * time.Second), logger: zap.NewNop()}

	err := l.translate("/me", errors.New("connection refused"))

	if core.IsUnauthorized(err) || errors.Is(err, core.ErrRateLimited) {
		t.Errorf("Expected a plain network wrap, got %v", err)
	}
	if err == nil {
		t.Fatal("Expected an error")
	}
}
