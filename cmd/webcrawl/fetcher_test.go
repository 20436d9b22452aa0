package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/webcrawl/internal/config"
)

// recordingServer remembers the Cookie and X-Token headers of the last request.
type recordingServer struct {
	*httptest.Server

	mu     sync.Mutex
	cookie string
	token  string
}

func newRecordingServer(t *testing.T) *recordingServer {
	t.Helper()

	rs := &recordingServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.cookie = r.Header.Get("Cookie")
		rs.token = r.Header.Get("X-Token")
		rs.mu.Unlock()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><title>ok</title></html>"))
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *recordingServer) seen() (string, string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.cookie, rs.token
}

func TestSiteFetcher(t *testing.T) {
	t.Parallel()

	private := newRecordingServer(t)
	public := newRecordingServer(t)

	privateHost := strings.TrimPrefix(private.URL, "http://")

	cfg := config.NewConfig()
	cfg.SiteConfigs = &config.File{
		Sites: map[string]config.SiteConfig{
			privateHost: {
				Cookie:  "session=secret",
				Headers: map[string]string{"X-Token": "t0k3n"},
			},
		},
	}

	f := newSiteFetcher(cfg, nil)
	ctx := context.Background()

	t.Run("credentials go to the configured host", func(t *testing.T) {
		resp, err := f.Fetch(ctx, private.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d", resp.StatusCode)
		}
		cookie, token := private.seen()
		if cookie != "session=secret" || token != "t0k3n" {
			t.Errorf("cookie = %q, token = %q", cookie, token)
		}
	})

	t.Run("other hosts get no credentials", func(t *testing.T) {
		if _, err := f.Fetch(ctx, public.URL+"/"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cookie, token := public.seen()
		if cookie != "" || token != "" {
			t.Errorf("credentials leaked: cookie = %q, token = %q", cookie, token)
		}
	})

	t.Run("fetchers are cached per host", func(t *testing.T) {
		a := f.fetcherFor(private.URL + "/a")
		b := f.fetcherFor(private.URL + "/b")
		if a != b {
			t.Error("expected one fetcher per host")
		}
		if f.fetcherFor(public.URL+"/") != f.base {
			t.Error("hosts without credentials should share the base fetcher")
		}
	})

	t.Run("defaults credentials are not sent to any host", func(t *testing.T) {
		listed := newRecordingServer(t)
		unlisted := newRecordingServer(t)
		depth := 1

		withDefaults := config.NewConfig()
		withDefaults.SiteConfigs = &config.File{
			Defaults: config.SiteConfig{
				Cookie:  "global=1",
				Headers: map[string]string{"X-Token": "global"},
			},
			Sites: map[string]config.SiteConfig{
				strings.TrimPrefix(listed.URL, "http://"): {Depth: &depth},
			},
		}
		g := newSiteFetcher(withDefaults, nil)

		for _, rs := range []*recordingServer{listed, unlisted} {
			if _, err := g.Fetch(ctx, rs.URL+"/"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cookie, token := rs.seen(); cookie != "" || token != "" {
				t.Errorf("%s got defaults credentials: cookie = %q, token = %q", rs.URL, cookie, token)
			}
		}
	})

	t.Run("no config file uses the base fetcher", func(t *testing.T) {
		bare := config.NewConfig()
		g := newSiteFetcher(bare, nil)
		if g.fetcherFor(private.URL+"/") != g.base {
			t.Error("expected base fetcher")
		}
	})
}
