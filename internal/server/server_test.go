package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/webcrawl/internal/config"
	"github.com/nao1215/webcrawl/internal/crawler"
	"github.com/nao1215/webcrawl/internal/model"
	"github.com/nao1215/webcrawl/internal/storage"
)

// fakeRunner records the config it was called with.
type fakeRunner struct {
	mu     sync.Mutex
	got    crawler.Config
	result *model.CrawlResult
	err    error
}

func (f *fakeRunner) Run(_ context.Context, cfg crawler.Config) (*model.CrawlResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return f.result, f.err
}

func (f *fakeRunner) config() crawler.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.got
}

type fakeRunStore struct {
	runs  []model.RunSummary
	pages map[string][]storage.StoredPage
	err   error
}

func (f *fakeRunStore) ListRuns(_ context.Context, _ int) ([]model.RunSummary, error) {
	return f.runs, f.err
}

func (f *fakeRunStore) GetRun(_ context.Context, id string) (*model.RunSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.runs {
		if f.runs[i].ID == id {
			return &f.runs[i], nil
		}
	}
	return nil, nil
}

func (f *fakeRunStore) ListPages(_ context.Context, runID string) ([]storage.StoredPage, error) {
	return f.pages[runID], f.err
}

func sampleResult() *model.CrawlResult {
	return &model.CrawlResult{
		RunID:    "run-1",
		StartURL: "https://a.test/",
		Pages: []model.PageRecord{
			{URL: "https://a.test/", Title: "Home", StatusCode: 200},
			{URL: "https://a.test/a", StatusCode: 200, Depth: 1},
		},
	}
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequestWithContext(context.Background(), method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleCrawl(t *testing.T) {
	t.Parallel()

	t.Run("returns pages with title fallback", func(t *testing.T) {
		t.Parallel()

		runner := &fakeRunner{result: sampleResult()}
		h := New(runner, nil).Handler()

		rec := do(t, h, http.MethodPost, "/crawl",
			`{"start_url":"https://a.test/","depth_limit":1,"max_pages":5,"same_domain":true}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}

		var pages []model.PageResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &pages); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		want := []model.PageResponse{
			{URL: "https://a.test/", Title: "Home", Status: 200},
			{URL: "https://a.test/a", Title: model.NoTitle, Status: 200},
		}
		if len(pages) != len(want) {
			t.Fatalf("got %d pages, want %d", len(pages), len(want))
		}
		for i := range want {
			if pages[i] != want[i] {
				t.Errorf("page %d = %+v, want %+v", i, pages[i], want[i])
			}
		}

		got := runner.config()
		if got.StartURL != "https://a.test/" || got.DepthLimit != 1 || got.MaxPages != 5 || !got.SameDomain {
			t.Errorf("unexpected config: %+v", got)
		}
	})

	t.Run("omitted fields keep server defaults", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Depth = 2
		cfg.SameDomain = true
		runner := &fakeRunner{result: &model.CrawlResult{}}
		h := New(runner, cfg).Handler()

		rec := do(t, h, http.MethodPost, "/crawl", `{"start_url":"https://a.test/"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if strings.TrimSpace(rec.Body.String()) != "[]" {
			t.Errorf("empty result should be an empty array, got %s", rec.Body.String())
		}

		got := runner.config()
		if got.DepthLimit != 2 || !got.SameDomain || got.MaxPages != 0 {
			t.Errorf("defaults not applied: %+v", got)
		}
	})

	t.Run("explicit zero and false override defaults", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.SameDomain = true
		runner := &fakeRunner{result: &model.CrawlResult{}}
		h := New(runner, cfg).Handler()

		rec := do(t, h, http.MethodPost, "/crawl", `{"start_url":"https://a.test/","depth_limit":0,"same_domain":false}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := runner.config(); got.DepthLimit != 0 || got.SameDomain {
			t.Errorf("explicit values not applied: %+v", got)
		}
	})

	t.Run("error statuses", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name   string
			body   string
			err    error
			status int
		}{
			{"malformed JSON", `{"start_url":`, nil, http.StatusBadRequest},
			{"invalid start URL", `{"start_url":"not a url"}`, nil, http.StatusBadRequest},
			{"negative depth", `{"start_url":"https://a.test/","depth_limit":-1}`, nil, http.StatusBadRequest},
			{"unknown domain match", `{"start_url":"https://a.test/","domain_match":"fuzzy"}`, nil, http.StatusBadRequest},
			{"engine failure", `{"start_url":"https://a.test/"}`,
				&crawler.StorageError{URL: "https://a.test/", Err: errors.New("disk full")}, http.StatusInternalServerError},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				runner := &fakeRunner{result: &model.CrawlResult{}, err: tt.err}
				rec := do(t, New(runner, nil).Handler(), http.MethodPost, "/crawl", tt.body)
				if rec.Code != tt.status {
					t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
				}

				var body errorResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Error == "" {
					t.Errorf("expected JSON error body, got %s", rec.Body.String())
				}
			})
		}
	})

	t.Run("GET is not allowed", func(t *testing.T) {
		t.Parallel()

		rec := do(t, New(&fakeRunner{}, nil).Handler(), http.MethodGet, "/crawl", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})
}

func TestHandleStatus(t *testing.T) {
	t.Parallel()

	rec := do(t, New(&fakeRunner{}, nil, WithVersion("v1.0.0")).Handler(), http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Status != "ok" || body.Version != "v1.0.0" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestRunRoutes(t *testing.T) {
	t.Parallel()

	store := &fakeRunStore{
		runs: []model.RunSummary{{ID: "run-1", StartURL: "https://a.test/", Status: model.RunStatusComplete, PageCount: 1}},
		pages: map[string][]storage.StoredPage{
			"run-1": {{PageRecord: model.PageRecord{URL: "https://a.test/", StatusCode: 200}, HTMLContent: "<html></html>"}},
		},
	}

	t.Run("without store both routes are 404", func(t *testing.T) {
		t.Parallel()

		h := New(&fakeRunner{}, nil).Handler()
		for _, target := range []string{"/runs", "/runs/run-1/pages"} {
			if rec := do(t, h, http.MethodGet, target, ""); rec.Code != http.StatusNotFound {
				t.Errorf("%s: status = %d, want 404", target, rec.Code)
			}
		}
	})

	t.Run("lists runs", func(t *testing.T) {
		t.Parallel()

		rec := do(t, New(&fakeRunner{}, nil, WithRunStore(store)).Handler(), http.MethodGet, "/runs", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var runs []model.RunSummary
		if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(runs) != 1 || runs[0].ID != "run-1" {
			t.Errorf("unexpected runs: %+v", runs)
		}
	})

	t.Run("empty history is an empty array", func(t *testing.T) {
		t.Parallel()

		rec := do(t, New(&fakeRunner{}, nil, WithRunStore(&fakeRunStore{})).Handler(), http.MethodGet, "/runs", "")
		if strings.TrimSpace(rec.Body.String()) != "[]" {
			t.Errorf("body = %s", rec.Body.String())
		}
	})

	t.Run("lists pages of a run", func(t *testing.T) {
		t.Parallel()

		rec := do(t, New(&fakeRunner{}, nil, WithRunStore(store)).Handler(), http.MethodGet, "/runs/run-1/pages", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var pages []storage.StoredPage
		if err := json.Unmarshal(rec.Body.Bytes(), &pages); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(pages) != 1 || pages[0].HTMLContent != "<html></html>" {
			t.Errorf("unexpected pages: %+v", pages)
		}
	})

	t.Run("unknown run is 404", func(t *testing.T) {
		t.Parallel()

		rec := do(t, New(&fakeRunner{}, nil, WithRunStore(store)).Handler(), http.MethodGet, "/runs/nope/pages", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("store failure is 500", func(t *testing.T) {
		t.Parallel()

		broken := &fakeRunStore{err: errors.New("database is locked")}
		rec := do(t, New(&fakeRunner{}, nil, WithRunStore(broken)).Handler(), http.MethodGet, "/runs", "")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
	})
}

func TestCORS(t *testing.T) {
	t.Parallel()

	h := New(&fakeRunner{}, nil).Handler()

	t.Run("preflight", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequestWithContext(context.Background(), http.MethodOptions, "/crawl", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "content-type")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Allow-Origin = %q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "content-type" {
			t.Errorf("Allow-Headers = %q", got)
		}
		if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "POST") {
			t.Error("POST should be allowed")
		}
	})

	t.Run("simple request carries headers", func(t *testing.T) {
		t.Parallel()

		rec := do(t, h, http.MethodGet, "/status", "")
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Allow-Origin = %q", got)
		}
	})
}

func TestServeShutdown(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := New(&fakeRunner{}, nil, WithShutdownTimeout(time.Second))

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://"+ln.Addr().String()+"/status", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
