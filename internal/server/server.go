package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nao1215/webcrawl/internal/config"
	"github.com/nao1215/webcrawl/internal/crawler"
	"github.com/nao1215/webcrawl/internal/model"
	"github.com/nao1215/webcrawl/internal/storage"
)

// Server timeouts.
const (
	// DefaultShutdownTimeout bounds how long in-flight requests may run
	// after the context is cancelled.
	DefaultShutdownTimeout = 30 * time.Second

	readHeaderTimeout = 10 * time.Second

	// maxRequestBody caps the JSON body of POST /crawl.
	maxRequestBody = 1 << 20

	// runsLimit is the number of runs returned by GET /runs.
	runsLimit = 100
)

// Runner executes one crawl. *crawler.Crawler implements it.
type Runner interface {
	Run(ctx context.Context, cfg crawler.Config) (*model.CrawlResult, error)
}

// RunStore reads persisted runs. *storage.DB implements it.
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error)
	GetRun(ctx context.Context, id string) (*model.RunSummary, error)
	ListPages(ctx context.Context, runID string) ([]storage.StoredPage, error)
}

// Server is the HTTP API.
type Server struct {
	runner          Runner
	cfg             *config.Config
	runs            RunStore
	logger          *slog.Logger
	version         string
	shutdownTimeout time.Duration
	mux             *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithRunStore enables the /runs routes. Without it they answer 404.
func WithRunStore(rs RunStore) Option {
	return func(s *Server) {
		s.runs = rs
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithVersion sets the version reported by GET /status.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithShutdownTimeout overrides DefaultShutdownTimeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// New creates a Server. cfg supplies the defaults for fields a request
// leaves out; a nil cfg means config.NewConfig().
func New(runner Runner, cfg *config.Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	s := &Server{
		runner:          runner,
		cfg:             cfg,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		version:         "dev",
		shutdownTimeout: DefaultShutdownTimeout,
		mux:             http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("POST /crawl", s.handleCrawl)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /runs", s.handleListRuns)
	s.mux.HandleFunc("GET /runs/{id}/pages", s.handleListPages)
	return s
}

// Handler returns the API wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	return withCORS(s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled. ln is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down HTTP server", "timeout", s.shutdownTimeout)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

// withCORS allows any origin, method and header, and answers preflight
// requests directly.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			h.Set("Access-Control-Allow-Headers", reqHeaders)
		} else {
			h.Set("Access-Control-Allow-Headers", "*")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Max-Age", "86400")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
