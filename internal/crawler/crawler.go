package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/webcrawl/internal/model"
)

// Crawl defaults.
const (
	// DefaultDepthLimit is the number of hops followed from the start URL.
	DefaultDepthLimit = 3

	// DefaultWorkers is the size of the worker pool.
	DefaultWorkers = 8

	// MaxWorkers is the largest accepted worker pool.
	MaxWorkers = 64
)

// Ordering selects how workers share the frontier.
type Ordering string

const (
	// OrderFree lets workers claim from the shared FIFO as soon as they are
	// idle. Traversal is approximately breadth-first: depth N and N+1 fetches
	// may interleave.
	OrderFree Ordering = "free"

	// OrderLevel finishes every entry of depth N before any entry of depth
	// N+1 is claimed.
	OrderLevel Ordering = "level"
)

// Config describes one crawl run. It is not modified during the run.
type Config struct {
	// StartURL is the absolute http(s) URL the crawl starts from.
	StartURL string

	// DepthLimit is the maximum number of hops from StartURL. 0 fetches
	// only the start page.
	DepthLimit int

	// MaxPages caps the number of recorded pages. 0 means no cap.
	MaxPages int

	// SameDomain restricts traversal to hosts matching the start URL's host
	// under DomainMatch.
	SameDomain bool

	// DomainMatch is the host comparison used when SameDomain is set.
	// Empty means MatchExact.
	DomainMatch DomainMatch

	// Workers is the worker pool size. 0 means DefaultWorkers.
	Workers int

	// Ordering is OrderFree (default) or OrderLevel.
	Ordering Ordering

	// StrictStorage aborts the run on the first storage failure instead
	// of attaching a warning to the affected record.
	StrictStorage bool

	// IgnorePatterns and FollowPatterns are path globs applied to every
	// discovered link.
	IgnorePatterns []string
	FollowPatterns []string

	// MaxQueue is a soft cap on queued frontier entries. 0 means unbounded.
	MaxQueue int
}

// NewConfig returns a Config for startURL with default settings.
func NewConfig(startURL string) Config {
	return Config{
		StartURL:    startURL,
		DepthLimit:  DefaultDepthLimit,
		DomainMatch: MatchExact,
		Workers:     DefaultWorkers,
		Ordering:    OrderFree,
	}
}

// Validate returns a *ConfigError describing the first invalid field.
func (c Config) Validate() error {
	if _, err := NormalizeURL(c.StartURL); err != nil {
		return &ConfigError{Field: "start_url", Err: ErrInvalidStartURL}
	}
	if c.DepthLimit < 0 {
		return &ConfigError{Field: "depth_limit", Err: ErrInvalidDepthLimit}
	}
	if c.MaxPages < 0 {
		return &ConfigError{Field: "max_pages", Err: ErrInvalidMaxPages}
	}
	if c.Workers < 0 || c.Workers > MaxWorkers {
		return &ConfigError{Field: "workers", Err: ErrInvalidWorkers}
	}
	if _, err := ParseDomainMatch(string(c.DomainMatch)); err != nil {
		return &ConfigError{Field: "domain_match", Err: err}
	}
	switch c.Ordering {
	case "", OrderFree, OrderLevel:
	default:
		return &ConfigError{Field: "ordering", Err: ErrInvalidOrdering}
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	c.DomainMatch, _ = ParseDomainMatch(string(c.DomainMatch)) //nolint:errcheck // validated
	if c.Ordering == "" {
		c.Ordering = OrderFree
	}
	return c
}

// PageStore persists recorded pages. SavePage must be safe for concurrent
// use and should ignore a URL it has already stored for the same run.
type PageStore interface {
	SavePage(ctx context.Context, runID string, page *model.PageRecord, body []byte) error
}

// RunRecorder is implemented by stores that also keep per-run metadata.
type RunRecorder interface {
	BeginRun(ctx context.Context, run *model.CrawlResult) error
	FinishRun(ctx context.Context, run *model.CrawlResult) error
}

// Crawler runs crawls. A Crawler holds no per-run state, so one value can
// serve concurrent Run calls.
type Crawler struct {
	// fetcher retrieves pages. It must be safe for concurrent use.
	fetcher Fetcher

	// parser extracts the title and links of HTML pages.
	parser Parser

	// store persists recorded pages; nil keeps them in memory only.
	store PageStore

	logger *slog.Logger

	// now and newRunID are replaced in tests for stable output.
	now      func() time.Time
	newRunID func() string
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithStore sets where recorded pages are persisted. Without a store pages
// are only returned in the result.
func WithStore(s PageStore) Option {
	return func(c *Crawler) {
		c.store = s
	}
}

// WithLogger sets the logger for per-URL diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Crawler) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Crawler) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRunIDGenerator overrides the random UUID run ID.
func WithRunIDGenerator(gen func() string) Option {
	return func(c *Crawler) {
		if gen != nil {
			c.newRunID = gen
		}
	}
}

// New creates a Crawler. A nil fetcher or parser is replaced by the HTTP
// and HTML defaults.
func New(fetcher Fetcher, parser Parser, opts ...Option) *Crawler {
	if fetcher == nil {
		fetcher = NewHTTPFetcher()
	}
	if parser == nil {
		parser = NewHTMLParser()
	}
	c := &Crawler{
		fetcher:  fetcher,
		parser:   parser,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run crawls breadth-first from cfg.StartURL and returns the recorded pages.
//
// An invalid cfg yields a *ConfigError and nothing is fetched. Fetch
// failures are logged, collected in result.Failures, and skipped. A storage
// failure either attaches a warning to the affected record or, with
// StrictStorage, stops the run and is returned as a *StorageError.
//
// When ctx is cancelled the partial result is returned together with the
// context error.
func (c *Crawler) Run(ctx context.Context, cfg Config) (*model.CrawlResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	start, _ := NormalizeURL(cfg.StartURL) //nolint:errcheck // validated above
	origin, _ := HostOf(start)             //nolint:errcheck // validated above

	r := &run{
		cfg:        cfg,
		crawler:    c,
		originHost: origin,
		frontier:   NewFrontier(WithMaxQueue(cfg.MaxQueue)),
		scope: NewScopeFilter(
			WithDomainMatch(cfg.DomainMatch),
			WithIgnorePatterns(cfg.IgnorePatterns),
			WithFollowPatterns(cfg.FollowPatterns),
		),
		result: &model.CrawlResult{
			RunID:      c.newRunID(),
			StartURL:   start,
			DepthLimit: cfg.DepthLimit,
			MaxPages:   cfg.MaxPages,
			SameDomain: cfg.SameDomain,
			StartedAt:  c.now(),
			Pages:      make([]model.PageRecord, 0),
			Failures:   make([]model.FetchFailure, 0),
		},
	}
	r.logger = c.logger.With("run_id", r.result.RunID)

	if err := r.beginRun(ctx); err != nil {
		return nil, err
	}

	r.logger.Info("crawl started",
		"start_url", start,
		"depth_limit", cfg.DepthLimit,
		"max_pages", cfg.MaxPages,
		"same_domain", cfg.SameDomain,
		"workers", cfg.Workers,
		"ordering", cfg.Ordering,
	)

	r.frontier.Admit(Entry{URL: start, Depth: 0})

	var err error
	if cfg.Ordering == OrderLevel {
		err = r.runLevels(ctx)
	} else {
		err = r.runFree(ctx)
	}

	result := r.finish(ctx, err)

	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return result, err
}

// run is the state of one Crawler.Run invocation.
type run struct {
	cfg     Config
	crawler *Crawler
	logger  *slog.Logger

	// originHost is the start URL's host, the reference for SameDomain
	// checks on links and redirect targets.
	originHost string

	frontier *Frontier
	scope    *ScopeFilter

	// stored counts reserved page slots; it never exceeds cfg.MaxPages.
	stored     atomic.Int64
	capReached atomic.Bool

	// stopClaims ends claiming without cancelling in-flight work.
	stopClaims context.CancelFunc

	mu     sync.Mutex
	result *model.CrawlResult
}

// runFree runs cfg.Workers free-running workers against the shared FIFO.
func (r *run) runFree(ctx context.Context) error {
	g, workCtx := errgroup.WithContext(ctx)
	claimCtx, stop := context.WithCancel(workCtx)
	defer stop()
	r.stopClaims = stop

	g.SetLimit(r.cfg.Workers)
	for range r.cfg.Workers {
		g.Go(func() error {
			return r.worker(workCtx, claimCtx)
		})
	}
	return g.Wait()
}

func (r *run) worker(workCtx, claimCtx context.Context) error {
	for {
		entry, err := r.frontier.Next(claimCtx)
		if err != nil {
			// Exhaustion, cap reached, abort or cancellation all end the
			// worker; Run reports cancellation itself.
			return nil
		}
		err = r.process(workCtx, entry)
		r.frontier.Done()
		if err != nil {
			return err
		}
	}
}

// runLevels processes one depth level at a time with a barrier in between.
func (r *run) runLevels(ctx context.Context) error {
	claimCtx, stop := context.WithCancel(ctx)
	defer stop()
	r.stopClaims = stop

	for claimCtx.Err() == nil {
		depth, ok := r.frontier.MinDepth()
		if !ok {
			return nil
		}
		entries := r.frontier.DrainLevel(depth)
		r.logger.Debug("processing level", "depth", depth, "entries", len(entries))

		g, workCtx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.Workers)
		for _, entry := range entries {
			g.Go(func() error {
				defer r.frontier.Done()
				if claimCtx.Err() != nil || workCtx.Err() != nil {
					return nil
				}
				return r.process(workCtx, entry)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// process handles one claimed entry. It returns a non-nil error only when
// the run must abort.
func (r *run) process(ctx context.Context, entry Entry) error {
	if entry.Depth > r.cfg.DepthLimit {
		r.logger.Debug("discarding entry beyond depth limit", "url", entry.URL, "depth", entry.Depth)
		return nil
	}

	resp, err := r.crawler.fetcher.Fetch(ctx, entry.URL)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		r.recordFailure(entry, err)
		return nil
	}

	if err := r.checkRedirect(entry, resp); err != nil {
		if errors.Is(err, errRedirectVisited) {
			r.logger.Debug("redirect target already visited", "url", entry.URL, "target", resp.FinalURL)
		} else {
			r.recordFailure(entry, err)
		}
		return nil
	}

	if resp.Truncated {
		r.logger.Warn("body exceeds size limit, truncated",
			"url", entry.URL, "bytes", len(resp.Body))
	}

	page := model.PageRecord{
		URL:         entry.URL,
		StatusCode:  resp.StatusCode,
		Depth:       entry.Depth,
		ContentType: resp.ContentType,
		FetchedAt:   r.crawler.now(),
	}
	page.ComputeHash(resp.Body)

	var links []string
	if page.IsHTML() {
		base := resp.FinalURL
		if base == "" {
			base = entry.URL
		}
		parsed, err := r.crawler.parser.Parse(base, resp.Body)
		if err != nil {
			r.logger.Debug("parse failed, recording page without links",
				"error", &ParseError{URL: entry.URL, Err: err})
		} else {
			page.Title = parsed.Title
			links = parsed.Links
		}
	}
	page.Links = len(links)

	r.mu.Lock()
	r.result.Stats.Fetched++
	r.mu.Unlock()

	if !r.reserve() {
		r.logger.Debug("page cap reached, discarding fetched page", "url", entry.URL)
		return nil
	}

	var abort error
	if err := r.save(ctx, &page, resp.Body); err != nil {
		serr := &StorageError{URL: entry.URL, Err: err}
		page.StorageWarning = err.Error()
		if r.cfg.StrictStorage {
			r.logger.Error("storage failed, aborting crawl", "url", entry.URL, "error", err)
			abort = serr
		} else {
			r.logger.Warn("storage failed", "url", entry.URL, "error", err)
		}
	}

	r.recordPage(page)
	r.logger.Debug("page recorded",
		"url", page.URL, "depth", page.Depth, "status", page.StatusCode, "links", page.Links)

	if abort != nil {
		r.stopClaims()
		return abort
	}
	if r.capReached.Load() {
		return nil
	}

	r.offer(entry, links)
	return nil
}

// errRedirectVisited marks a redirect whose target was already visited.
var errRedirectVisited = errors.New("redirect target already visited")

// checkRedirect applies the scope filter to the URL a fetch ended at. A
// target outside the scope yields a *FetchError wrapping
// ErrRedirectOutOfScope. An in-scope target is marked visited; when it was
// visited before, errRedirectVisited is returned and the page is skipped.
func (r *run) checkRedirect(entry Entry, resp *Response) error {
	if resp.FinalURL == "" || resp.FinalURL == entry.URL {
		return nil
	}
	final, err := NormalizeURL(resp.FinalURL)
	if err == nil && final == entry.URL {
		return nil
	}
	if err != nil || !r.scope.Eligible(final, r.originHost, r.cfg.SameDomain, entry.Depth, r.cfg.DepthLimit) {
		return &FetchError{URL: entry.URL, Err: fmt.Errorf("%w: %s", ErrRedirectOutOfScope, resp.FinalURL)}
	}
	if !r.frontier.MarkVisited(final) {
		return errRedirectVisited
	}
	return nil
}

// reserve takes one page slot. It fails once MaxPages slots are taken.
// Taking the last slot stops further claims.
func (r *run) reserve() bool {
	limit := int64(r.cfg.MaxPages)
	if limit <= 0 {
		r.stored.Add(1)
		return true
	}
	for {
		n := r.stored.Load()
		if n >= limit {
			return false
		}
		if r.stored.CompareAndSwap(n, n+1) {
			if n+1 == limit {
				r.capReached.Store(true)
				r.stopClaims()
			}
			return true
		}
	}
}

// offer filters links and admits the eligible ones one level deeper.
func (r *run) offer(parent Entry, links []string) {
	depth := parent.Depth + 1
	admitted := 0
	for _, link := range links {
		normalized, err := NormalizeURL(link)
		if err != nil {
			continue
		}
		if !r.scope.Eligible(normalized, r.originHost, r.cfg.SameDomain, depth, r.cfg.DepthLimit) {
			continue
		}
		if r.frontier.Admit(Entry{URL: normalized, Depth: depth}) {
			admitted++
		}
	}

	r.mu.Lock()
	r.result.Stats.LinksDiscovered += len(links)
	r.result.Stats.LinksAdmitted += admitted
	r.mu.Unlock()
}

func (r *run) save(ctx context.Context, page *model.PageRecord, body []byte) error {
	if r.crawler.store == nil {
		return nil
	}
	return r.crawler.store.SavePage(ctx, r.result.RunID, page, body)
}

func (r *run) recordPage(page model.PageRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Pages = append(r.result.Pages, page)
	r.result.Stats.Stored++
	if page.StorageWarning != "" {
		r.result.Stats.StorageWarnings++
	}
}

func (r *run) recordFailure(entry Entry, err error) {
	failure := model.FetchFailure{
		URL:   entry.URL,
		Depth: entry.Depth,
		Error: err.Error(),
	}
	var ferr *FetchError
	if errors.As(err, &ferr) {
		failure.StatusCode = ferr.StatusCode
	}

	r.logger.Warn("fetch failed", "url", entry.URL, "depth", entry.Depth, "error", err)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Failures = append(r.result.Failures, failure)
	r.result.Stats.Failed++
}

// beginRun registers the run with a RunRecorder store. Failure is fatal only
// with StrictStorage.
func (r *run) beginRun(ctx context.Context) error {
	rec, ok := r.crawler.store.(RunRecorder)
	if !ok {
		return nil
	}
	if err := rec.BeginRun(ctx, r.result); err != nil {
		serr := &StorageError{URL: r.result.StartURL, Err: err}
		if r.cfg.StrictStorage {
			return serr
		}
		r.logger.Warn("could not record run start", "error", serr)
	}
	return nil
}

// finish stamps the result and records the run outcome.
func (r *run) finish(ctx context.Context, err error) *model.CrawlResult {
	r.mu.Lock()
	result := r.result
	result.FinishedAt = r.crawler.now()
	result.Truncated = r.capReached.Load()
	result.Cancelled = ctx.Err() != nil
	result.Stats.Dropped = r.frontier.Dropped()
	if err != nil && !result.Cancelled {
		result.Error = err.Error()
	}
	r.mu.Unlock()

	if rec, ok := r.crawler.store.(RunRecorder); ok {
		if ferr := rec.FinishRun(context.WithoutCancel(ctx), result); ferr != nil {
			r.logger.Warn("could not record run outcome", "error", ferr)
		}
	}

	r.logger.Info("crawl finished",
		"status", result.Status(),
		"pages", result.Stats.Stored,
		"failures", result.Stats.Failed,
		"duration", result.Duration(),
	)
	return result
}
