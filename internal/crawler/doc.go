// Package crawler implements the breadth-first crawl engine.
//
// # Components
//
//   - Frontier: the work queue and the set of admitted URLs behind a single
//     lock, with atomic admit and claim operations
//   - ScopeFilter: the predicate deciding whether a discovered link may be
//     admitted (depth limit, domain match, path globs)
//   - Crawler: the controller running a bounded worker pool over one
//     Frontier per run, enforcing the depth limit and the page cap
//   - HTTPFetcher and HTMLParser: the default network and HTML collaborators
//
// # Usage
//
//	c := crawler.New(crawler.NewHTTPFetcher(), crawler.NewHTMLParser(),
//		crawler.WithStore(db), crawler.WithLogger(logger))
//	cfg := crawler.NewConfig("https://example.com/")
//	cfg.SameDomain = true
//	result, err := c.Run(ctx, cfg)
//
// # Scope
//
// A discovered link is normalized with NormalizeURL and then admitted only
// if ScopeFilter accepts it.
// The same filter is applied to the URL a fetch ends at after redirects: a
// page that redirects out of scope is reported as a FetchFailure wrapping
// ErrRedirectOutOfScope and nothing is stored for it. A redirect target is
// marked visited, so two URLs redirecting to the same page record it once.
//
// # Concurrency
//
// Workers claim from a shared FIFO. By default they run free, so traversal
// is approximately breadth-first; OrderLevel adds a barrier between depth
// levels. A URL is admitted at most once per run and therefore fetched at
// most once. The page cap is enforced with a compare-and-swap reservation
// taken before a page is stored, so concurrent workers cannot overshoot it.
//
// # Errors
//
// Run returns a *ConfigError for an invalid Config before any request is
// made. Per-URL problems never abort a run; they end up in
// CrawlResult.Failures. A storage error aborts the run only with
// StrictStorage. When ctx is cancelled Run returns the partial result
// together with ctx.Err().
package crawler
