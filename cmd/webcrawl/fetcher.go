package main

import (
	"context"
	"net/http"
	"slices"
	"sync"

	"github.com/nao1215/webcrawl/internal/config"
	"github.com/nao1215/webcrawl/internal/crawler"
)

// siteFetcher sends each host's configured cookie and headers only to that
// host. Credentials come from the host's own sites entry, never from
// defaults. Hosts without credentials share one fetcher.
type siteFetcher struct {
	// sites is the loaded config file; nil means no per-host settings.
	sites *config.File

	// opts are the invocation-wide fetcher options every host shares.
	opts []crawler.FetcherOption

	// base serves hosts without credentials.
	base *crawler.HTTPFetcher

	// byHost caches the fetcher chosen for each host, including base.
	mu     sync.Mutex
	byHost map[string]*crawler.HTTPFetcher
}

// newSiteFetcher builds the fetcher for a crawl invocation. client may be
// nil for direct connections.
func newSiteFetcher(cfg *config.Config, client *http.Client) *siteFetcher {
	opts := []crawler.FetcherOption{
		crawler.WithHTTPClient(client),
		crawler.WithTimeout(cfg.Timeout),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
	}
	return &siteFetcher{
		sites:  cfg.SiteConfigs,
		opts:   opts,
		base:   crawler.NewHTTPFetcher(opts...),
		byHost: make(map[string]*crawler.HTTPFetcher),
	}
}

// Fetch implements crawler.Fetcher.
func (f *siteFetcher) Fetch(ctx context.Context, pageURL string) (*crawler.Response, error) {
	return f.fetcherFor(pageURL).Fetch(ctx, pageURL)
}

// fetcherFor returns the fetcher for pageURL's host, building and caching a
// credentialed one on first use. Unparseable URLs get base and fail in Fetch.
func (f *siteFetcher) fetcherFor(pageURL string) *crawler.HTTPFetcher {
	if f.sites == nil {
		return f.base
	}
	host, err := crawler.HostOf(pageURL)
	if err != nil {
		return f.base
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if fe, ok := f.byHost[host]; ok {
		return fe
	}

	fe := f.base
	site := f.sites.GetSiteConfig(host)
	if site.Cookie != "" || len(site.Headers) > 0 {
		opts := append(slices.Clone(f.opts), crawler.WithCookie(site.Cookie), crawler.WithHeaders(site.Headers))
		fe = crawler.NewHTTPFetcher(opts...)
	}
	f.byHost[host] = fe
	return fe
}
