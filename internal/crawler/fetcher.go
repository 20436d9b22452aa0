package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Fetcher defaults.
const (
	// DefaultFetchTimeout bounds every request so a fetch never blocks
	// indefinitely.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultUserAgent identifies the crawler in requests.
	DefaultUserAgent = "webcrawl/1.0 (+https://github.com/nao1215/webcrawl)"

	// maxRedirects stops redirect loops.
	maxRedirects = 10
)

// Response is what a Fetcher returns for a successful (2xx) request.
type Response struct {
	// URL is the URL that was requested.
	URL string

	// FinalURL is the URL after redirects. Relative links resolve against it.
	FinalURL string

	StatusCode  int
	ContentType string
	Body        []byte

	// Truncated is set when the body was longer than the fetcher's size
	// limit and Body holds only its first part.
	Truncated bool
}

// Fetcher retrieves one URL. Implementations must apply their own timeout
// and return a *FetchError for network failures and non-2xx statuses.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// HTTPFetcher is the net/http based Fetcher. It follows up to
// maxRedirects redirects and treats any final status outside 2xx as a
// failure. The zero value is not usable; call NewHTTPFetcher.
type HTTPFetcher struct {
	// client is a copy of the configured client with the timeout applied
	// and, when credentials are set, a header-injecting transport.
	client *http.Client

	timeout   time.Duration
	userAgent string

	// maxBodySize is the most bytes kept from one body. Longer bodies are
	// cut and reported through Response.Truncated.
	maxBodySize int64

	// cookie and headers are sent only to the requested host.
	cookie  string
	headers map[string]string
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient sets the underlying client, e.g. one routed through a
// SOCKS5 proxy. Its Timeout is overridden by WithTimeout.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize caps the number of body bytes read per response.
func WithMaxBodySize(n int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithCookie sends a raw cookie string ("a=1; b=2") with every request.
func WithCookie(cookie string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.cookie = cookie
	}
}

// WithHeaders sends extra headers with every request.
func WithHeaders(headers map[string]string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.headers = headers
	}
}

// NewHTTPFetcher creates an HTTPFetcher. Without options it uses a 10 second
// timeout and follows at most 10 redirects.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		timeout:     DefaultFetchTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}

	var base http.Client
	if f.client != nil {
		base = *f.client
	}
	base.Timeout = f.timeout
	if base.CheckRedirect == nil {
		base.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		}
	}
	if f.cookie != "" || len(f.headers) > 0 {
		transport := base.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		base.Transport = &headerInjectingTransport{
			base:    transport,
			cookie:  f.cookie,
			headers: f.headers,
		}
	}
	f.client = &base

	return f
}

// Fetch performs a GET request. Non-2xx responses are returned as a
// *FetchError wrapping ErrUnexpectedStatus.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best effort
		return nil, &FetchError{
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status),
		}
	}

	// One byte past the limit tells a body of exactly maxBodySize from a
	// longer one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: err}
	}
	truncated := int64(len(body)) > f.maxBodySize
	if truncated {
		body = body[:f.maxBodySize]
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		URL:         pageURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Truncated:   truncated,
	}, nil
}

// headerInjectingTransport adds the configured cookie and headers to
// requests, and to redirects that stay on the originally requested host.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !strings.EqualFold(originalHost(req), req.URL.Host) {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}

// originalHost follows a redirect chain back to the first request.
func originalHost(req *http.Request) string {
	for req.Response != nil && req.Response.Request != nil {
		req = req.Response.Request
	}
	return req.URL.Host
}
