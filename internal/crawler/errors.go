package crawler

import (
	"errors"
	"fmt"
)

// Configuration errors. A run that fails validation returns a *ConfigError
// wrapping one of these before anything is fetched.
var (
	// ErrInvalidStartURL is returned when the start URL is empty, relative,
	// or uses a scheme other than http or https.
	ErrInvalidStartURL = errors.New("invalid start URL: must be an absolute http or https URL")

	// ErrInvalidDepthLimit is returned when the depth limit is negative.
	ErrInvalidDepthLimit = errors.New("invalid depth limit: must be non-negative")

	// ErrInvalidMaxPages is returned when the page cap is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidWorkers is returned when the worker count is outside 1..MaxWorkers.
	ErrInvalidWorkers = fmt.Errorf("invalid worker count: must be between 1 and %d", MaxWorkers)

	// ErrInvalidDomainMatch is returned for an unknown domain match mode.
	ErrInvalidDomainMatch = errors.New("invalid domain match: must be exact, subdomain, site or contains")

	// ErrInvalidOrdering is returned for an unknown ordering mode.
	ErrInvalidOrdering = errors.New("invalid ordering: must be free or level")
)

var (
	// ErrUnexpectedStatus is wrapped by FetchError for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrFrontierExhausted is returned by Frontier.Next when there is no
	// queued work and no claim in flight.
	ErrFrontierExhausted = errors.New("frontier exhausted")

	// ErrRedirectOutOfScope is wrapped by FetchError when a URL redirects to
	// a page the scope filter rejects, such as another host under
	// SameDomain. Nothing is stored for such a URL.
	ErrRedirectOutOfScope = errors.New("redirect leaves crawl scope")
)

// ConfigError reports an invalid crawl configuration. It is fatal and is
// returned before any fetch happens.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// FetchError reports a network failure, timeout or non-2xx status for one URL.
// The crawl logs it and skips the URL.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports HTML that could not be parsed. The page is still
// recorded, just without links.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError reports a failure to persist a fetched page.
type StorageError struct {
	URL string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s: %v", e.URL, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
