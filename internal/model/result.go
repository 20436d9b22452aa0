package model

import "time"

// CrawlRequest is the JSON body accepted by the HTTP API.
// Optional fields are pointers so that an omitted field can be told apart
// from an explicit zero.
type CrawlRequest struct {
	StartURL    string `json:"start_url"`
	DepthLimit  *int   `json:"depth_limit,omitempty"`
	MaxPages    *int   `json:"max_pages,omitempty"`
	SameDomain  *bool  `json:"same_domain,omitempty"`
	DomainMatch string `json:"domain_match,omitempty"`
}

// PageResponse is one element of the POST /crawl response array.
type PageResponse struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Status int    `json:"status"`
}

// NewPageResponses converts records into the API response shape.
func NewPageResponses(pages []PageRecord) []PageResponse {
	out := make([]PageResponse, 0, len(pages))
	for i := range pages {
		out = append(out, PageResponse{
			URL:    pages[i].URL,
			Title:  pages[i].DisplayTitle(),
			Status: pages[i].StatusCode,
		})
	}
	return out
}

// RunStats holds counters collected during a crawl run.
type RunStats struct {
	// Fetched is the number of successful fetches, including pages that
	// were discarded because the cap had already been reached.
	Fetched int `json:"fetched"`

	// Failed is the number of fetch failures.
	Failed int `json:"failed"`

	// Stored is the number of PageRecords produced.
	Stored int `json:"stored"`

	// StorageWarnings counts records carrying a StorageWarning.
	StorageWarnings int `json:"storage_warnings"`

	// LinksDiscovered counts every link extracted from a recorded page.
	LinksDiscovered int `json:"links_discovered"`

	// LinksAdmitted counts links that passed the scope filter and were new.
	LinksAdmitted int `json:"links_admitted"`

	// Dropped counts links lost to the soft queue cap.
	Dropped int `json:"dropped,omitempty"`
}

// CrawlResult is everything one crawl run produced.
type CrawlResult struct {
	RunID      string         `json:"run_id"`
	StartURL   string         `json:"start_url"`
	DepthLimit int            `json:"depth_limit"`
	MaxPages   int            `json:"max_pages,omitempty"`
	SameDomain bool           `json:"same_domain"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Pages      []PageRecord   `json:"pages"`
	Failures   []FetchFailure `json:"failures,omitempty"`
	Stats      RunStats       `json:"stats"`

	// Truncated is true when the run stopped because MaxPages was reached.
	Truncated bool `json:"truncated"`

	// Cancelled is true when the run stopped on an external signal.
	Cancelled bool `json:"cancelled"`

	// Error holds the error that aborted the run, if any.
	Error string `json:"error,omitempty"`
}

// Duration returns how long the run took.
func (r *CrawlResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Status returns a short word describing how the run ended.
func (r *CrawlResult) Status() string {
	switch {
	case r.Error != "":
		return RunStatusFailed
	case r.Cancelled:
		return RunStatusCancelled
	case r.Truncated:
		return RunStatusTruncated
	default:
		return RunStatusComplete
	}
}

// StatusClassCounts groups recorded pages by status class ("2xx", "3xx", ...).
func (r *CrawlResult) StatusClassCounts() map[string]int {
	counts := make(map[string]int)
	for _, p := range r.Pages {
		counts[StatusClass(p.StatusCode)]++
	}
	return counts
}

// StatusClass returns the "Nxx" class of an HTTP status code.
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return string(rune('0'+code/100)) + "xx"
}

// Run status values persisted with each run. "truncated" means MaxPages
// cut the crawl short; "cancelled" and "failed" take precedence over it.
const (
	RunStatusRunning   = "running"
	RunStatusComplete  = "complete"
	RunStatusTruncated = "truncated"
	RunStatusCancelled = "cancelled"
	RunStatusFailed    = "failed"
)

// RunSummary is a crawl run as stored in the database.
type RunSummary struct {
	ID           string    `json:"id"`
	StartURL     string    `json:"start_url"`
	DepthLimit   int       `json:"depth_limit"`
	MaxPages     int       `json:"max_pages"`
	SameDomain   bool      `json:"same_domain"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
	Status       string    `json:"status"`
	PageCount    int       `json:"page_count"`
	FailureCount int       `json:"failure_count"`
}
