package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// NoTitle is shown in place of an empty page title by the API and reports.
const NoTitle = "No title"

// PageRecord is the durable summary of one successfully fetched page.
// Exactly one PageRecord is produced per claimed frontier entry whose
// fetch succeeded.
type PageRecord struct {
	// URL is the normalized URL the page was fetched from.
	URL string `json:"url"`

	// Title is the page title. Empty when the page had none or was not HTML.
	Title string `json:"title,omitempty"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// Depth is the number of hops from the start URL.
	Depth int `json:"depth"`

	// ContentType is the response Content-Type header.
	ContentType string `json:"content_type,omitempty"`

	// ContentHash is the hex SHA-256 of the response body.
	ContentHash string `json:"content_hash,omitempty"`

	// Links is the number of links extracted from the page.
	Links int `json:"links"`

	// FetchedAt is when the response was received.
	FetchedAt time.Time `json:"fetched_at"`

	// StorageWarning is set when the page could not be persisted and the
	// crawl was configured to continue anyway.
	StorageWarning string `json:"storage_warning,omitempty"`
}

// DisplayTitle returns the title or NoTitle when it is empty.
func (p *PageRecord) DisplayTitle() string {
	if strings.TrimSpace(p.Title) == "" {
		return NoTitle
	}
	return p.Title
}

// ComputeHash sets ContentHash from the raw response body.
func (p *PageRecord) ComputeHash(body []byte) {
	if len(body) == 0 {
		p.ContentHash = ""
		return
	}
	sum := sha256.Sum256(body)
	p.ContentHash = hex.EncodeToString(sum[:])
}

// IsHTML reports whether the content type indicates an HTML document.
func (p *PageRecord) IsHTML() bool {
	return IsHTMLContentType(p.ContentType)
}

// IsHTMLContentType reports whether ct names an HTML media type.
// An empty content type is treated as HTML since many servers omit it.
func IsHTMLContentType(ct string) bool {
	if ct == "" {
		return true
	}
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

// FetchFailure records a URL that was claimed but could not be fetched.
type FetchFailure struct {
	URL        string `json:"url"`
	Depth      int    `json:"depth"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error"`
}
