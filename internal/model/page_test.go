package model

import (
	"testing"
	"time"
)

// TestPageRecordComputeHash tests the ComputeHash method.
func TestPageRecordComputeHash(t *testing.T) {
	t.Parallel()

	t.Run("computes SHA256 hash of body", func(t *testing.T) {
		t.Parallel()

		page := &PageRecord{}
		page.ComputeHash([]byte("Hello, World!"))

		expected := "dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f"
		if page.ContentHash != expected {
			t.Errorf("got %q, expected %q", page.ContentHash, expected)
		}
	})

	t.Run("empty body produces empty hash", func(t *testing.T) {
		t.Parallel()

		page := &PageRecord{ContentHash: "stale"}
		page.ComputeHash(nil)

		if page.ContentHash != "" {
			t.Errorf("expected empty hash, got %q", page.ContentHash)
		}
	})
}

// TestPageRecordDisplayTitle tests the NoTitle fallback.
func TestPageRecordDisplayTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"empty", "", NoTitle},
		{"whitespace", "   ", NoTitle},
		{"set", "Home", "Home"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := &PageRecord{Title: tt.title}
			if got := p.DisplayTitle(); got != tt.want {
				t.Errorf("DisplayTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestIsHTMLContentType tests content type detection.
func TestIsHTMLContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ct   string
		want bool
	}{
		{"", true},
		{"text/html", true},
		{"text/html; charset=utf-8", true},
		{"TEXT/HTML", true},
		{"application/xhtml+xml", true},
		{"application/json", false},
		{"image/png", false},
	}

	for _, tt := range tests {
		t.Run(tt.ct, func(t *testing.T) {
			t.Parallel()

			if got := IsHTMLContentType(tt.ct); got != tt.want {
				t.Errorf("IsHTMLContentType(%q) = %v, want %v", tt.ct, got, tt.want)
			}
		})
	}
}

// TestNewPageResponses tests conversion to the API response shape.
func TestNewPageResponses(t *testing.T) {
	t.Parallel()

	pages := []PageRecord{
		{URL: "https://a.test/", Title: "A", StatusCode: 200},
		{URL: "https://a.test/b"},
	}

	got := NewPageResponses(pages)
	if len(got) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(got))
	}
	if got[0].Title != "A" || got[0].Status != 200 {
		t.Errorf("unexpected first response: %+v", got[0])
	}
	if got[1].Title != NoTitle || got[1].Status != 0 {
		t.Errorf("missing title/status should map to %q/0, got %+v", NoTitle, got[1])
	}

	if empty := NewPageResponses(nil); empty == nil || len(empty) != 0 {
		t.Errorf("expected non-nil empty slice, got %#v", empty)
	}
}

// TestCrawlResultStatus tests the run status derivation.
func TestCrawlResultStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result CrawlResult
		want   string
	}{
		{"complete", CrawlResult{}, RunStatusComplete},
		{"truncated", CrawlResult{Truncated: true}, RunStatusTruncated},
		{"cancelled", CrawlResult{Cancelled: true, Truncated: true}, RunStatusCancelled},
		{"failed", CrawlResult{Error: "boom", Cancelled: true}, RunStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.result.Status(); got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestStatusClassCounts tests status class grouping.
func TestStatusClassCounts(t *testing.T) {
	t.Parallel()

	r := &CrawlResult{
		Pages: []PageRecord{
			{StatusCode: 200}, {StatusCode: 204}, {StatusCode: 301}, {StatusCode: 0},
		},
	}

	counts := r.StatusClassCounts()
	if counts["2xx"] != 2 || counts["3xx"] != 1 || counts["other"] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

// TestCrawlResultDuration tests Duration.
func TestCrawlResultDuration(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &CrawlResult{StartedAt: start}
	if r.Duration() != 0 {
		t.Errorf("unfinished run should have zero duration")
	}

	r.FinishedAt = start.Add(1500 * time.Millisecond)
	if r.Duration() != 1500*time.Millisecond {
		t.Errorf("Duration() = %v", r.Duration())
	}
}
