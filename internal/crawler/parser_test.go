package crawler

import (
	"slices"
	"testing"
)

// TestHTMLParserParse tests link and title extraction.
func TestHTMLParserParse(t *testing.T) {
	t.Parallel()

	t.Run("resolves relative links and drops junk", func(t *testing.T) {
		t.Parallel()

		body := []byte(`<html><head><title>  Home
			Page </title></head><body>
			<a href="/b">b</a>
			<a href="c">c</a>
			<a href="https://other.test/">other</a>
			<a href="#top">top</a>
			<a href="javascript:void(0)">js</a>
			<a href="mailto:a@a.test">mail</a>
			<a href="tel:123">tel</a>
			<a href="data:text/plain,hi">data</a>
			<a href="http://[::1">bad</a>
			<a href="ftp://a.test/file">ftp</a>
			<a href="/b#frag">dup</a>
			<a>no href</a>
		</body></html>`)

		result, err := NewHTMLParser().Parse("https://a.test/dir/", body)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.Title != "Home Page" {
			t.Errorf("Title = %q, want %q", result.Title, "Home Page")
		}

		want := []string{
			"https://a.test/b",
			"https://a.test/dir/c",
			"https://other.test/",
		}
		if !slices.Equal(result.Links, want) {
			t.Errorf("Links = %v, want %v", result.Links, want)
		}
	})

	t.Run("honours base href", func(t *testing.T) {
		t.Parallel()

		body := []byte(`<html><head><base href="https://cdn.a.test/root/"></head>
			<body><a href="page">p</a></body></html>`)

		result, err := NewHTMLParser().Parse("https://a.test/", body)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Links) != 1 || result.Links[0] != "https://cdn.a.test/root/page" {
			t.Errorf("Links = %v", result.Links)
		}
	})

	t.Run("falls back to og:title", func(t *testing.T) {
		t.Parallel()

		body := []byte(`<html><head><meta property="og:title" content="Social Title"></head></html>`)
		result, err := NewHTMLParser().Parse("https://a.test/", body)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Title != "Social Title" {
			t.Errorf("Title = %q", result.Title)
		}
	})

	t.Run("normalizes title to NFC", func(t *testing.T) {
		t.Parallel()

		// "e" followed by a combining acute accent
		body := []byte("<title>Cafe\u0301</title>")
		result, err := NewHTMLParser().Parse("https://a.test/", body)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Title != "Caf\u00e9" {
			t.Errorf("Title = %q, want NFC form", result.Title)
		}
	})

	t.Run("empty document", func(t *testing.T) {
		t.Parallel()

		result, err := NewHTMLParser().Parse("https://a.test/", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Title != "" || len(result.Links) != 0 {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("invalid base URL is an error", func(t *testing.T) {
		t.Parallel()

		if _, err := NewHTMLParser().Parse("http://[::1", []byte("<a href='/x'>x</a>")); err == nil {
			t.Error("expected error for invalid base URL")
		}
	})
}
