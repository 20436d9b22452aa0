package crawler

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// ParseResult is what a Parser extracts from one HTML page.
type ParseResult struct {
	// Title is the normalized page title, or empty.
	Title string

	// Links are absolute http(s) URLs found in a[href], in document order,
	// without duplicates.
	Links []string
}

// Parser extracts a title and outgoing links from an HTML document.
// Malformed hrefs are dropped silently. An error is returned only when the
// document as a whole cannot be parsed.
type Parser interface {
	Parse(baseURL string, body []byte) (*ParseResult, error)
}

// HTMLParser is the Parser built on golang.org/x/net/html and goquery.
type HTMLParser struct{}

// NewHTMLParser returns an HTMLParser.
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{}
}

// skippedSchemes are href prefixes that never point at a crawlable page.
var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// Parse implements Parser. A <base href> in the document takes precedence
// over baseURL when resolving relative links.
func (p *HTMLParser) Parse(baseURL string, body []byte) (*ParseResult, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	doc := goquery.NewDocumentFromNode(root)

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	result := &ParseResult{
		Title: extractTitle(doc),
		Links: make([]string, 0),
	}

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link := resolveURL(base, href)
		if link == "" {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		result.Links = append(result.Links, link)
	})

	return result, nil
}

// extractTitle returns the <title> text, falling back to og:title.
func extractTitle(doc *goquery.Document) string {
	title := cleanTitle(doc.Find("head title").First().Text())
	if title == "" {
		title = cleanTitle(doc.Find("title").First().Text())
	}
	if title == "" {
		if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
			title = cleanTitle(og)
		}
	}
	return title
}

// cleanTitle collapses whitespace and applies Unicode NFC so visually equal
// titles compare equal.
func cleanTitle(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

// resolveURL resolves href against base. It returns "" for empty hrefs,
// fragment-only hrefs, non-navigational schemes, unparsable values and
// anything that does not resolve to http(s).
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	if resolved.Host == "" {
		return ""
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String()
}
