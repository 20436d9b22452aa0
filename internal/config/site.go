package config

import (
	"maps"
	"strings"
)

// SiteConfig holds crawl settings for one host. Pointer fields distinguish
// "not set" from an explicit zero or false.
type SiteConfig struct {
	// Cookie is sent with every request to the site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the crawl depth.
	Depth *int `yaml:"depth,omitempty"`

	// MaxPages overrides the page cap.
	MaxPages *int `yaml:"maxPages,omitempty"`

	// SameDomain overrides the same-domain restriction.
	SameDomain *bool `yaml:"sameDomain,omitempty"`

	// DomainMatch overrides the host comparison mode.
	DomainMatch string `yaml:"domainMatch,omitempty"`

	// IgnorePatterns are path globs that are never followed.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns, when set, restrict crawling to matching paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .webcrawl configuration file.
type File struct {
	// Sites maps hosts (e.g. "example.com" or "localhost:8080") to their
	// settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every host unless overridden in Sites. Cookie and
	// Headers are not allowed here: credentials belong to one host and are
	// never sent to hosts without their own entry.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns Defaults merged with the entry for host. Host keys
// are compared case-insensitively. Cookie and Headers come from the host's
// own entry only.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Cookie = ""
	result.Headers = nil

	site, ok := cf.lookup(host)
	if !ok {
		return result
	}

	result.Cookie = site.Cookie
	if len(site.Headers) > 0 {
		result.Headers = maps.Clone(site.Headers)
	}
	if site.Depth != nil {
		result.Depth = site.Depth
	}
	if site.MaxPages != nil {
		result.MaxPages = site.MaxPages
	}
	if site.SameDomain != nil {
		result.SameDomain = site.SameDomain
	}
	if site.DomainMatch != "" {
		result.DomainMatch = site.DomainMatch
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}

	return result
}

func (cf *File) lookup(host string) (SiteConfig, bool) {
	if site, ok := cf.Sites[host]; ok {
		return site, true
	}
	for key, sc := range cf.Sites {
		if strings.EqualFold(key, host) {
			return sc, true
		}
	}
	return SiteConfig{}, false
}
