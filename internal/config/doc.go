// Package config holds the options of a webcrawl invocation and loads the
// optional .webcrawl YAML file with per-host crawl settings.
//
// # Precedence
//
// Command line flags set the baseline for every target. For each start URL
// CrawlConfig then applies the file's defaults section and finally the
// sites entry for the start URL's host, so the most specific setting wins.
// Pointer fields in SiteConfig tell "not set" from an explicit 0 or false.
//
// # Credentials
//
// Cookie and Headers are accepted only inside a sites entry. The fetcher
// sends them to that host alone, including on redirects that stay on it,
// and LoadConfigFile rejects them under defaults with ErrDefaultCredentials.
//
// # File location
//
// FindConfigFile looks at the --config path, then .webcrawl in the current
// directory, then .webcrawl in the home directory. Run history lives under
// the XDG data directory returned by XDGDataDir.
package config
