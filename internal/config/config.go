package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/webcrawl/internal/crawler"
	"github.com/nao1215/webcrawl/internal/socks"
)

// Default configuration values.
const (
	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = crawler.DefaultFetchTimeout

	// DefaultDepth is the number of hops followed from each start URL.
	DefaultDepth = crawler.DefaultDepthLimit

	// DefaultWorkers is the number of concurrent fetches per crawl.
	DefaultWorkers = crawler.DefaultWorkers

	// DefaultBatchSize is the number of start URLs crawled at once.
	DefaultBatchSize = 1

	// DefaultListenAddr is where the serve command listens.
	DefaultListenAddr = ":8000"

	// AppName is the application name used for XDG directory paths.
	AppName = "webcrawl"

	// DefaultUserAgent identifies the crawler in HTTP requests.
	DefaultUserAgent = crawler.DefaultUserAgent

	// DefaultMaxBodySize limits how much of a response is read.
	DefaultMaxBodySize = crawler.DefaultMaxBodySize

	// DefaultTorStartupTimeout is how long to wait for the embedded Tor
	// daemon to bootstrap.
	DefaultTorStartupTimeout = socks.DefaultTorStartupTimeout
)

// Config holds the options of one webcrawl invocation, populated from CLI
// flags and the optional .webcrawl file.
type Config struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration

	// Depth is the maximum number of hops from a start URL. 0 fetches only
	// the start page.
	Depth int

	// MaxPages caps recorded pages per run. 0 means no cap.
	MaxPages int

	// SameDomain restricts the crawl to the start URL's host.
	SameDomain bool

	// DomainMatch selects how hosts are compared under SameDomain:
	// exact, subdomain, site or contains.
	DomainMatch string

	// Workers is the number of concurrent fetches per run.
	Workers int

	// LevelOrder finishes each depth level before starting the next.
	LevelOrder bool

	// StrictStorage aborts a run on the first storage failure.
	StrictStorage bool

	// MaxQueue is a soft cap on queued URLs per run. 0 means unbounded.
	MaxQueue int

	// Verbose enables debug logging.
	Verbose bool

	// BatchSize is the number of start URLs crawled concurrently.
	BatchSize int

	// ConfigFilePath is an explicit path to the configuration file. When
	// empty, .webcrawl is searched in the current and home directories.
	ConfigFilePath string

	// SiteConfigs holds per-host settings loaded from the config file.
	SiteConfigs *File

	// JSONReport and MarkdownReport select the report format. They are
	// mutually exclusive; neither means the plain text report.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// Targets are the start URLs to crawl.
	Targets []string

	// ProxyAddress routes all requests through a SOCKS5 proxy ("host:port").
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and crawls through it.
	UseTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// DBDir is the directory of the SQLite database.
	DBDir string

	// SaveToDB stores runs and pages in the database.
	SaveToDB bool

	// CSVPath additionally writes recorded pages to a CSV file.
	CSVPath string

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize is the maximum number of body bytes read per response.
	MaxBodySize int64

	// ListenAddr is the address of the HTTP API.
	ListenAddr string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:           DefaultTimeout,
		Depth:             DefaultDepth,
		DomainMatch:       string(crawler.MatchExact),
		Workers:           DefaultWorkers,
		BatchSize:         DefaultBatchSize,
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		ListenAddr:        DefaultListenAddr,
	}
}

// XDGDataDir returns the XDG data directory for webcrawl.
// On Linux: ~/.local/share/webcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Validate checks a crawl configuration. It requires at least one target.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	return c.ValidateSettings()
}

// ValidateSettings checks everything except the targets. The serve command
// uses it since its targets arrive per request.
func (c *Config) ValidateSettings() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Depth < 0 {
		return ErrInvalidDepth
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.Workers <= 0 || c.Workers > crawler.MaxWorkers {
		return ErrInvalidWorkers
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if _, err := crawler.ParseDomainMatch(c.DomainMatch); err != nil {
		return ErrInvalidDomainMatch
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingProxy
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.MaxQueue < 0 {
		return ErrInvalidMaxQueue
	}
	return nil
}

// CrawlConfig builds the engine configuration for one start URL, applying
// the per-host settings from the config file on top of the CLI values.
func (c *Config) CrawlConfig(startURL string) crawler.Config {
	cfg := crawler.NewConfig(startURL)
	cfg.DepthLimit = c.Depth
	cfg.MaxPages = c.MaxPages
	cfg.SameDomain = c.SameDomain
	cfg.DomainMatch = crawler.DomainMatch(c.DomainMatch)
	cfg.Workers = c.Workers
	cfg.StrictStorage = c.StrictStorage
	cfg.MaxQueue = c.MaxQueue
	if c.LevelOrder {
		cfg.Ordering = crawler.OrderLevel
	}

	site := c.Site(startURL)
	if site.Depth != nil {
		cfg.DepthLimit = *site.Depth
	}
	if site.MaxPages != nil {
		cfg.MaxPages = *site.MaxPages
	}
	if site.SameDomain != nil {
		cfg.SameDomain = *site.SameDomain
	}
	if site.DomainMatch != "" {
		cfg.DomainMatch = crawler.DomainMatch(site.DomainMatch)
	}
	cfg.IgnorePatterns = site.IgnorePatterns
	cfg.FollowPatterns = site.FollowPatterns

	return cfg
}

// Site returns the merged file settings for the host of startURL. It is the
// zero SiteConfig when no config file was loaded.
func (c *Config) Site(startURL string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	host, err := crawler.HostOf(startURL)
	if err != nil {
		return c.SiteConfigs.Defaults
	}
	return c.SiteConfigs.GetSiteConfig(host)
}
