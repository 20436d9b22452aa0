package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/webcrawl/internal/config"
	"github.com/nao1215/webcrawl/internal/crawler"
	"github.com/nao1215/webcrawl/internal/report"
	"github.com/nao1215/webcrawl/internal/socks"
	"github.com/nao1215/webcrawl/internal/storage"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url> [url...]",
		Short: "Crawl one or more websites breadth-first",
		Long: `Crawl fetches the start URL, extracts its links and follows them
breadth-first up to --depth hops, recording the title, HTTP status and depth
of every page it reaches.

Runs are saved to the SQLite database in the XDG data directory unless
--no-db is given. Several start URLs are crawled as independent runs; use
--batch to crawl them concurrently.

Examples:
  # Crawl two levels deep, staying on the start host
  webcrawl crawl -d 2 -s https://example.com

  # Stop after 100 pages and print a JSON report
  webcrawl crawl -p 100 --json https://example.com

  # Treat every subdomain of example.com as the same site
  webcrawl crawl -s --domain-match subdomain https://example.com

  # Crawl through a SOCKS5 proxy and also write a CSV file
  webcrawl crawl --proxy 127.0.0.1:1080 --csv pages.csv https://example.com

  # Crawl three sites, two at a time, with a Markdown report
  webcrawl crawl -b 2 -m -o report.md https://a.example https://b.example https://c.example

Configuration file (.webcrawl) example:
  defaults:
    depth: 2
  sites:
    example.com:
      cookie: "session_id=abc123"
      maxPages: 500
      ignorePatterns:
        - "/logout"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCrawlCmd,
	}

	// Crawl limits
	cmd.Flags().IntP("depth", "d", config.DefaultDepth,
		"Maximum number of hops from the start URL (0 fetches only the start page)")
	cmd.Flags().IntP("max-pages", "p", 0,
		"Maximum number of pages recorded per run (0 means unlimited)")
	cmd.Flags().BoolP("same-domain", "s", false,
		"Only follow links on the start URL's host")
	cmd.Flags().String("domain-match", string(crawler.MatchExact),
		"Host comparison for --same-domain: exact, subdomain, site or contains")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent fetches per run")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().Bool("level-order", false,
		"Finish each depth level before starting the next")
	cmd.Flags().Bool("strict-storage", false,
		"Abort the run on the first storage failure")
	cmd.Flags().Int("max-queue", 0,
		"Soft cap on queued URLs per run (0 means unbounded)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")

	// Batch crawling
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of start URLs crawled concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .webcrawl in current or home directory)")

	// Storage
	cmd.Flags().String("db", "",
		"Database directory (default: XDG data directory)")
	cmd.Flags().Bool("no-db", false,
		"Do not save the run to the database")
	cmd.Flags().String("csv", "",
		"Also write recorded pages to this CSV file")

	// Report
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// Network
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (host:port)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and crawl through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	// Build config from flags and the config file
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd)
	return runCrawl(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// buildConfig creates a Config from cobra command flags and the config file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	// Get flag values
	var err error
	if cfg.Depth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.SameDomain, err = flags.GetBool("same-domain"); err != nil {
		return nil, err
	}
	if cfg.DomainMatch, err = flags.GetString("domain-match"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.LevelOrder, err = flags.GetBool("level-order"); err != nil {
		return nil, err
	}
	if cfg.StrictStorage, err = flags.GetBool("strict-storage"); err != nil {
		return nil, err
	}
	if cfg.MaxQueue, err = flags.GetInt("max-queue"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.CSVPath, err = flags.GetString("csv"); err != nil {
		return nil, err
	}

	// Save to the database unless --no-db; --db overrides the XDG location
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	dbDir, err := flags.GetString("db")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	// Load per-host settings. Command line flags stay the baseline and the
	// file overrides them for matching hosts.
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if err := loadSiteConfigs(cfg); err != nil {
		return nil, err
	}

	// Get positional arguments (start URLs)
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Targets = args

	return cfg, nil
}

// loadSiteConfigs loads the config file into cfg.SiteConfigs. A missing file
// is only an error when the path was given explicitly.
func loadSiteConfigs(cfg *config.Config) error {
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath == "" {
		// User explicitly specified a config file that doesn't exist
		if cfg.ConfigFilePath != "" {
			return fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
		}
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
		return nil
	}

	sites, err := config.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	cfg.SiteConfigs = sites
	return nil
}

// runCrawl crawls every target and writes one report per run to stdout or
// cfg.ReportFile. Progress goes to status.
func runCrawl(ctx context.Context, cfg *config.Config, stdout, status io.Writer, logger *slog.Logger) error {
	if len(cfg.Targets) == 0 {
		return config.ErrNoTarget
	}

	// Resolve and validate every target before any network activity, so a
	// typo in the third URL does not surface after two finished crawls.
	configs := make([]crawler.Config, len(cfg.Targets))
	for i, target := range cfg.Targets {
		configs[i] = cfg.CrawlConfig(target)
		if err := configs[i].Validate(); err != nil {
			return fmt.Errorf("invalid target %q: %w", target, err)
		}
	}

	// Route through --proxy or --tor when requested
	httpClient, cleanup, err := setupTransport(ctx, cfg, status, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// Open database and CSV output if enabled
	store, closeStore, err := openStores(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Determine output destination
	out, closeOut, err := openReportOutput(cfg, stdout)
	if err != nil {
		return err
	}
	defer closeOut()
	writer := newReportWriter(cfg, out)

	opts := []crawler.Option{crawler.WithLogger(logger)}
	if store != nil {
		opts = append(opts, crawler.WithStore(store))
	}
	// A nil parser selects the default HTML parser.
	c := crawler.New(newSiteFetcher(cfg, httpClient), nil, opts...)

	// Use batch crawling only when there is more than one target
	if len(configs) == 1 {
		return crawlOne(ctx, c, configs[0], writer, status)
	}
	return crawlBatch(ctx, c, configs, cfg.BatchSize, writer, status, logger)
}

// crawlOne runs a single crawl and writes its report. A cancelled or failed
// run still reports the pages it recorded before the error is returned.
func crawlOne(ctx context.Context, c *crawler.Crawler, cfg crawler.Config, writer report.Writer, status io.Writer) error {
	fmt.Fprintf(status, "Crawling %s...\n", cfg.StartURL)
	start := time.Now()

	// Run returns the partial result together with ctx.Err() on cancel
	result, err := c.Run(ctx, cfg)
	if result != nil {
		fmt.Fprintf(status, "Crawl finished in %s: %d page(s), %d failure(s)\n\n",
			time.Since(start).Round(time.Millisecond), len(result.Pages), len(result.Failures))
		if _, werr := writer.Write(result); werr != nil {
			return errors.Join(err, fmt.Errorf("failed to write report: %w", werr))
		}
	}
	if err != nil {
		return fmt.Errorf("crawl of %s failed: %w", cfg.StartURL, err)
	}
	return nil
}

// crawlBatch runs the targets with RunBatch and writes each report as its
// run completes. Reports arrive in completion order, not argument order.
// Failed runs do not stop the batch; their errors are joined and returned
// after all runs finished.
func crawlBatch(ctx context.Context, c *crawler.Crawler, configs []crawler.Config, concurrency int, writer report.Writer, status io.Writer, logger *slog.Logger) error {
	fmt.Fprintf(status, "Starting batch crawl of %d targets (concurrency: %d)...\n\n", len(configs), concurrency)
	start := time.Now()

	var (
		mu     sync.Mutex
		done   int
		failed []error
	)
	err := c.RunBatch(ctx, configs, concurrency, func(br crawler.BatchResult) {
		// Callbacks run on worker goroutines; serialize progress and report output.
		mu.Lock()
		defer mu.Unlock()

		done++
		if br.Err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", br.Config.StartURL, br.Err))
			fmt.Fprintf(status, "[%d/%d] Crawl failed: %s: %v\n", done, len(configs), br.Config.StartURL, br.Err)
		} else {
			fmt.Fprintf(status, "[%d/%d] Crawl completed: %s\n", done, len(configs), br.Config.StartURL)
		}
		if br.Result == nil {
			return
		}
		if _, err := writer.Write(br.Result); err != nil {
			logger.Error("report failed", "start_url", br.Config.StartURL, "error", err)
		}
	})

	fmt.Fprintf(status, "\nBatch crawl completed in %s\n", time.Since(start).Round(time.Millisecond))

	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d crawls failed: %w", len(failed), len(configs), errors.Join(failed...))
	}
	return nil
}

// setupTransport returns the HTTP client for --proxy or --tor, or nil for
// direct connections. cleanup must always be called.
func setupTransport(ctx context.Context, cfg *config.Config, status io.Writer, logger *slog.Logger) (*http.Client, func(), error) {
	noop := func() {}

	switch {
	case cfg.ProxyAddress != "":
		// Use external SOCKS5 proxy
		client, err := socks.NewClient(cfg.ProxyAddress, cfg.Timeout)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create proxy client: %w", err)
		}
		if st := client.CheckConnection(ctx); st != socks.StatusOK {
			return nil, noop, fmt.Errorf("proxy check failed for %s: %w", cfg.ProxyAddress, st.Err())
		}
		logger.Info("SOCKS5 proxy connection verified", "address", cfg.ProxyAddress)
		return client.HTTPClient(), noop, nil

	case cfg.UseTor:
		// Start embedded Tor daemon, stopped by cleanup
		client, embeddedTor, err := startEmbeddedTor(ctx, cfg, status, logger)
		if err != nil {
			return nil, noop, err
		}
		return client.HTTPClient(), func() {
			logger.Info("stopping embedded Tor daemon")
			if err := embeddedTor.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}, nil

	default:
		return nil, noop, nil
	}
}

// startEmbeddedTor starts an embedded Tor daemon using tornago.
// Returns the SOCKS client and the daemon manager on success; on failure
// the daemon has already been stopped.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, status io.Writer, logger *slog.Logger) (*socks.Client, *socks.EmbeddedTor, error) {
	fmt.Fprintln(status, "Starting embedded Tor daemon...")
	fmt.Fprintf(status, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := socks.NewEmbeddedTor(socks.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	logger.Info("embedded Tor daemon started",
		"socksAddr", embeddedTor.SocksAddr(),
		"controlAddr", embeddedTor.ControlAddr(),
	)
	fmt.Fprintf(status, "SOCKS proxy: %s\n\n", embeddedTor.SocksAddr())

	// Create a client using the embedded Tor's SOCKS proxy
	client, err := embeddedTor.NewClient(cfg.Timeout)
	if err != nil {
		_ = embeddedTor.Stop() //nolint:errcheck // best effort cleanup
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}

	// Verify the connection
	if st := client.CheckConnection(ctx); st != socks.StatusOK {
		_ = embeddedTor.Stop() //nolint:errcheck // best effort cleanup
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %w", st.Err())
	}

	return client, embeddedTor, nil
}

// openStores opens the database and CSV file selected by cfg. The returned
// store is nil when neither is enabled.
func openStores(cfg *config.Config, logger *slog.Logger) (crawler.PageStore, func(), error) {
	var (
		stores  []crawler.PageStore
		closers []io.Closer
	)
	closeAll := func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Error("failed to close store", "error", err)
			}
		}
	}

	if cfg.SaveToDB {
		db, err := storage.Open(cfg.DBDir, storage.DefaultOptions())
		if err != nil {
			return nil, closeAll, fmt.Errorf("failed to open database: %w", err)
		}
		logger.Info("database opened", "path", db.Path())
		stores = append(stores, db)
		closers = append(closers, db)
	}

	if cfg.CSVPath != "" {
		csvStore, err := storage.CreateCSVStore(cfg.CSVPath)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		stores = append(stores, csvStore)
		closers = append(closers, csvStore)
	}

	// Wrap in Multi only when both outputs are enabled
	switch len(stores) {
	case 0:
		return nil, closeAll, nil
	case 1:
		return stores[0], closeAll, nil
	default:
		return storage.NewMulti(stores...), closeAll, nil
	}
}

// openReportOutput returns cfg.ReportFile opened for writing, or stdout.
func openReportOutput(cfg *config.Config, stdout io.Writer) (io.Writer, func(), error) {
	if cfg.ReportFile == "" {
		return stdout, func() {}, nil
	}

	// Create directories if they don't exist
	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports list every URL of a site, some of them private; keep the
	// file readable by the owner only.
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// newReportWriter selects the writer for the requested format.
func newReportWriter(cfg *config.Config, out io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(out, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}
}

