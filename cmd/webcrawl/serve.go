package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/webcrawl/internal/config"
	"github.com/nao1215/webcrawl/internal/crawler"
	"github.com/nao1215/webcrawl/internal/log"
	"github.com/nao1215/webcrawl/internal/server"
	"github.com/nao1215/webcrawl/internal/storage"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the crawler over HTTP",
		Long: `Serve starts an HTTP API for running crawls.

Endpoints:
  POST /crawl            {"start_url": "...", "depth_limit": 2, "max_pages": 50, "same_domain": true}
                         returns [{"url": "...", "title": "...", "status": 200}, ...]
  GET  /status           liveness and version
  GET  /runs             stored runs, newest first
  GET  /runs/{id}/pages  stored pages of one run

Fields omitted from a crawl request take the values of the flags below.
The server logs JSON lines to stderr and shuts down gracefully on SIGINT
or SIGTERM.

Examples:
  # Listen on the default address (:8000)
  webcrawl serve

  # Listen on localhost only, without run history
  webcrawl serve --addr 127.0.0.1:9000 --no-db`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().String("addr", config.DefaultListenAddr,
		"Address to listen on")
	cmd.Flags().IntP("depth", "d", config.DefaultDepth,
		"Default crawl depth for requests that omit depth_limit")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent fetches per crawl")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .webcrawl in current or home directory)")
	cmd.Flags().String("db", "",
		"Database directory (default: XDG data directory)")
	cmd.Flags().Bool("no-db", false,
		"Do not save runs; /runs endpoints answer 404")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildServeConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateSettings(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging; the server logs JSON for log collectors
	logger := log.NewSecureJSONLogger(cmd.ErrOrStderr(), cfg.Verbose)

	var (
		crawlOpts  = []crawler.Option{crawler.WithLogger(logger)}
		serverOpts = []server.Option{server.WithLogger(logger), server.WithVersion(getVersion())}
	)
	// Open database if saving is enabled. It is both the crawler's page
	// store and the source of the /runs endpoints.
	if cfg.SaveToDB {
		db, err := storage.Open(cfg.DBDir, storage.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		crawlOpts = append(crawlOpts, crawler.WithStore(db))
		serverOpts = append(serverOpts, server.WithRunStore(db))
	}

	// Requests share one Crawler; each Run has its own frontier
	c := crawler.New(newSiteFetcher(cfg, nil), nil, crawlOpts...)
	srv := server.New(c, cfg, serverOpts...)

	// ListenAndServe returns after a graceful shutdown once the command's
	// context is cancelled by SIGINT or SIGTERM
	fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s\n", cfg.ListenAddr)
	return srv.ListenAndServe(cmd.Context(), cfg.ListenAddr)
}

// buildServeConfig creates a Config from the serve command's flags. The
// crawl limits it carries are defaults that each request body may override.
func buildServeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.ListenAddr, err = flags.GetString("addr"); err != nil {
		return nil, err
	}
	if cfg.Depth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}

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

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if err := loadSiteConfigs(cfg); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	return cfg, nil
}
