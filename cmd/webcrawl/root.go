package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/webcrawl/internal/log"
)

// NewRootCmd creates the root command for webcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webcrawl",
		Short: "Concurrent breadth-first web crawler",
		Long: `webcrawl crawls websites breadth-first from one or more start URLs.

It fetches pages with a pool of workers, follows links up to a depth limit,
and records each page's title, HTTP status and depth. Runs are stored in a
local SQLite database and can be listed, inspected and compared later.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewRunsCmd())
	cmd.AddCommand(NewPagesCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context so crawls stop claiming new URLs and report partial results.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		// os.Exit skips deferred calls; restore default signal handling first.
		stop()
		os.Exit(1) //nolint:gocritic // stop is called above
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// newLogger returns the redacting logger writing to the command's stderr.
func newLogger(cmd *cobra.Command) *slog.Logger {
	return log.NewSecureLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))
}
