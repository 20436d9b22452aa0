package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/webcrawl/internal/config"
	"github.com/nao1215/webcrawl/internal/model"
	"github.com/nao1215/webcrawl/internal/report"
	"github.com/nao1215/webcrawl/internal/storage"
)

const (
	// defaultRunsLimit is the number of runs listed by default.
	defaultRunsLimit = 20

	// defaultPreviewLength is the number of HTML characters shown per page.
	defaultPreviewLength = 50
)

// NewRunsCmd creates the runs command.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored crawl runs",
		Long: `Runs lists the crawl runs stored in the database, newest first.

Examples:
  # List the 20 most recent runs
  webcrawl runs

  # List the last 5 runs as JSON
  webcrawl runs -n 5 --json`,
		Args: cobra.NoArgs,
		RunE: runRunsCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultRunsLimit,
		"Maximum number of runs to list (0 lists all)")
	cmd.Flags().String("db", "",
		"Database directory (default: XDG data directory)")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")

	return cmd
}

// runRunsCmd executes the runs command.
func runRunsCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	if limit < 0 {
		return errors.New("invalid limit: must be non-negative")
	}

	// Resolve the output format before touching the database, so a flag
	// conflict is reported even when no history exists.
	writer, err := listingWriter(cmd)
	if err != nil {
		return err
	}

	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	_, err = writer.WriteRuns(runs)
	return err
}

// NewPagesCmd creates the pages command.
func NewPagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages <run-id>",
		Short: "Show the pages stored for a run",
		Long: `Pages prints every page recorded by one run, ordered by depth, with a
short preview of the stored HTML.

Use 'webcrawl runs' to find run IDs.

Examples:
  webcrawl pages 6f1c2a3e-0b7d-4c8e-9a51-2f4d3b6e7c80

  # Longer previews
  webcrawl pages --preview 200 6f1c2a3e-0b7d-4c8e-9a51-2f4d3b6e7c80`,
		Args: cobra.ExactArgs(1),
		RunE: runPagesCmd,
	}

	cmd.Flags().Int("preview", defaultPreviewLength,
		"Number of HTML characters shown per page (0 hides the preview)")
	cmd.Flags().String("db", "",
		"Database directory (default: XDG data directory)")
	cmd.Flags().BoolP("json", "j", false,
		"Output the stored pages as JSON, including the full HTML")

	return cmd
}

// runPagesCmd executes the pages command.
func runPagesCmd(cmd *cobra.Command, args []string) error {
	runID := args[0]

	preview, err := cmd.Flags().GetInt("preview")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	// GetRun answers nil for an unknown ID; ListPages alone could not tell
	// an unknown run from an empty one.
	run, err := db.GetRun(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("%w: %s", storage.ErrRunNotFound, runID)
	}

	pages, err := db.ListPages(cmd.Context(), runID)
	if err != nil {
		return err
	}

	// JSON output includes the full stored HTML
	out := cmd.OutOrStdout()
	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(pages)
	}
	return writePages(out, run, pages, preview)
}

// writePages prints one block per page: status, depth and URL on the first
// line, then the title and, when preview is positive, the start of the
// stored HTML collapsed to one line.
func writePages(out io.Writer, run *model.RunSummary, pages []storage.StoredPage, preview int) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Run %s  %s  (%s, %d page(s))\n\n", run.ID, run.StartURL, run.Status, len(pages))
	if len(pages) == 0 {
		sb.WriteString("No pages stored.\n")
	}
	for _, p := range pages {
		fmt.Fprintf(&sb, "[%d] depth %d  %s\n", p.StatusCode, p.Depth, p.URL)
		fmt.Fprintf(&sb, "    Title: %s\n", p.DisplayTitle())
		if preview > 0 && p.HTMLContent != "" {
			fmt.Fprintf(&sb, "    HTML:  %s\n", oneLine(p.Preview(preview)))
		}
	}

	_, err := io.WriteString(out, sb.String())
	return err
}

// oneLine collapses whitespace so a preview fits on one line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// openHistoryDB opens an existing database for the read-only commands.
func openHistoryDB(cmd *cobra.Command) (*storage.DB, error) {
	dbDir, err := cmd.Flags().GetString("db")
	if err != nil {
		return nil, err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	// Never create a database just to report that it is empty.
	db, err := storage.Open(dbDir, storage.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		if errors.Is(err, storage.ErrDatabaseNotFound) {
			return nil, fmt.Errorf("no crawl history found (run 'webcrawl crawl' first): %w", err)
		}
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// listingWriter returns the report writer selected by --json/--markdown.
func listingWriter(cmd *cobra.Command) (report.Writer, error) {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput && markdownOutput:
		return nil, config.ErrConflictingReportFormats
	case jsonOutput:
		return report.NewJSONWriter(out, report.WithPrettyPrint()), nil
	case markdownOutput:
		return report.NewMarkdownWriter(out), nil
	default:
		return report.NewSimpleWriter(out), nil
	}
}
