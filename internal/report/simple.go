package report

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/webcrawl/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose adds content type, hash and storage warnings per page.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the crawl report in human-readable format.
func (w *SimpleWriter) Write(result *model.CrawlResult) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, result)
	w.writeSummary(&sb, result)
	w.writePages(&sb, result)
	w.writeFailures(&sb, result)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, result *model.CrawlResult) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          WEBCRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Start URL:   %s\n", result.StartURL)
	fmt.Fprintf(sb, "Run ID:      %s\n", result.RunID)
	fmt.Fprintf(sb, "Started:     %s\n", result.StartedAt.Format(timeLayout))
	fmt.Fprintf(sb, "Duration:    %s\n", result.Duration().Round(time.Millisecond))
	fmt.Fprintf(sb, "Depth limit: %d\n", result.DepthLimit)
	if result.MaxPages > 0 {
		fmt.Fprintf(sb, "Max pages:   %d\n", result.MaxPages)
	} else {
		sb.WriteString("Max pages:   unlimited\n")
	}
	fmt.Fprintf(sb, "Same domain: %t\n", result.SameDomain)

	switch result.Status() {
	case model.RunStatusFailed:
		fmt.Fprintf(sb, "Status:      ERROR - %s\n", result.Error)
	case model.RunStatusCancelled:
		sb.WriteString("Status:      CANCELLED (partial results)\n")
	case model.RunStatusTruncated:
		sb.WriteString("Status:      Page limit reached\n")
	default:
		sb.WriteString("Status:      Complete\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, result *model.CrawlResult) {
	writeSection(sb, "SUMMARY")

	fmt.Fprintf(sb, "  Pages recorded:   %d\n", len(result.Pages))
	fmt.Fprintf(sb, "  Fetch failures:   %d\n", len(result.Failures))
	fmt.Fprintf(sb, "  Links discovered: %d\n", result.Stats.LinksDiscovered)
	fmt.Fprintf(sb, "  Links followed:   %d\n", result.Stats.LinksAdmitted)
	if result.Stats.StorageWarnings > 0 {
		fmt.Fprintf(sb, "  Storage warnings: %d\n", result.Stats.StorageWarnings)
	}
	if result.Stats.Dropped > 0 {
		fmt.Fprintf(sb, "  Dropped (queue):  %d\n", result.Stats.Dropped)
	}

	counts := result.StatusClassCounts()
	if len(counts) > 0 {
		classes := make([]string, 0, len(counts))
		for class := range counts {
			classes = append(classes, class)
		}
		slices.Sort(classes)
		parts := make([]string, 0, len(classes))
		for _, class := range classes {
			parts = append(parts, fmt.Sprintf("%s=%d", class, counts[class]))
		}
		fmt.Fprintf(sb, "  Status classes:   %s\n", strings.Join(parts, " "))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writePages(sb *strings.Builder, result *model.CrawlResult) {
	if len(result.Pages) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "PAGES")

	if len(result.Pages) == 0 {
		sb.WriteString("  No pages recorded\n\n")
		return
	}

	for _, p := range result.Pages {
		fmt.Fprintf(sb, "  [%d] depth %d  %s\n", p.StatusCode, p.Depth, p.URL)
		fmt.Fprintf(sb, "        %s\n", p.DisplayTitle())
		if w.verbose {
			if p.ContentType != "" {
				fmt.Fprintf(sb, "        Content-Type: %s\n", p.ContentType)
			}
			if p.ContentHash != "" {
				fmt.Fprintf(sb, "        SHA-256: %s\n", p.ContentHash)
			}
			fmt.Fprintf(sb, "        Links: %d\n", p.Links)
		}
		if p.StorageWarning != "" {
			fmt.Fprintf(sb, "        Storage warning: %s\n", p.StorageWarning)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, result *model.CrawlResult) {
	if len(result.Failures) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "FAILURES")

	if len(result.Failures) == 0 {
		sb.WriteString("  No fetch failures\n\n")
		return
	}

	for _, f := range result.Failures {
		status := "---"
		if f.StatusCode != 0 {
			status = strconv.Itoa(f.StatusCode)
		}
		fmt.Fprintf(sb, "  [%s] depth %d  %s\n", status, f.Depth, f.URL)
		if w.verbose {
			fmt.Fprintf(sb, "        %s\n", f.Error)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by webcrawl\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// WriteRuns outputs one line per run, newest first as given.
func (w *SimpleWriter) WriteRuns(runs []model.RunSummary) (int, error) {
	var sb strings.Builder

	if len(runs) == 0 {
		sb.WriteString("No runs recorded.\n")
		return io.WriteString(w.output, sb.String())
	}

	fmt.Fprintf(&sb, "%-36s  %-19s  %-10s  %6s  %6s  %s\n", "RUN ID", "STARTED", "STATUS", "PAGES", "FAILED", "START URL")
	for _, r := range runs {
		fmt.Fprintf(&sb, "%-36s  %-19s  %-10s  %6d  %6d  %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Status,
			r.PageCount,
			r.FailureCount,
			r.StartURL,
		)
	}
	return io.WriteString(w.output, sb.String())
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}
