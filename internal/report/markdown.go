package report

import (
	"io"
	"slices"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/webcrawl/internal/model"
)

// MarkdownWriter outputs GitHub-flavored Markdown with tables, alerts and a
// mermaid pie chart of response classes.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the crawl report in Markdown format.
func (w *MarkdownWriter) Write(result *model.CrawlResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result)
	w.writeSummary(md, result)
	w.writePages(md, result)
	w.writeFailures(md, result)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the title and the run properties table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.CrawlResult) {
	md.H1("Crawl Report")
	md.PlainText("")

	maxPages := "unlimited"
	if result.MaxPages > 0 {
		maxPages = strconv.Itoa(result.MaxPages)
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", "`" + result.StartURL + "`"},
			{"Run ID", "`" + result.RunID + "`"},
			{"Started", result.StartedAt.Format(timeLayout)},
			{"Duration", result.Duration().String()},
			{"Depth Limit", strconv.Itoa(result.DepthLimit)},
			{"Max Pages", maxPages},
			{"Same Domain", strconv.FormatBool(result.SameDomain)},
			{"Status", w.getStatusText(result)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) getStatusText(result *model.CrawlResult) string {
	switch result.Status() {
	case model.RunStatusFailed:
		return "❌ Error - " + result.Error
	case model.RunStatusCancelled:
		return "⚠️ Cancelled (partial results)"
	case model.RunStatusTruncated:
		return "⏹️ Page limit reached"
	default:
		return "✅ Complete"
	}
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, result *model.CrawlResult) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Pages recorded", strconv.Itoa(len(result.Pages))},
			{"Fetch failures", strconv.Itoa(len(result.Failures))},
			{"Links discovered", strconv.Itoa(result.Stats.LinksDiscovered)},
			{"Links followed", strconv.Itoa(result.Stats.LinksAdmitted)},
			{"Storage warnings", strconv.Itoa(result.Stats.StorageWarnings)},
		},
	})
	md.PlainText("")

	if len(result.Pages) > 0 {
		w.writePieChart(md, result)
	}

	w.writeAlert(md, result)
}

// writePieChart writes a mermaid pie chart of recorded pages by status class.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, result *model.CrawlResult) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Response Status Classes"),
		piechart.WithShowData(true),
	)

	counts := result.StatusClassCounts()
	classes := make([]string, 0, len(counts))
	for class := range counts {
		classes = append(classes, class)
	}
	slices.Sort(classes)
	for _, class := range classes {
		chart.LabelAndIntValue(class, uint64(counts[class])) //nolint:gosec // counts are non-negative
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes one GitHub alert for the most important condition of
// the run. The cases are ordered by severity and only the first applies.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, result *model.CrawlResult) {
	switch {
	case result.Error != "":
		md.Cautionf("The crawl was aborted: %s", result.Error)
	case result.Cancelled:
		md.Warningf("The crawl was cancelled after %d page(s). Results are partial.", len(result.Pages))
	case len(result.Failures) > 0:
		md.Warningf("%d URL(s) could not be fetched. See Failures below.", len(result.Failures))
	case result.Stats.StorageWarnings > 0:
		md.Importantf("%d page(s) could not be persisted.", result.Stats.StorageWarnings)
	case result.Truncated:
		md.Note("The page limit was reached before the frontier was exhausted.")
	default:
		md.Tip("Every reachable page within the limits was fetched successfully.")
	}
	md.PlainText("")
}

// writePages writes the page table in result order, which is depth order.
// Long URLs and titles are cut so the table stays readable on GitHub.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, result *model.CrawlResult) {
	md.H2("Pages")
	md.PlainText("")

	if len(result.Pages) == 0 {
		md.PlainText("No pages recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(result.Pages))
	for i, p := range result.Pages {
		rows[i] = []string{
			truncateString(p.URL, 70),
			truncateString(p.DisplayTitle(), 50),
			strconv.Itoa(p.StatusCode),
			strconv.Itoa(p.Depth),
			strconv.Itoa(p.Links),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Title", "Status", "Depth", "Links"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, result *model.CrawlResult) {
	if len(result.Failures) == 0 {
		return
	}

	md.H2("Failures")
	md.PlainText("")

	rows := make([][]string, len(result.Failures))
	for i, f := range result.Failures {
		status := "-"
		if f.StatusCode != 0 {
			status = strconv.Itoa(f.StatusCode)
		}
		rows[i] = []string{
			truncateString(f.URL, 70),
			status,
			strconv.Itoa(f.Depth),
			truncateString(f.Error, 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Depth", "Error"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, f := range result.Failures {
		if len([]rune(f.Error)) > 60 {
			md.Details(f.URL, f.Error)
		}
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [webcrawl](https://github.com/nao1215/webcrawl)*")
}

// WriteRuns outputs a Markdown table of runs.
func (w *MarkdownWriter) WriteRuns(runs []model.RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Crawl Runs")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No runs recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			"`" + r.ID + "`",
			r.StartedAt.Format(timeLayout),
			r.Status,
			strconv.Itoa(r.PageCount),
			strconv.Itoa(r.FailureCount),
			r.StartURL,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Run ID", "Started", "Status", "Pages", "Failures", "Start URL"},
		Rows:   rows,
	})
	return len(md.String()), md.Build()
}
