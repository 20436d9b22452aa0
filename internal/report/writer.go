package report

import (
	"io"

	"github.com/nao1215/webcrawl/internal/model"
)

// Writer renders crawl results and run listings in one output format.
type Writer interface {
	// Write outputs the report of one crawl run.
	// Returns the number of bytes written and any error encountered.
	Write(result *model.CrawlResult) (int, error)

	// WriteRuns outputs a listing of persisted runs.
	WriteRuns(runs []model.RunSummary) (int, error)
}

// MultiWriter writes to multiple Writers, e.g. the terminal and a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(result *model.CrawlResult) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(result)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteRuns outputs the listing to all configured Writers.
func (m *MultiWriter) WriteRuns(runs []model.RunSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteRuns(runs)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// truncateString shortens s to at most maxLen runes, ending in "..." when
// it was cut.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// timeLayout is used for all human-readable timestamps.
const timeLayout = "2006-01-02 15:04:05 MST"
