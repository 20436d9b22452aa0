package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/webcrawl/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs compact JSON unless an
// indent option is given.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the crawl result as JSON.
func (w *JSONWriter) Write(result *model.CrawlResult) (int, error) {
	return w.writeJSON(result)
}

// WriteRuns outputs the runs as a JSON array.
func (w *JSONWriter) WriteRuns(runs []model.RunSummary) (int, error) {
	if runs == nil {
		runs = []model.RunSummary{}
	}
	return w.writeJSON(runs)
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// JSONReport wraps a crawl result with the version of webcrawl that
// produced it and a status summary.
type JSONReport struct {
	Version string             `json:"version"`
	Status  string             `json:"status"`
	Classes map[string]int     `json:"status_classes"`
	Result  *model.CrawlResult `json:"result"`
}

// NewJSONReport creates a JSONReport for result.
func NewJSONReport(result *model.CrawlResult, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Status:  result.Status(),
		Classes: result.StatusClassCounts(),
		Result:  result,
	}
}

// FullJSONWriter outputs crawl results wrapped in a JSONReport.
type FullJSONWriter struct {
	*JSONWriter

	version string
}

// NewFullJSONWriter creates a writer for complete reports with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the result wrapped with metadata.
func (w *FullJSONWriter) Write(result *model.CrawlResult) (int, error) {
	return w.writeJSON(NewJSONReport(result, w.version))
}
