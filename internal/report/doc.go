// Package report renders crawl results.
//
// Writers for three formats implement the Writer interface:
//   - SimpleWriter: text for terminal display
//   - JSONWriter and FullJSONWriter: JSON for tool integration
//   - MarkdownWriter: GitHub-flavored Markdown with a mermaid pie chart
//
// Each writer also renders the run listing of the runs command.
//
// A Writer writes one report per call, so a batch crawl writing to the
// same destination produces one report per run, in completion order.
// JSONWriter encodes the CrawlResult as is. FullJSONWriter wraps it in a
// JSONReport with the webcrawl version and a status summary; crawl --json
// prints that form.
//
//	w := report.NewMarkdownWriter(os.Stdout)
//	if _, err := w.Write(result); err != nil {
//		return err
//	}
package report
