package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/webcrawl/internal/model"
	"github.com/nao1215/webcrawl/internal/storage"
)

// pageChange describes a URL present in both runs whose status, title or
// content differs.
type pageChange struct {
	URL string `json:"url"`

	// OldStatus and NewStatus are always set, equal or not.
	OldStatus int `json:"old_status"`
	NewStatus int `json:"new_status"`

	// OldTitle and NewTitle are set only when the title changed.
	OldTitle string `json:"old_title,omitempty"`
	NewTitle string `json:"new_title,omitempty"`

	// ContentChanged compares content hashes, so any byte change counts.
	ContentChanged bool `json:"content_changed"`
}

// runDiff is the result of comparing two runs. Every slice is sorted by
// URL and encodes as [] rather than null when empty.
type runDiff struct {
	OldRun string `json:"old_run"`
	NewRun string `json:"new_run"`

	// Added are pages only the new run reached.
	Added []model.PageRecord `json:"added"`

	// Removed are pages only the old run reached.
	Removed []model.PageRecord `json:"removed"`

	// Changed are pages both runs reached with a different status, title
	// or content hash.
	Changed []pageChange `json:"changed"`

	// Unchanged counts pages identical in both runs.
	Unchanged int `json:"unchanged"`
}

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <old-run-id> <new-run-id>",
		Short: "Compare the pages of two stored runs",
		Long: `Compare shows how a site changed between two stored runs:
- pages that appeared in the newer run
- pages that are no longer reached
- pages whose status code, title or content hash changed

Use 'webcrawl runs' to find run IDs.

Examples:
  webcrawl compare 0b7d... 6f1c...

  # Output the comparison as JSON
  webcrawl compare --json 0b7d... 6f1c...`,
		Args: cobra.ExactArgs(2),
		RunE: runCompareCmd,
	}

	cmd.Flags().String("db", "",
		"Database directory (default: XDG data directory)")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	// Load both runs, failing on the first unknown ID
	ctx := cmd.Context()
	pageSets := make([][]storage.StoredPage, 2)
	for i, id := range args {
		run, err := db.GetRun(ctx, id)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("%w: %s", storage.ErrRunNotFound, id)
		}
		if pageSets[i], err = db.ListPages(ctx, id); err != nil {
			return err
		}
	}

	diff := diffRuns(args[0], args[1], pageSets[0], pageSets[1])

	out := cmd.OutOrStdout()
	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(diff)
	}
	return writeDiff(out, diff)
}

// diffRuns compares two page sets by URL. Titles are only reported when
// they differ, so an unchanged title stays out of the JSON output.
func diffRuns(oldID, newID string, oldPages, newPages []storage.StoredPage) *runDiff {
	diff := &runDiff{
		OldRun:  oldID,
		NewRun:  newID,
		Added:   []model.PageRecord{},
		Removed: []model.PageRecord{},
		Changed: []pageChange{},
	}

	oldByURL := make(map[string]model.PageRecord, len(oldPages))
	for _, p := range oldPages {
		oldByURL[p.URL] = p.PageRecord
	}

	// Walk the new run; whatever of the old run is not seen was removed
	seen := make(map[string]bool, len(newPages))
	for _, p := range newPages {
		seen[p.URL] = true
		prev, ok := oldByURL[p.URL]
		if !ok {
			diff.Added = append(diff.Added, p.PageRecord)
			continue
		}

		change := pageChange{
			URL:            p.URL,
			OldStatus:      prev.StatusCode,
			NewStatus:      p.StatusCode,
			ContentChanged: prev.ContentHash != p.ContentHash,
		}
		if prev.Title != p.Title {
			change.OldTitle = prev.Title
			change.NewTitle = p.Title
		}
		if change.OldStatus != change.NewStatus || change.OldTitle != change.NewTitle || change.ContentChanged {
			diff.Changed = append(diff.Changed, change)
		} else {
			diff.Unchanged++
		}
	}

	for _, p := range oldPages {
		if !seen[p.URL] {
			diff.Removed = append(diff.Removed, p.PageRecord)
		}
	}

	byURL := func(a, b model.PageRecord) int { return strings.Compare(a.URL, b.URL) }
	slices.SortFunc(diff.Added, byURL)
	slices.SortFunc(diff.Removed, byURL)
	slices.SortFunc(diff.Changed, func(a, b pageChange) int { return strings.Compare(a.URL, b.URL) })

	return diff
}

// writeDiff prints the comparison in human-readable form.
func writeDiff(out io.Writer, diff *runDiff) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Comparing %s -> %s\n\n", diff.OldRun, diff.NewRun)
	fmt.Fprintf(&sb, "  Added:     %d\n", len(diff.Added))
	fmt.Fprintf(&sb, "  Removed:   %d\n", len(diff.Removed))
	fmt.Fprintf(&sb, "  Changed:   %d\n", len(diff.Changed))
	fmt.Fprintf(&sb, "  Unchanged: %d\n", diff.Unchanged)

	if len(diff.Added) > 0 {
		sb.WriteString("\nAdded pages:\n")
		for _, p := range diff.Added {
			fmt.Fprintf(&sb, "  + [%d] %s\n", p.StatusCode, p.URL)
		}
	}
	if len(diff.Removed) > 0 {
		sb.WriteString("\nRemoved pages:\n")
		for _, p := range diff.Removed {
			fmt.Fprintf(&sb, "  - [%d] %s\n", p.StatusCode, p.URL)
		}
	}
	if len(diff.Changed) > 0 {
		sb.WriteString("\nChanged pages:\n")
		for _, c := range diff.Changed {
			fmt.Fprintf(&sb, "  ~ %s\n", c.URL)
			if c.OldStatus != c.NewStatus {
				fmt.Fprintf(&sb, "      status: %d -> %d\n", c.OldStatus, c.NewStatus)
			}
			if c.OldTitle != c.NewTitle {
				fmt.Fprintf(&sb, "      title:  %q -> %q\n", c.OldTitle, c.NewTitle)
			}
			if c.ContentChanged {
				sb.WriteString("      content changed\n")
			}
		}
	}
	if len(diff.Added) == 0 && len(diff.Removed) == 0 && len(diff.Changed) == 0 {
		sb.WriteString("\nNo differences.\n")
	}

	_, err := io.WriteString(out, sb.String())
	return err
}
