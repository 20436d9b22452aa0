// Package storage persists crawl runs and the pages they record.
//
// DB keeps runs and pages in a single SQLite file (modernc.org/sqlite, no
// CGO) with WAL enabled so the runs and pages commands can read while a
// crawl is writing. Pages are unique per run and URL; storing the same URL
// twice for a run is a no-op.
//
// CSVStore appends one row per page to a CSV file, and Multi fans a page
// out to several stores. All three satisfy crawler.PageStore.
//
// # Run lifecycle
//
// DB also implements crawler.RunRecorder. BeginRun inserts the run with
// status "running" before the first fetch; FinishRun stores the final
// status ("complete", "truncated", "cancelled" or "failed") and the page
// and failure counts. A run that stays "running" never got to finish, for
// example because the process was killed.
//
// # Location
//
// The crawl command opens the database in the XDG data directory
// ($XDG_DATA_HOME/webcrawl) unless --db names another directory. The runs,
// pages and compare commands open it with CreateIfNotExists unset and report
// ErrDatabaseNotFound when no crawl has been saved yet.
package storage
