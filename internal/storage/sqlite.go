package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/webcrawl/internal/model"
)

// DBFileName is the name of the database file inside the data directory.
const DBFileName = "webcrawl.db"

// DB stores crawl runs and their pages in a single SQLite file.
// It is safe for concurrent use.
type DB struct {
	// db is limited to one open connection; see Open.
	db *sql.DB

	// dbPath is the full path of the database file.
	dbPath string
}

// Options configures DB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so readers do not block the
	// crawler while it writes.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
//
// With CreateIfNotExists unset a missing file yields ErrDatabaseNotFound,
// so the read-only commands never leave an empty database behind. The
// schema is created or confirmed on every open.
func Open(dbDir string, opts Options) (*DB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}
	// A crawl and a serve process may share the file.
	dsn += "&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; one connection serializes crawler workers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &DB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sdb, nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.dbPath
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// createTables creates the schema if it does not exist.
//
// Schema design:
//   - runs: one row per crawl run, updated once by FinishRun
//   - pages: one row per recorded page, unique per run and URL
//
// Timestamps are stored as fixed-width UTC text so ORDER BY on them is
// chronological.
func (d *DB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		start_url TEXT NOT NULL,
		depth_limit INTEGER NOT NULL,
		max_pages INTEGER NOT NULL DEFAULT 0,
		same_domain INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL,
		page_count INTEGER NOT NULL DEFAULT 0,
		failure_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		status_code INTEGER,
		depth INTEGER NOT NULL,
		content_type TEXT,
		content_hash TEXT,
		html_content TEXT,
		fetched_at TEXT NOT NULL,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	`

	_, err := d.db.ExecContext(context.Background(), schema)
	return err
}

// BeginRun inserts the run row with status "running".
func (d *DB) BeginRun(ctx context.Context, run *model.CrawlResult) error {
	query := `
	INSERT INTO runs (id, start_url, depth_limit, max_pages, same_domain, started_at, status)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.ExecContext(ctx, query,
		run.RunID,
		run.StartURL,
		run.DepthLimit,
		run.MaxPages,
		run.SameDomain,
		formatTimestamp(run.StartedAt),
		model.RunStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final status and counters of a run.
func (d *DB) FinishRun(ctx context.Context, run *model.CrawlResult) error {
	query := `
	UPDATE runs
	SET finished_at = ?, status = ?, page_count = ?, failure_count = ?
	WHERE id = ?
	`

	res, err := d.db.ExecContext(ctx, query,
		formatTimestamp(run.FinishedAt),
		run.Status(),
		len(run.Pages),
		len(run.Failures),
		run.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.RunID)
	}
	return nil
}

// SavePage inserts a page. A URL already stored for the run is ignored.
// The body is kept only for HTML pages; other content types store the
// record and hash alone.
func (d *DB) SavePage(ctx context.Context, runID string, page *model.PageRecord, body []byte) error {
	query := `
	INSERT INTO pages (run_id, url, title, status_code, depth, content_type, content_hash, html_content, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, url) DO NOTHING
	`

	var content any
	if page.IsHTML() {
		content = string(body)
	}

	_, err := d.db.ExecContext(ctx, query,
		runID,
		page.URL,
		page.Title,
		page.StatusCode,
		page.Depth,
		page.ContentType,
		page.ContentHash,
		content,
		formatTimestamp(page.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert page: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	query := `
	SELECT id, start_url, depth_limit, max_pages, same_domain, started_at, finished_at, status, page_count, failure_count
	FROM runs
	ORDER BY started_at DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.RunSummary, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns one run, or nil if there is no run with that ID.
func (d *DB) GetRun(ctx context.Context, id string) (*model.RunSummary, error) {
	query := `
	SELECT id, start_url, depth_limit, max_pages, same_domain, started_at, finished_at, status, page_count, failure_count
	FROM runs
	WHERE id = ?
	`

	run, err := scanRun(d.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// StoredPage is a page row as persisted, including the raw HTML.
type StoredPage struct {
	model.PageRecord

	// HTMLContent is the stored body, empty for non-HTML pages.
	HTMLContent string `json:"html_content,omitempty"`
}

// Preview returns the first n runes of the stored HTML, with "..." appended
// when it was cut.
func (p StoredPage) Preview(n int) string {
	r := []rune(p.HTMLContent)
	if len(r) <= n {
		return p.HTMLContent
	}
	return string(r[:n]) + "..."
}

// ListPages returns the pages of a run ordered by depth, then insertion order.
func (d *DB) ListPages(ctx context.Context, runID string) ([]StoredPage, error) {
	query := `
	SELECT url, title, status_code, depth, content_type, content_hash, html_content, fetched_at
	FROM pages
	WHERE run_id = ?
	ORDER BY depth, id
	`

	rows, err := d.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	pages := make([]StoredPage, 0)
	for rows.Next() {
		var (
			p                                 StoredPage
			title, contentType, hash, content sql.NullString
			status                            sql.NullInt64
			fetchedAt                         string
		)
		if err := rows.Scan(&p.URL, &title, &status, &p.Depth, &contentType, &hash, &content, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.Title = title.String
		p.StatusCode = int(status.Int64)
		p.ContentType = contentType.String
		p.ContentHash = hash.String
		p.HTMLContent = content.String
		p.FetchedAt = parseTimestamp(fetchedAt)
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRun reads one runs row. sql.ErrNoRows is returned unwrapped so GetRun
// can detect it.
func scanRun(row rowScanner) (*model.RunSummary, error) {
	var (
		run        model.RunSummary
		startedAt  string
		finishedAt sql.NullString
	)
	err := row.Scan(
		&run.ID,
		&run.StartURL,
		&run.DepthLimit,
		&run.MaxPages,
		&run.SameDomain,
		&startedAt,
		&finishedAt,
		&run.Status,
		&run.PageCount,
		&run.FailureCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.StartedAt = parseTimestamp(startedAt)
	if finishedAt.Valid {
		run.FinishedAt = parseTimestamp(finishedAt.String)
	}
	return &run, nil
}

// timestampLayout has a fixed width so stored values sort chronologically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTimestamp renders t in UTC with timestampLayout.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats are the formats parseTimestamp accepts, most specific
// first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time when no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
