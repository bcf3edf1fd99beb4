package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/sitemapper/internal/model"
	_ "modernc.org/sqlite" // SQLite driver
)

// DBFileName is the name of the database file inside the data directory.
const DBFileName = "sitemapper.db"

// DB is the run history store.
type DB struct {
	db     *sql.DB
	dbPath string
}

// Options configures DB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the options used by the crawl command.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens the history database in dbDir.
func Open(dbDir string, opts Options) (*DB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; batch runs share this connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	h := &DB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := h.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return h, nil
}

// Close closes the database connection.
func (h *DB) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *DB) Path() string {
	return h.dbPath
}

func (h *DB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_uuid TEXT NOT NULL UNIQUE,
		root TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		status TEXT NOT NULL,
		pages_fetched INTEGER NOT NULL DEFAULT 0,
		url_count INTEGER NOT NULL DEFAULT 0,
		failure_count INTEGER NOT NULL DEFAULT 0,
		sitemap_path TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_root ON runs(root);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- position keeps discovery order
	CREATE TABLE IF NOT EXISTS run_urls (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		PRIMARY KEY (run_id, position)
	);

	CREATE TABLE IF NOT EXISTS run_failures (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		error TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_failures_run ON run_failures(run_id);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// Run is the summary of a stored run, without its URL list.
type Run struct {
	// ID is the database row ID, used by "history --with-run-id".
	ID int64 `json:"id"`

	// RunID is the report's UUID.
	RunID uuid.UUID `json:"run_id"`

	Root         string       `json:"root"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	Status       model.Status `json:"status"`
	PagesFetched int          `json:"pages_fetched"`
	URLCount     int          `json:"url_count"`
	FailureCount int          `json:"failure_count"`
	SitemapPath  string       `json:"sitemap_path,omitempty"`
	Error        string       `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// SaveRun stores a finished report and returns its row ID.
func (h *DB) SaveRun(ctx context.Context, report *model.CrawlReport) (int64, error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	finished := report.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (run_uuid, root, started_at, finished_at, status, pages_fetched,
		url_count, failure_count, sitemap_path, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID.String(),
		report.Root,
		formatTimestamp(report.StartedAt),
		formatTimestamp(finished),
		report.Status().String(),
		report.PagesFetched,
		len(report.URLs),
		len(report.Failures),
		report.SitemapPath,
		report.ErrorMessage,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	if len(report.URLs) > 0 {
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO run_urls (run_id, position, url) VALUES (?, ?, ?)")
		if err != nil {
			return 0, fmt.Errorf("failed to prepare url insert: %w", err)
		}
		defer stmt.Close()

		for i, u := range report.URLs {
			if _, err := stmt.ExecContext(ctx, id, i, u); err != nil {
				return 0, fmt.Errorf("failed to insert url: %w", err)
			}
		}
	}

	for _, f := range report.Failures {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO run_failures (run_id, url, error) VALUES (?, ?, ?)",
			id, f.URL, f.Error,
		); err != nil {
			return 0, fmt.Errorf("failed to insert failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

// ListRoots returns every root with at least one stored run, sorted.
func (h *DB) ListRoots(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, "SELECT DISTINCT root FROM runs ORDER BY root")
	if err != nil {
		return nil, fmt.Errorf("failed to list roots: %w", err)
	}
	defer rows.Close()

	var roots []string
	for rows.Next() {
		var root string
		if err := rows.Scan(&root); err != nil {
			return nil, fmt.Errorf("failed to scan root: %w", err)
		}
		roots = append(roots, root)
	}
	return roots, rows.Err()
}

const runColumns = `id, run_uuid, root, started_at, finished_at, status, pages_fetched,
	url_count, failure_count, sitemap_path, error`

// ListRuns returns the runs stored for root, newest first.
func (h *DB) ListRuns(ctx context.Context, root string) ([]Run, error) {
	return h.queryRuns(ctx, "SELECT "+runColumns+" FROM runs WHERE root = ? ORDER BY started_at DESC, id DESC", root)
}

// LatestRuns returns up to n full reports for root, newest first.
func (h *DB) LatestRuns(ctx context.Context, root string, n int) ([]*model.CrawlReport, error) {
	runs, err := h.queryRuns(ctx,
		"SELECT "+runColumns+" FROM runs WHERE root = ? ORDER BY started_at DESC, id DESC LIMIT ?", root, n)
	if err != nil {
		return nil, err
	}

	reports := make([]*model.CrawlReport, 0, len(runs))
	for _, run := range runs {
		report, err := h.loadReport(ctx, run)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// GetRun returns the full report stored under the given row ID.
func (h *DB) GetRun(ctx context.Context, id int64) (*model.CrawlReport, error) {
	runs, err := h.queryRuns(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	return h.loadReport(ctx, runs[0])
}

func (h *DB) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			runUUID    string
			startedAt  string
			finishedAt string
			status     string
		)
		if err := rows.Scan(
			&run.ID,
			&runUUID,
			&run.Root,
			&startedAt,
			&finishedAt,
			&status,
			&run.PagesFetched,
			&run.URLCount,
			&run.FailureCount,
			&run.SitemapPath,
			&run.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.RunID, _ = uuid.Parse(runUUID) //nolint:errcheck // rows are written by SaveRun
		run.StartedAt = parseTimestamp(startedAt)
		run.FinishedAt = parseTimestamp(finishedAt)
		run.Status = model.ParseStatus(status)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (h *DB) loadReport(ctx context.Context, run Run) (*model.CrawlReport, error) {
	report := &model.CrawlReport{
		ID:           run.RunID,
		Root:         run.Root,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		URLs:         make([]string, 0, run.URLCount),
		PagesFetched: run.PagesFetched,
		SitemapPath:  run.SitemapPath,
		ErrorMessage: run.Error,
	}

	rows, err := h.db.QueryContext(ctx, "SELECT url FROM run_urls WHERE run_id = ? ORDER BY position", run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query urls: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		report.URLs = append(report.URLs, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	frows, err := h.db.QueryContext(ctx, "SELECT url, error FROM run_failures WHERE run_id = ? ORDER BY rowid", run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer frows.Close()
	for frows.Next() {
		var f model.FetchFailure
		if err := frows.Scan(&f.URL, &f.Error); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		report.Failures = append(report.Failures, f)
	}
	return report, frows.Err()
}

// timestampLayout is how run times are stored. It sorts lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats are tried in order when reading a stored time.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time for values in no known format.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
