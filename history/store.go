// Package history archives exported reports in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/nexus-skeleton/libcheck/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	exported_at INTEGER NOT NULL,
	total       INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	pass_rate   INTEGER NOT NULL,
	report      BLOB NOT NULL -- snappy compressed
);
CREATE INDEX IF NOT EXISTS runs_exported_at ON runs (exported_at);
`

// ErrNotFound is returned when a run is not in the archive
var ErrNotFound = errors.New("run not found")

// Run is the archived summary of a single exported report
type Run struct {
	RunID      string
	ExportedAt time.Time
	Total      int
	Passed     int
	Failed     int
	Skipped    int
	PassRate   int
}

// Store is a SQLite backed report archive
type Store struct {
	db *sql.DB
}

// Open opens (and creates when missing) the archive at path. Use ":memory:" for a private in-memory archive.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open history database %s", path)
	}
	// A single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create history schema")
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Save archives a report. Saving the same run id again replaces the earlier entry.
func (s *Store) Save(ctx context.Context, report []byte) (*Run, error) {
	parsed, err := types.ParseReport(report)
	if err != nil {
		return nil, errors.Wrap(err, "refusing to archive invalid report")
	}
	if parsed.Metadata.RunID == "" {
		return nil, errors.New("report has no run id")
	}

	run := &Run{
		RunID:      parsed.Metadata.RunID,
		ExportedAt: parsed.Metadata.ExportedAt,
		Total:      parsed.Summary.Total,
		Passed:     parsed.Summary.Passed,
		Failed:     parsed.Summary.Failed,
		Skipped:    parsed.Summary.Skipped,
		PassRate:   parsed.Summary.PassRate(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (run_id, exported_at, total, passed, failed, skipped, pass_rate, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.ExportedAt.UnixMilli(), run.Total, run.Passed, run.Failed, run.Skipped, run.PassRate, snappy.Encode(nil, report))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to archive run %s", run.RunID)
	}
	return run, nil
}

// List returns up to limit runs, newest first. A limit of 0 returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT run_id, exported_at, total, passed, failed, skipped, pass_rate FROM runs ORDER BY exported_at DESC, run_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var exportedAt int64
		if err := rows.Scan(&run.RunID, &exportedAt, &run.Total, &run.Passed, &run.Failed, &run.Skipped, &run.PassRate); err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		run.ExportedAt = time.UnixMilli(exportedAt)
		runs = append(runs, run)
	}
	return runs, errors.Wrap(rows.Err(), "failed to iterate runs")
}

// Get returns the archived report for a run
func (s *Store) Get(ctx context.Context, runID string) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE run_id = ?`, runID).Scan(&compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load run %s", runID)
	}
	report, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, errors.Wrapf(err, "corrupt report for run %s", runID)
	}
	return report, nil
}
