// Package history keeps a local SQLite ledger of download runs: when each
// run started, which project it mirrored, and how it ended.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run ID is not in the ledger.
var ErrRunNotFound = errors.New("history: run not found")

// Status is the terminal state of a run.
type Status string

const (
	StatusRunning  Status = "running"
	StatusOK       Status = "ok"
	StatusPartial  Status = "partial"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

const (
	sqlInsertRun = `INSERT INTO runs
		(id, company_id, project_id, project_name, output_dir, dry_run, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, 'running', ?)`

	sqlFinishRun = `UPDATE runs SET
		status = ?, finished_at = ?, folders = ?, files = ?,
		succeeded = ?, failed = ?, bytes = ?, error = ?
		WHERE id = ?`

	sqlInsertFailure = `INSERT INTO failures
		(run_id, remote_path, local_path, error, recorded_at)
		VALUES (?, ?, ?, ?, ?)`

	sqlListRuns = `SELECT id, company_id, project_id, project_name, output_dir,
		dry_run, status, started_at, finished_at, folders, files,
		succeeded, failed, bytes, error
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`

	sqlListFailures = `SELECT remote_path, local_path, error, recorded_at
		FROM failures WHERE run_id = ? ORDER BY rowid`
)

// RunStart describes a run as it begins. An empty ID is replaced with a
// fresh UUID.
type RunStart struct {
	ID          string
	CompanyID   int64
	ProjectID   int64
	ProjectName string
	OutputDir   string
	DryRun      bool
}

// RunOutcome is what a finished run reports back.
type RunOutcome struct {
	Status    Status
	Folders   int
	Files     int
	Succeeded int
	Failed    int
	Bytes     int64
	Err       error
}

// Run is one row of the ledger.
type Run struct {
	ID          string
	CompanyID   int64
	ProjectID   int64
	ProjectName string
	OutputDir   string
	DryRun      bool
	Status      Status
	StartedAt   time.Time
	FinishedAt  time.Time // zero while running
	Folders     int
	Files       int
	Succeeded   int
	Failed      int
	Bytes       int64
	Error       string
}

// FailureRecord is one file that a run could not write.
type FailureRecord struct {
	RemotePath string
	LocalPath  string
	Error      string
	RecordedAt time.Time
}

// Store is the run ledger.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time
}

// Open opens (creating if needed) the ledger at dbPath and applies pending
// migrations.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("history: creating directory for %s: %w", dbPath, err)
	}

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"+
			"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: opening database %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("history store opened", slog.String("db_path", dbPath))

	return &Store{db: db, logger: logger, nowFunc: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("history: closing database: %w", err)
	}

	return nil
}

// BeginRun inserts a running row and returns its ID.
func (s *Store) BeginRun(ctx context.Context, start RunStart) (string, error) {
	id := start.ID
	if id == "" {
		id = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, sqlInsertRun,
		id, start.CompanyID, start.ProjectID, start.ProjectName, start.OutputDir,
		boolToInt(start.DryRun), s.nowFunc().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("history: inserting run %s: %w", id, err)
	}

	s.logger.Debug("run started",
		slog.String("run_id", id),
		slog.Int64("project_id", start.ProjectID),
	)

	return id, nil
}

// FinishRun stamps the outcome onto a run.
func (s *Store) FinishRun(ctx context.Context, id string, out RunOutcome) error {
	if out.Status == "" || out.Status == StatusRunning {
		return fmt.Errorf("history: finishing run %s: invalid status %q", id, out.Status)
	}

	var errText sql.NullString
	if out.Err != nil {
		errText = sql.NullString{String: out.Err.Error(), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, sqlFinishRun,
		string(out.Status), s.nowFunc().UnixNano(), out.Folders, out.Files,
		out.Succeeded, out.Failed, out.Bytes, errText, id,
	)
	if err != nil {
		return fmt.Errorf("history: finishing run %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("history: finishing run %s: %w", id, err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	return nil
}

// RecordFailures stores the per-file failures of a run in one transaction.
func (s *Store) RecordFailures(ctx context.Context, id string, failures []FailureRecord) error {
	if len(failures) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, sqlInsertFailure)
	if err != nil {
		return fmt.Errorf("history: preparing failure insert: %w", err)
	}
	defer stmt.Close()

	now := s.nowFunc().UnixNano()

	for i := range failures {
		f := &failures[i]

		recorded := now
		if !f.RecordedAt.IsZero() {
			recorded = f.RecordedAt.UnixNano()
		}

		if _, err := stmt.ExecContext(ctx, id, f.RemotePath, f.LocalPath, f.Error, recorded); err != nil {
			return fmt.Errorf("history: recording failure for %s: %w", f.RemotePath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: committing failures: %w", err)
	}

	return nil
}

// ListRuns returns the most recent runs first. A non-positive limit means 20.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, sqlListRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("history: listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run

	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}

		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating runs: %w", err)
	}

	return runs, nil
}

// Failures returns the failures recorded for a run, in insertion order.
func (s *Store) Failures(ctx context.Context, id string) ([]FailureRecord, error) {
	rows, err := s.db.QueryContext(ctx, sqlListFailures, id)
	if err != nil {
		return nil, fmt.Errorf("history: listing failures for %s: %w", id, err)
	}
	defer rows.Close()

	var out []FailureRecord

	for rows.Next() {
		var (
			f        FailureRecord
			recorded int64
		)

		if err := rows.Scan(&f.RemotePath, &f.LocalPath, &f.Error, &recorded); err != nil {
			return nil, fmt.Errorf("history: scanning failure row: %w", err)
		}

		f.RecordedAt = time.Unix(0, recorded)
		out = append(out, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating failures: %w", err)
	}

	return out, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		r        Run
		dryRun   int
		status   string
		started  int64
		finished sql.NullInt64
		errText  sql.NullString
	)

	err := rows.Scan(&r.ID, &r.CompanyID, &r.ProjectID, &r.ProjectName, &r.OutputDir,
		&dryRun, &status, &started, &finished, &r.Folders, &r.Files,
		&r.Succeeded, &r.Failed, &r.Bytes, &errText)
	if err != nil {
		return Run{}, fmt.Errorf("history: scanning run row: %w", err)
	}

	r.DryRun = dryRun != 0
	r.Status = Status(status)
	r.StartedAt = time.Unix(0, started)
	r.Error = errText.String

	if finished.Valid {
		r.FinishedAt = time.Unix(0, finished.Int64)
	}

	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
