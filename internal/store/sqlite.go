package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// Store provides SQLite-backed run history
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a new Store, opening the SQLite database and running migrations
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// :memory: databases are per-connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Debug("Store initialized", "path", dbPath)
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// ============================================================================
// Run Operations
// ============================================================================

// CreateRun inserts a new Run and sets its ID
func (s *Store) CreateRun(run *Run) error {
	if run.Status == "" {
		run.Status = StatusRunning
	}

	const query = `
		INSERT INTO runs (
			kind, manifest, start_time, end_time, items_ok, items_changed,
			items_failed, bytes, status, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		run.Kind, run.Manifest, run.StartTime, run.EndTime, run.ItemsOK,
		run.ItemsChanged, run.ItemsFailed, run.Bytes, run.Status, run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	run.ID = id
	return nil
}

// UpdateRun updates an existing Run by ID
func (s *Store) UpdateRun(run *Run) error {
	const query = `
		UPDATE runs SET
			kind = ?, manifest = ?, start_time = ?, end_time = ?, items_ok = ?,
			items_changed = ?, items_failed = ?, bytes = ?, status = ?,
			error_message = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(
		query,
		run.Kind, run.Manifest, run.StartTime, run.EndTime, run.ItemsOK,
		run.ItemsChanged, run.ItemsFailed, run.Bytes, run.Status,
		run.ErrorMessage, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("run %d: %w", run.ID, ErrNotFound)
	}

	return nil
}

// GetRun retrieves a Run by ID
func (s *Store) GetRun(id int64) (*Run, error) {
	const query = `
		SELECT id, kind, manifest, start_time, end_time, items_ok, items_changed,
		       items_failed, bytes, status, error_message
		FROM runs WHERE id = ?
	`

	run := &Run{}
	err := s.db.QueryRow(query, id).Scan(
		&run.ID, &run.Kind, &run.Manifest, &run.StartTime, &run.EndTime,
		&run.ItemsOK, &run.ItemsChanged, &run.ItemsFailed, &run.Bytes,
		&run.Status, &run.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	return run, nil
}

// ListRuns retrieves Runs newest first, optionally filtered by kind and limited
func (s *Store) ListRuns(kind string, limit int) ([]Run, error) {
	query := `
		SELECT id, kind, manifest, start_time, end_time, items_ok, items_changed,
		       items_failed, bytes, status, error_message
		FROM runs
	`
	var args []interface{}

	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}

	query += " ORDER BY start_time DESC, id DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run := Run{}
		err := rows.Scan(
			&run.ID, &run.Kind, &run.Manifest, &run.StartTime, &run.EndTime,
			&run.ItemsOK, &run.ItemsChanged, &run.ItemsFailed, &run.Bytes,
			&run.Status, &run.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// ============================================================================
// RunItem Operations
// ============================================================================

// AddRunItems inserts items for a run in a single transaction
func (s *Store) AddRunItems(runID int64, items []RunItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO run_items (run_id, coordinate, outcome, detail)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare run item insert: %w", err)
	}
	defer stmt.Close()

	for i := range items {
		items[i].RunID = runID
		result, err := stmt.Exec(runID, items[i].Coordinate, items[i].Outcome, items[i].Detail)
		if err != nil {
			return fmt.Errorf("failed to insert run item %q: %w", items[i].Coordinate, err)
		}
		if id, err := result.LastInsertId(); err == nil {
			items[i].ID = id
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run items: %w", err)
	}
	return nil
}

// ListRunItems retrieves all items of a run in insertion order
func (s *Store) ListRunItems(runID int64) ([]RunItem, error) {
	const query = `
		SELECT id, run_id, coordinate, outcome, detail
		FROM run_items WHERE run_id = ? ORDER BY id
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run items: %w", err)
	}
	defer rows.Close()

	var items []RunItem
	for rows.Next() {
		it := RunItem{}
		if err := rows.Scan(&it.ID, &it.RunID, &it.Coordinate, &it.Outcome, &it.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan run item: %w", err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run items: %w", err)
	}

	return items, nil
}

// ============================================================================
// Archive Operations
// ============================================================================

// CreateArchive inserts a new Archive and sets its ID
func (s *Store) CreateArchive(a *Archive) error {
	const query = `
		INSERT INTO archives (
			run_id, name, sha256, size, file_count, verified, verified_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		a.RunID, a.Name, a.SHA256, a.Size, a.FileCount,
		a.Verified, a.VerifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert archive: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	a.ID = id
	return nil
}

// ListArchives retrieves all archives produced by a run
func (s *Store) ListArchives(runID int64) ([]Archive, error) {
	const query = `
		SELECT id, run_id, name, sha256, size, file_count, verified, verified_at
		FROM archives WHERE run_id = ? ORDER BY name
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query archives: %w", err)
	}
	defer rows.Close()

	var archives []Archive
	for rows.Next() {
		a := Archive{}
		err := rows.Scan(
			&a.ID, &a.RunID, &a.Name, &a.SHA256,
			&a.Size, &a.FileCount, &a.Verified, &a.VerifiedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archive: %w", err)
		}
		archives = append(archives, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archives: %w", err)
	}

	return archives, nil
}

// MarkArchiveVerified flags every recorded archive with the given name and
// checksum as verified and returns how many rows matched.
func (s *Store) MarkArchiveVerified(name, sha256 string) (int64, error) {
	const query = `
		UPDATE archives SET verified = 1, verified_at = ?
		WHERE name = ? AND sha256 = ?
	`

	result, err := s.db.Exec(query, time.Now(), name, sha256)
	if err != nil {
		return 0, fmt.Errorf("failed to mark archive verified: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
