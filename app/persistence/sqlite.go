// Package persistence keeps the pipeline's local state in SQLite: generated
// versions, student-to-version assignments and publish run results. The store
// is what the status server and the resync read from.
package persistence

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver
)

// VersionInfo is a generated dataset variant with its LMS artifacts.
type VersionInfo struct {
	Version   string    `db:"version" json:"version"`
	Rows      int       `db:"rows" json:"rows"`
	QuizID    int64     `db:"quiz_id" json:"quiz_id,omitempty"`
	FileID    int64     `db:"file_id" json:"file_id,omitempty"`
	FileURL   string    `db:"file_url" json:"file_url,omitempty"`
	Published bool      `db:"published" json:"published"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AssignmentInfo maps one student to their version.
type AssignmentInfo struct {
	StudentID   int64  `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
	Version     string `db:"version" json:"version"`
	OverrideID  int64  `db:"override_id" json:"override_id,omitempty"`
}

// RunInfo records one publish run.
type RunInfo struct {
	ID         string    `db:"id" json:"id"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
	Status     string    `db:"status" json:"status"` // ok, partial or failed
	Versions   int       `db:"versions" json:"versions"`
	Failed     int       `db:"failed" json:"failed"`
}

// Run statuses.
const (
	RunStatusOK      = "ok"
	RunStatusPartial = "partial"
	RunStatusFailed  = "failed"
)

// SQLiteStore implements persistence using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) the store and sets WAL mode.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to set WAL mode: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Initialize creates the database schema.
func (s *SQLiteStore) Initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS versions (
			version TEXT PRIMARY KEY,
			rows INTEGER NOT NULL,
			quiz_id INTEGER DEFAULT 0,
			file_id INTEGER DEFAULT 0,
			file_url TEXT DEFAULT '',
			published BOOLEAN DEFAULT 0,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS assignments (
			student_id INTEGER PRIMARY KEY,
			student_name TEXT DEFAULT '',
			version TEXT NOT NULL,
			override_id INTEGER DEFAULT 0,
			FOREIGN KEY (version) REFERENCES versions(version)
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TIMESTAMP,
			finished_at TIMESTAMP,
			status TEXT,
			versions INTEGER,
			failed INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_version ON assignments(version)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// SaveVersion upserts one version record.
func (s *SQLiteStore) SaveVersion(v VersionInfo) error {
	v.UpdatedAt = time.Now()
	_, err := s.db.NamedExec(`
		INSERT OR REPLACE INTO versions (version, rows, quiz_id, file_id, file_url, published, updated_at)
		VALUES (:version, :rows, :quiz_id, :file_id, :file_url, :published, :updated_at)`, v)
	if err != nil {
		return fmt.Errorf("failed to save version %s: %w", v.Version, err)
	}
	return nil
}

// LoadVersions returns all versions ordered by hash.
func (s *SQLiteStore) LoadVersions() ([]VersionInfo, error) {
	res := []VersionInfo{}
	if err := s.db.Select(&res, `SELECT * FROM versions ORDER BY version`); err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	return res, nil
}

// SaveAssignments replaces the full student-to-version mapping in one transaction.
func (s *SQLiteStore) SaveAssignments(assignments []AssignmentInfo) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint errcheck // rollback on commit is a no-op

	if _, err := tx.Exec(`DELETE FROM assignments`); err != nil {
		return fmt.Errorf("failed to clear assignments: %w", err)
	}
	for _, a := range assignments {
		_, err := tx.NamedExec(`
			INSERT INTO assignments (student_id, student_name, version, override_id)
			VALUES (:student_id, :student_name, :version, :override_id)`, a)
		if err != nil {
			return fmt.Errorf("failed to save assignment for student %d: %w", a.StudentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadAssignments returns all assignments ordered by student id.
func (s *SQLiteStore) LoadAssignments() ([]AssignmentInfo, error) {
	res := []AssignmentInfo{}
	if err := s.db.Select(&res, `SELECT * FROM assignments ORDER BY student_id`); err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	return res, nil
}

// RecordRun logs a publish run result.
func (s *SQLiteStore) RecordRun(r RunInfo) error {
	_, err := s.db.NamedExec(`
		INSERT OR REPLACE INTO runs (id, started_at, finished_at, status, versions, failed)
		VALUES (:id, :started_at, :finished_at, :status, :versions, :failed)`, r)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", r.ID, err)
	}
	return nil
}

// LoadRuns returns up to limit most recent runs.
func (s *SQLiteStore) LoadRuns(limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	res := []RunInfo{}
	if err := s.db.Select(&res, `SELECT * FROM runs ORDER BY started_at DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	return res, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
