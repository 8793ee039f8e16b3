package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// File actions recorded in run_files.
const (
	ActionPushed    = "pushed"
	ActionAnnotated = "annotated"
	ActionCleaned   = "cleaned"
	ActionPulled    = "pulled"
)

// Run is one journaled push or pull.
type Run struct {
	ID        string
	Command   string
	StartedAt time.Time
	Tests     int
	Outcome   string
	Files     []RunFile
}

// RunFile is a file a run touched and what it did to it.
type RunFile struct {
	Path   string
	Action string
}

// RecordRun stores run and its files in one transaction and returns the
// run id, generating one when run.ID is empty.
func RecordRun(db *sql.DB, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning run insert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs (id, command, started_at, tests, outcome) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Command, run.StartedAt.UTC().Format(time.RFC3339Nano), run.Tests, run.Outcome)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	for _, f := range run.Files {
		if _, err := tx.Exec(`INSERT INTO run_files (run_id, file_path, action) VALUES (?, ?, ?)`, run.ID, f.Path, f.Action); err != nil {
			return "", fmt.Errorf("inserting run file %s: %w", f.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return run.ID, nil
}

// RecentRuns returns up to limit runs, newest first, with their files.
func RecentRuns(db *sql.DB, limit int) ([]Run, error) {
	rows, err := db.Query(`
		SELECT id, command, started_at, tests, outcome
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.ID, &r.Command, &started, &r.Tests, &r.Outcome); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, err = time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("parsing started_at of run %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	for i := range runs {
		files, err := runFiles(db, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Files = files
	}
	return runs, nil
}

func runFiles(db *sql.DB, runID string) ([]RunFile, error) {
	rows, err := db.Query(`SELECT file_path, action FROM run_files WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying files of run %s: %w", runID, err)
	}
	defer rows.Close()

	var files []RunFile
	for rows.Next() {
		var f RunFile
		if err := rows.Scan(&f.Path, &f.Action); err != nil {
			return nil, fmt.Errorf("scanning run file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
