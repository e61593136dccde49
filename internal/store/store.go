// Package store handles SQLite persistence of scoring runs.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/abequet/Psycho-Tasks/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for the run archive.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			input_root TEXT NOT NULL,
			output_path TEXT NOT NULL,
			participants INTEGER NOT NULL,
			files INTEGER NOT NULL,
			warnings INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS run_blocks (
			run_id INTEGER NOT NULL,
			participant TEXT NOT NULL,
			block INTEGER NOT NULL,
			congruent_mean REAL NOT NULL,
			incongruent_mean REAL NOT NULL,
			dscore REAL NOT NULL,
			congruent_std REAL NOT NULL,
			incongruent_std REAL NOT NULL,
			congruent_errors INTEGER NOT NULL,
			incongruent_errors INTEGER NOT NULL,
			PRIMARY KEY (run_id, participant, block)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs(finished_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun stores a completed scoring run and its block summaries.
func (s *Store) InsertRun(ctx context.Context, rec model.RunRecord, blocks []model.ArchivedBlock) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, finished_at, input_root, output_path, participants, files, warnings)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.StartedAt.Format(time.RFC3339Nano),
		rec.FinishedAt.Format(time.RFC3339Nano),
		rec.InputRoot,
		rec.OutputPath,
		rec.Participants,
		rec.Files,
		rec.Warnings,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(blocks) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO run_blocks (run_id, participant, block, congruent_mean, incongruent_mean, dscore, congruent_std, incongruent_std, congruent_errors, incongruent_errors)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, b := range blocks {
			if _, err := stmt.ExecContext(ctx, id, b.Participant, b.Block,
				b.Summary.CongruentMean, b.Summary.IncongruentMean, b.Summary.DScore,
				b.Summary.CongruentStd, b.Summary.IncongruentStd,
				b.Summary.CongruentErrors, b.Summary.IncongruentErrors); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// ListRuns returns the most recent runs, newest first. A non-positive
// limit returns everything.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, input_root, output_path, participants, files, warnings
		 FROM runs
		 ORDER BY finished_at DESC, id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.RunRecord
	for rows.Next() {
		var rec model.RunRecord
		var startedAt, finishedAt string
		if err := rows.Scan(&rec.ID, &startedAt, &finishedAt, &rec.InputRoot, &rec.OutputPath, &rec.Participants, &rec.Files, &rec.Warnings); err != nil {
			return nil, err
		}
		if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, err
		}
		if rec.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListRunBlocks returns the archived block summaries for one run.
func (s *Store) ListRunBlocks(ctx context.Context, runID int64) ([]model.ArchivedBlock, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT participant, block, congruent_mean, incongruent_mean, dscore, congruent_std, incongruent_std, congruent_errors, incongruent_errors
		 FROM run_blocks
		 WHERE run_id = ?
		 ORDER BY participant ASC, block ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.ArchivedBlock
	for rows.Next() {
		var b model.ArchivedBlock
		if err := rows.Scan(&b.Participant, &b.Block,
			&b.Summary.CongruentMean, &b.Summary.IncongruentMean, &b.Summary.DScore,
			&b.Summary.CongruentStd, &b.Summary.IncongruentStd,
			&b.Summary.CongruentErrors, &b.Summary.IncongruentErrors); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
