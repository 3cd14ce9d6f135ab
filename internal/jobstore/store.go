// Package jobstore persists per-video pipeline state in a local SQLite
// database next to the artifact workspace.
package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"vidqa/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS video_jobs (
	video_id   TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// Store tracks VideoJob records. SQLite keeps the state durable across
// restarts while staying a plain local file, which makes a video's whole
// footprint removable as one local set.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates (or opens) the job database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("jobstore: mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("jobstore: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("jobstore: init schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Get returns the job for a video id, or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, videoID string) (domain.VideoJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT video_id, state, error, created_at, updated_at FROM video_jobs WHERE video_id = ?`, videoID)
	return scanJob(row)
}

// Create inserts a fresh Queued job. A duplicate id is rejected with
// domain.ErrAlreadyInProgress; the caller must delete the old record first.
func (s *Store) Create(ctx context.Context, videoID string) (domain.VideoJob, error) {
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO video_jobs (video_id, state, error, created_at, updated_at) VALUES (?, ?, '', ?, ?)`,
		videoID, string(domain.StateQueued), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		if _, getErr := s.Get(ctx, videoID); getErr == nil {
			return domain.VideoJob{}, fmt.Errorf("jobstore: create %s: %w", videoID, domain.ErrAlreadyInProgress)
		}
		return domain.VideoJob{}, fmt.Errorf("jobstore: create %s: %w", videoID, err)
	}
	return domain.VideoJob{VideoID: videoID, State: domain.StateQueued, CreatedAt: now, UpdatedAt: now}, nil
}

// Transition moves a job to the next state, enforcing the lifecycle
// table. errMsg is recorded only for transitions into Failed.
func (s *Store) Transition(ctx context.Context, videoID string, to domain.JobState, errMsg string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("jobstore: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT state FROM video_jobs WHERE video_id = ?`, videoID)
	var current string
	if err := row.Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("jobstore: transition %s: %w", videoID, domain.ErrNotFound)
		}
		return fmt.Errorf("jobstore: transition %s: %w", videoID, err)
	}
	from := domain.JobState(current)
	if !canTransition(from, to) {
		return transitionError(videoID, from, to)
	}
	if to != domain.StateFailed {
		errMsg = ""
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE video_jobs SET state = ?, error = ?, updated_at = ? WHERE video_id = ?`,
		string(to), errMsg, s.now().UTC().Format(time.RFC3339Nano), videoID)
	if err != nil {
		return fmt.Errorf("jobstore: transition %s: %w", videoID, err)
	}
	return tx.Commit()
}

// Delete removes a job record entirely. Used by cleanup and by explicit
// re-submission of a failed video after its artifacts are torn down.
func (s *Store) Delete(ctx context.Context, videoID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM video_jobs WHERE video_id = ?`, videoID)
	if err != nil {
		return fmt.Errorf("jobstore: delete %s: %w", videoID, err)
	}
	return nil
}

// List returns all known jobs ordered by creation time.
func (s *Store) List(ctx context.Context) ([]domain.VideoJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT video_id, state, error, created_at, updated_at FROM video_jobs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("jobstore: list: %w", err)
	}
	defer rows.Close()
	var jobs []domain.VideoJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (domain.VideoJob, error) {
	var job domain.VideoJob
	var state, created, updated string
	if err := row.Scan(&job.VideoID, &state, &job.Error, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.VideoJob{}, domain.ErrNotFound
		}
		return domain.VideoJob{}, fmt.Errorf("jobstore: scan: %w", err)
	}
	job.State = domain.JobState(state)
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		job.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		job.UpdatedAt = t
	}
	return job, nil
}
