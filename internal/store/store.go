// Package store persists processing jobs and their metrics in SQLite so the
// service keeps a queryable history of every signal it has processed.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrJobNotFound is returned when no job row exists for an ID.
var ErrJobNotFound = errors.New("processing job not found")

// Job is one persisted processing run with its metrics record.
type Job struct {
	ID            string
	Op            string
	SampleRate    int
	NumSamples    int
	EchoDelayMs   float64
	ERLE          float64
	REA           float64
	SNR           float64
	LatencyMs     float64
	ConvergenceMs float64
	CreatedAt     time.Time
}

// Store persists job history in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database and runs migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	st := &Store{db: db}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("sqlite store opened", "path", path)
	return st, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	op TEXT NOT NULL,
	sample_rate INTEGER NOT NULL CHECK(sample_rate > 0),
	num_samples INTEGER NOT NULL CHECK(num_samples >= 0),
	echo_delay_ms REAL NOT NULL,
	erle REAL NOT NULL DEFAULT 0,
	rea REAL NOT NULL DEFAULT 0,
	snr REAL NOT NULL DEFAULT 0,
	latency_ms REAL NOT NULL DEFAULT 0,
	convergence_ms REAL NOT NULL DEFAULT 0,
	created_at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at_unix_ms);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("run sqlite migrations: %w", err)
	}
	slog.Debug("sqlite migrations applied")
	return nil
}

// CreateJob inserts one job row.
func (s *Store) CreateJob(ctx context.Context, job Job) error {
	if strings.TrimSpace(job.ID) == "" {
		return fmt.Errorf("job id is required")
	}
	if strings.TrimSpace(job.Op) == "" {
		return fmt.Errorf("job op is required")
	}
	if job.SampleRate <= 0 {
		return fmt.Errorf("job sample rate must be positive")
	}
	if job.NumSamples < 0 {
		return fmt.Errorf("job sample count must be non-negative")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	const q = `
INSERT INTO jobs (
	id, op, sample_rate, num_samples, echo_delay_ms,
	erle, rea, snr, latency_ms, convergence_ms, created_at_unix_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	_, err := s.db.ExecContext(
		ctx,
		q,
		job.ID,
		job.Op,
		job.SampleRate,
		job.NumSamples,
		job.EchoDelayMs,
		job.ERLE,
		job.REA,
		job.SNR,
		job.LatencyMs,
		job.ConvergenceMs,
		job.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	slog.Debug("job persisted", "job_id", job.ID, "op", job.Op, "samples", job.NumSamples)
	return nil
}

// JobByID returns one job by its UUID.
func (s *Store) JobByID(ctx context.Context, id string) (Job, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Job{}, fmt.Errorf("job id is required")
	}

	const q = `
SELECT id, op, sample_rate, num_samples, echo_delay_ms,
       erle, rea, snr, latency_ms, convergence_ms, created_at_unix_ms
FROM jobs
WHERE id = ?
`
	var (
		job       Job
		createdMs int64
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&job.ID,
		&job.Op,
		&job.SampleRate,
		&job.NumSamples,
		&job.EchoDelayMs,
		&job.ERLE,
		&job.REA,
		&job.SNR,
		&job.LatencyMs,
		&job.ConvergenceMs,
		&createdMs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrJobNotFound
		}
		return Job{}, fmt.Errorf("query job: %w", err)
	}
	job.CreatedAt = time.UnixMilli(createdMs).UTC()
	return job, nil
}

// RecentJobs returns the most recent jobs, newest first.
func (s *Store) RecentJobs(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, op, sample_rate, num_samples, echo_delay_ms,
       erle, rea, snr, latency_ms, convergence_ms, created_at_unix_ms
FROM jobs
ORDER BY created_at_unix_ms DESC, id DESC
LIMIT ?
`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var (
			job       Job
			createdMs int64
		)
		if err := rows.Scan(
			&job.ID,
			&job.Op,
			&job.SampleRate,
			&job.NumSamples,
			&job.EchoDelayMs,
			&job.ERLE,
			&job.REA,
			&job.SNR,
			&job.LatencyMs,
			&job.ConvergenceMs,
			&createdMs,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.CreatedAt = time.UnixMilli(createdMs).UTC()
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// JobCount returns the total number of persisted jobs.
func (s *Store) JobCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return n, nil
}
