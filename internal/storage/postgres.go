// Package storage implements the durable job/result store on PostgreSQL
// and a Redis cache for per-job progress marks.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/siteaudit/internal/domain"
)

// dbPool is the slice of pgxpool.Pool the store uses, kept as an
// interface so tests can stand in for the pool.
type dbPool interface {
	Ping(ctx context.Context) error
	Close()
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresStore handles all interactions with the job database.
type PostgresStore struct {
	db dbPool
}

// NewPostgresStore connects a pool to the given database URL.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Ping verifies connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.db.Close()
}

// --- jobs ---

const jobColumns = `id, project_id, status, started_at, completed_at,
	pages_discovered, pages_crawled, pages_failed, settings_snapshot, created_at`

func scanJob(row pgx.Row) (*domain.CrawlJob, error) {
	var job domain.CrawlJob
	var settings []byte
	err := row.Scan(&job.ID, &job.ProjectID, &job.Status, &job.StartedAt, &job.CompletedAt,
		&job.PagesDiscovered, &job.PagesCrawled, &job.PagesFailed, &settings, &job.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &job.Settings); err != nil {
			return nil, fmt.Errorf("decode settings snapshot for job %d: %w", job.ID, err)
		}
	}
	return &job, nil
}

// GetJob loads one job row.
func (s *PostgresStore) GetJob(ctx context.Context, id int64) (*domain.CrawlJob, error) {
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM crawl_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("job %d not found", id)
	}
	return job, err
}

// GetProject loads the project a job belongs to.
func (s *PostgresStore) GetProject(ctx context.Context, id int64) (*domain.Project, error) {
	var p domain.Project
	var settings []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, domain, crawl_settings FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.Domain, &settings)
	if err != nil {
		return nil, fmt.Errorf("project %d: %w", id, err)
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &p.Settings); err != nil {
			return nil, fmt.Errorf("decode settings for project %d: %w", id, err)
		}
	}
	return &p, nil
}

// OldestPendingJob returns the oldest pending job, or nil when the queue
// is empty.
func (s *PostgresStore) OldestPendingJob(ctx context.Context) (*domain.CrawlJob, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM crawl_jobs WHERE status = 'pending' ORDER BY created_at LIMIT 1`)
	job, err := scanJob(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return job, err
}

// MarkProcessing transitions a pending job to processing. Returns false
// when another worker claimed it first.
func (s *PostgresStore) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE crawl_jobs SET status = 'processing', started_at = NOW() WHERE id = $1 AND status = 'pending'`,
		id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateProgress writes the monotonic counters and the URL currently
// being fetched.
func (s *PostgresStore) UpdateProgress(ctx context.Context, id int64, discovered, crawled, failed int, progress float64, currentURL string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE crawl_jobs
		 SET pages_discovered = $2, pages_crawled = $3, pages_failed = $4,
		     progress_percentage = $5, current_url = $6
		 WHERE id = $1`,
		id, discovered, crawled, failed, progress, currentURL)
	return err
}

// JobFinal carries everything written at finalize.
type JobFinal struct {
	Status          domain.JobStatus
	DurationSeconds int
	PagesDiscovered int
	PagesCrawled    int
	PagesFailed     int
	HealthScore     *int
	TotalIssues     int
	ErrorsCount     int
	WarningsCount   int
	NoticesCount    int
	PassedCount     int
	CategoryScores  map[string]int
	ErrorMessage    string
}

// FinalizeJob writes the terminal state. The status column only moves
// when the job is still processing, so a terminal status written
// externally wins; counters and scores update either way.
func (s *PostgresStore) FinalizeJob(ctx context.Context, id int64, final JobFinal) error {
	scores, err := json.Marshal(final.CategoryScores)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE crawl_jobs
		 SET completed_at = NOW(), duration_seconds = $2,
		     pages_discovered = $3, pages_crawled = $4, pages_failed = $5,
		     progress_percentage = 100, health_score = $6,
		     total_issues = $7, errors_count = $8, warnings_count = $9,
		     notices_count = $10, passed_count = $11, category_scores = $12,
		     error_message = NULLIF($13, '')
		 WHERE id = $1`,
		id, final.DurationSeconds, final.PagesDiscovered, final.PagesCrawled,
		final.PagesFailed, final.HealthScore, final.TotalIssues, final.ErrorsCount,
		final.WarningsCount, final.NoticesCount, final.PassedCount, scores,
		final.ErrorMessage)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE crawl_jobs SET status = $2 WHERE id = $1 AND status = 'processing'`,
		id, final.Status)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// MarkFailed sets a job failed with a message, regardless of counters.
func (s *PostgresStore) MarkFailed(ctx context.Context, id int64, message string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE crawl_jobs SET status = 'failed', completed_at = NOW(), error_message = $2
		 WHERE id = $1 AND status IN ('pending', 'processing')`,
		id, message)
	return err
}

// RecoverStaleJobs flips processing jobs whose start time is older than
// the cutoff back to pending. Returns how many were recovered.
func (s *PostgresStore) RecoverStaleJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE crawl_jobs
		 SET status = 'pending', started_at = NULL,
		     error_message = 'Recovered: worker lost while processing'
		 WHERE status = 'processing' AND started_at < NOW() - $1::interval`,
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// RecentFailedJobs returns up to limit failed jobs inside the window with
// more than minPages crawled, newest first.
func (s *PostgresStore) RecentFailedJobs(ctx context.Context, window time.Duration, minPages, limit int) ([]*domain.CrawlJob, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+jobColumns+` FROM crawl_jobs
		 WHERE status = 'failed' AND completed_at > NOW() - $1::interval AND pages_crawled > $2
		 ORDER BY completed_at DESC LIMIT $3`,
		fmt.Sprintf("%d seconds", int(window.Seconds())), minPages, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.CrawlJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ProjectHasActiveJob reports whether the project already has a pending
// or processing job.
func (s *PostgresStore) ProjectHasActiveJob(ctx context.Context, projectID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM crawl_jobs WHERE project_id = $1 AND status IN ('pending', 'processing'))`,
		projectID).Scan(&exists)
	return exists, err
}

// CreateResumeJob inserts a new pending job carrying resume info.
func (s *PostgresStore) CreateResumeJob(ctx context.Context, projectID int64, settings domain.CrawlSettings) (int64, error) {
	snapshot, err := json.Marshal(settings)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.db.QueryRow(ctx,
		`INSERT INTO crawl_jobs (project_id, status, settings_snapshot) VALUES ($1, 'pending', $2) RETURNING id`,
		projectID, snapshot).Scan(&id)
	return id, err
}

// CrawledURLs lists the URLs a job already wrote page rows for.
func (s *PostgresStore) CrawledURLs(ctx context.Context, jobID int64) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT url FROM crawled_pages WHERE crawl_id = $1`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// LoadIssueDefinitions loads the issue catalogue.
func (s *PostgresStore) LoadIssueDefinitions(ctx context.Context) ([]domain.IssueDefinition, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, code, name, category, severity, active FROM issue_definitions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []domain.IssueDefinition
	for rows.Next() {
		var def domain.IssueDefinition
		if err := rows.Scan(&def.ID, &def.Code, &def.Name, &def.Category, &def.Severity, &def.Active); err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}
