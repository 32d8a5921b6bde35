// Package controller drives the job lifecycle: it listens for job
// notifications, recovers stale work on boot, auto-resumes failed jobs
// with substantial progress, and runs one crawl at a time.
package controller

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/siteaudit/internal/analyzer"
	"github.com/user/siteaudit/internal/config"
	"github.com/user/siteaudit/internal/domain"
	"github.com/user/siteaudit/internal/fetcher"
	"github.com/user/siteaudit/internal/issues"
	"github.com/user/siteaudit/internal/monitoring"
	"github.com/user/siteaudit/internal/orchestrator"
	"github.com/user/siteaudit/internal/storage"
)

const (
	staleCutoff      = 5 * time.Minute
	resumeWindow     = time.Hour
	resumeMinPages   = 10
	resumeBatchLimit = 5
	resumeRetryEvery = 5 * time.Minute
)

// Controller owns the worker's single crawl slot.
type Controller struct {
	workerID string
	store    *storage.PostgresStore
	cache    *storage.RedisStore
	metrics  *monitoring.Metrics
	cfg      *config.Config
	logger   *zap.Logger

	mu     sync.Mutex
	active *activeJob
}

type activeJob struct {
	id   int64
	orch *orchestrator.Orchestrator
}

// New builds a controller with a fresh worker identity. The id only
// appears in logs and failure messages; claims are keyed by job status.
func New(store *storage.PostgresStore, cache *storage.RedisStore, metrics *monitoring.Metrics, cfg *config.Config, logger *zap.Logger) *Controller {
	workerID := uuid.NewString()
	return &Controller{
		workerID: workerID,
		store:    store,
		cache:    cache,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger.With(zap.String("worker_id", workerID)),
	}
}

// ActiveJobID returns the running job's id, or 0 when idle.
func (c *Controller) ActiveJobID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return 0
	}
	return c.active.id
}

// Run blocks until ctx is cancelled. It reconciles abandoned work first,
// then serves notifications with a polling backstop for missed ones.
func (c *Controller) Run(ctx context.Context) error {
	c.reconcile(ctx)

	notifications, err := c.store.Listen(ctx, c.logger)
	if err != nil {
		return fmt.Errorf("subscribe to job notifications: %w", err)
	}

	pollInterval := time.Duration(c.cfg.PollIntervalSec) * time.Second
	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()
	resumeTicker := time.NewTicker(resumeRetryEvery)
	defer resumeTicker.Stop()

	c.drainPending(ctx)

	for {
		select {
		case <-ctx.Done():
			c.shutdownActive()
			return ctx.Err()
		case n, ok := <-notifications:
			if !ok {
				// Stream lost; the poll ticker keeps the worker alive.
				notifications = nil
				continue
			}
			c.handleNotification(ctx, n)
		case <-pollTicker.C:
			c.drainPending(ctx)
		case <-resumeTicker.C:
			c.autoResume(ctx)
		}
	}
}

// reconcile recovers orphaned jobs and queues resumes before serving.
func (c *Controller) reconcile(ctx context.Context) {
	recovered, err := c.store.RecoverStaleJobs(ctx, staleCutoff)
	if err != nil {
		c.logger.Error("stale job recovery failed", zap.Error(err))
	} else if recovered > 0 {
		c.logger.Info("recovered stale jobs", zap.Int("count", recovered))
	}
	c.autoResume(ctx)
}

func (c *Controller) handleNotification(ctx context.Context, n domain.JobNotification) {
	switch n.Kind {
	case domain.NotifyInsert:
		if n.Status == domain.JobPending {
			c.drainPending(ctx)
		}
	case domain.NotifyUpdate:
		// A user writing a terminal status on the running job maps to a
		// cooperative cancel; the written status survives finalize.
		if n.Status != domain.JobCancelled && n.Status != domain.JobCompleted {
			return
		}
		c.mu.Lock()
		active := c.active
		c.mu.Unlock()
		if active != nil && active.id == n.JobID && active.orch != nil {
			c.logger.Info("cancelling active job",
				zap.Int64("job_id", n.JobID), zap.String("status", string(n.Status)))
			active.orch.Cancel()
		}
	}
}

// drainPending claims the oldest pending job and runs it on its own
// goroutine, so the listen loop stays responsive to cancel events.
// Pending notifications while busy are ignored; the next drain after the
// run picks the work up.
func (c *Controller) drainPending(ctx context.Context) {
	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	job, err := c.store.OldestPendingJob(ctx)
	if err != nil {
		c.logger.Error("pending job lookup failed", zap.Error(err))
		return
	}
	if job == nil {
		return
	}

	claimed, err := c.store.MarkProcessing(ctx, job.ID)
	if err != nil {
		c.logger.Error("job claim failed", zap.Int64("job_id", job.ID), zap.Error(err))
		return
	}
	if !claimed {
		return
	}

	c.mu.Lock()
	if c.active != nil {
		// Lost the slot to a concurrent drain; the job stays processing
		// and boot-time recovery will reclaim it if nothing runs it.
		c.mu.Unlock()
		return
	}
	c.active = &activeJob{id: job.ID}
	c.mu.Unlock()

	go func() {
		c.runJob(ctx, job)
		c.mu.Lock()
		c.active = nil
		c.mu.Unlock()
		if ctx.Err() == nil {
			c.drainPending(ctx)
		}
	}()
}

func (c *Controller) setActiveOrchestrator(jobID int64, orch *orchestrator.Orchestrator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil && c.active.id == jobID {
		c.active.orch = orch
	}
}

func (c *Controller) runJob(ctx context.Context, job *domain.CrawlJob) {
	logger := c.logger.With(zap.Int64("job_id", job.ID))

	project, err := c.store.GetProject(ctx, job.ProjectID)
	if err != nil {
		c.failJob(ctx, job.ID, fmt.Sprintf("Project lookup failed: %v", err))
		return
	}
	defs, err := c.store.LoadIssueDefinitions(ctx)
	if err != nil {
		c.failJob(ctx, job.ID, fmt.Sprintf("Issue catalogue load failed: %v", err))
		return
	}
	if len(defs) == 0 {
		c.failJob(ctx, job.ID, "Issue catalogue is empty")
		return
	}

	userAgent := job.Settings.UserAgent
	if userAgent == "" {
		userAgent = c.cfg.UserAgent
	}
	browser, err := fetcher.NewBrowser(ctx, userAgent)
	if err != nil {
		c.failJob(ctx, job.ID, fmt.Sprintf("Browser launch failed: %v", err))
		return
	}
	defer browser.Close()

	detector := issues.NewDetector(defs, logger)
	pageFetcher := fetcher.New(browser, fetcher.Options{
		ProjectDomain:    project.Domain,
		FollowSubdomains: job.Settings.FollowSubdomains,
		RenderJavascript: job.Settings.RenderJavascript,
		NavTimeout:       time.Duration(c.cfg.NavTimeoutSec) * time.Second,
		MaxRetries:       c.cfg.MaxFetchRetries,
		RetryBaseDelay:   time.Duration(c.cfg.RetryBaseDelayMs) * time.Millisecond,
	}, logger)

	orch := orchestrator.New(job, project, orchestrator.Deps{
		Store:     c.store,
		Cache:     c.cache,
		Fetcher:   pageFetcher,
		Detector:  detector,
		Analyzer:  analyzer.New(c.store, detector, logger),
		Oracle:    analyzer.NewOracle(c.cfg.PageSpeedAPIKey, logger),
		Metrics:   c.metrics,
		Logger:    logger,
		UserAgent: c.cfg.UserAgent,
	})

	c.setActiveOrchestrator(job.ID, orch)

	defer func() {
		if r := recover(); r != nil {
			c.failJob(ctx, job.ID, fmt.Sprintf("Crawl panicked: %v\n%s", r, debug.Stack()))
		}
	}()

	logger.Info("starting crawl", zap.String("domain", project.Domain))
	if err := orch.Run(ctx); err != nil {
		c.failJob(ctx, job.ID, fmt.Sprintf("Crawl failed: %v", err))
		return
	}
	if c.metrics != nil {
		c.metrics.JobsProcessed.WithLabelValues("completed").Inc()
	}
	if err := c.cache.ClearJob(ctx, job.ID); err != nil {
		logger.Debug("visited mark cleanup failed", zap.Error(err))
	}
}

func (c *Controller) failJob(ctx context.Context, jobID int64, message string) {
	c.logger.Error("job failed", zap.Int64("job_id", jobID), zap.String("reason", message))
	if err := c.store.MarkFailed(ctx, jobID, message); err != nil {
		c.logger.Error("failure status write failed", zap.Int64("job_id", jobID), zap.Error(err))
	}
	if c.metrics != nil {
		c.metrics.JobsProcessed.WithLabelValues("failed").Inc()
	}
}

// autoResume creates follow-up jobs for recent failures that got far
// enough to be worth continuing. A resume job is never itself resumed.
func (c *Controller) autoResume(ctx context.Context) {
	failed, err := c.store.RecentFailedJobs(ctx, resumeWindow, resumeMinPages, resumeBatchLimit)
	if err != nil {
		c.logger.Error("failed job scan failed", zap.Error(err))
		return
	}

	for _, job := range failed {
		if job.Settings.Resume != nil {
			continue
		}
		busy, err := c.store.ProjectHasActiveJob(ctx, job.ProjectID)
		if err != nil {
			c.logger.Error("active job check failed", zap.Int64("project_id", job.ProjectID), zap.Error(err))
			continue
		}
		if busy {
			continue
		}

		skipURLs, err := c.store.CrawledURLs(ctx, job.ID)
		if err != nil {
			c.logger.Error("crawled url load failed", zap.Int64("job_id", job.ID), zap.Error(err))
			continue
		}

		settings := job.Settings
		settings.Resume = &domain.ResumeInfo{
			ResumedFrom:             job.ID,
			SkipURLs:                skipURLs,
			OriginalPagesCrawled:    job.PagesCrawled,
			OriginalPagesDiscovered: job.PagesDiscovered,
		}
		resumeID, err := c.store.CreateResumeJob(ctx, job.ProjectID, settings)
		if err != nil {
			c.logger.Error("resume job creation failed", zap.Int64("job_id", job.ID), zap.Error(err))
			continue
		}
		c.logger.Info("auto-resume queued",
			zap.Int64("failed_job_id", job.ID),
			zap.Int64("resume_job_id", resumeID),
			zap.Int("skip_urls", len(skipURLs)))
	}
}

// shutdownActive cancels the in-flight crawl and marks it failed so the
// next boot's reconciliation can resume it.
func (c *Controller) shutdownActive() {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()
	if active == nil {
		return
	}
	if active.orch != nil {
		active.orch.Cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.store.MarkFailed(ctx, active.id, "Worker "+c.workerID+" shut down during crawl"); err != nil {
		c.logger.Error("shutdown status write failed", zap.Int64("job_id", active.id), zap.Error(err))
	}
}
