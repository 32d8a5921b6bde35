// Package orchestrator runs one crawl job: seeding, BFS admission,
// sequential fetching with politeness delay, persistence, and the
// post-crawl analysis chain.
package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/user/siteaudit/internal/analyzer"
	"github.com/user/siteaudit/internal/domain"
	"github.com/user/siteaudit/internal/issues"
	"github.com/user/siteaudit/internal/monitoring"
	"github.com/user/siteaudit/internal/robots"
	"github.com/user/siteaudit/internal/sitemap"
	"github.com/user/siteaudit/internal/storage"
	"github.com/user/siteaudit/internal/urlutil"
)

const (
	defaultMaxPages     = 100
	defaultMaxDepth     = 5
	defaultCrawlDelayMs = 1000
	sitemapMaxURLs      = 10000
)

// Store is the slice of the job store the crawl loop writes to.
type Store interface {
	UpsertPage(ctx context.Context, crawlID int64, rec *domain.PageRecord) (int64, error)
	RecordIssue(ctx context.Context, crawlID, pageID, definitionID int64, details map[string]any) error
	UpdateProgress(ctx context.Context, id int64, discovered, crawled, failed int, progress float64, currentURL string) error
	UpdateIncomingLinks(ctx context.Context, crawlID int64, counts map[string]int) error
	SavePerformanceAudit(ctx context.Context, crawlID int64, audit any) error
	FinalizeJob(ctx context.Context, id int64, final storage.JobFinal) error
}

// PageFetcher fetches one URL and always yields a record.
type PageFetcher interface {
	Crawl(ctx context.Context, entry domain.FrontierEntry) *domain.PageRecord
}

// VisitedCache keeps cross-restart fetch marks. Optional.
type VisitedCache interface {
	MarkCrawled(ctx context.Context, jobID int64, urlHash string) error
}

// Deps wires one job's collaborators.
type Deps struct {
	Store      Store
	Cache      VisitedCache
	Fetcher    PageFetcher
	Detector   *issues.Detector
	Analyzer   *analyzer.Analyzer
	Oracle     *analyzer.Oracle
	Metrics    *monitoring.Metrics
	HTTPClient *http.Client
	Logger     *zap.Logger
	UserAgent  string
}

// Orchestrator executes one job. Page processing is sequential, so the
// frontier and the dedup sets are single-writer and need no locks.
type Orchestrator struct {
	deps     Deps
	job      *domain.CrawlJob
	project  *domain.Project
	settings domain.CrawlSettings
	seedURL  string

	policy  *robots.Policy
	limiter *rate.Limiter

	frontier      []domain.FrontierEntry
	discovered    map[string]bool
	visited       map[string]bool
	incomingLinks map[string]int
	outboundLinks map[string][]string
	statusByURL   map[string]int
	pageIDByURL   map[string]int64

	pagesCrawled int
	pagesFailed  int
	tally        *issues.Tally

	cancelled atomic.Bool
}

// New prepares an orchestrator for the given job. Settings gaps are
// filled with conservative defaults.
func New(job *domain.CrawlJob, project *domain.Project, deps Deps) *Orchestrator {
	settings := job.Settings
	if settings.MaxPages <= 0 {
		settings.MaxPages = defaultMaxPages
	}
	if settings.MaxDepth <= 0 {
		settings.MaxDepth = defaultMaxDepth
	}
	if settings.CrawlDelayMs <= 0 {
		settings.CrawlDelayMs = defaultCrawlDelayMs
	}
	if settings.UserAgent == "" {
		settings.UserAgent = deps.UserAgent
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}
	return &Orchestrator{
		deps:          deps,
		job:           job,
		project:       project,
		settings:      settings,
		seedURL:       "https://" + project.Domain,
		discovered:    make(map[string]bool),
		visited:       make(map[string]bool),
		incomingLinks: make(map[string]int),
		outboundLinks: make(map[string][]string),
		statusByURL:   make(map[string]int),
		pageIDByURL:   make(map[string]int64),
		tally:         issues.NewTally(),
	}
}

// Cancel requests a cooperative stop. The in-flight fetch completes, the
// loop exits at the next iteration, and finalize still runs.
func (o *Orchestrator) Cancel() {
	o.cancelled.Store(true)
}

// Run crawls the site and finalizes the job row. The returned error is
// fatal only; per-page failures are absorbed into pages_failed.
func (o *Orchestrator) Run(ctx context.Context) error {
	start := time.Now()
	logger := o.deps.Logger.With(
		zap.Int64("job_id", o.job.ID),
		zap.String("domain", o.project.Domain))

	if o.settings.Resume != nil {
		o.preloadResume(o.settings.Resume, logger)
	}

	o.fetchRobots(ctx, logger)
	o.seedFrontier(ctx, logger)

	delay := o.effectiveDelay()
	o.limiter = rate.NewLimiter(rate.Every(delay), 1)
	logger.Info("crawl starting",
		zap.Int("max_pages", o.settings.MaxPages),
		zap.Int("max_depth", o.settings.MaxDepth),
		zap.Duration("crawl_delay", delay))

	o.loop(ctx, logger)

	cancelled := o.cancelled.Load() || ctx.Err() != nil
	if !cancelled {
		o.postCrawl(ctx, logger)
	}
	return o.finalize(ctx, start, logger)
}

// preloadResume marks every previously crawled URL as visited and
// discovered so it is never re-fetched, and carries the prior counters.
func (o *Orchestrator) preloadResume(resume *domain.ResumeInfo, logger *zap.Logger) {
	for _, raw := range resume.SkipURLs {
		normalized, err := urlutil.Normalize(raw)
		if err != nil {
			continue
		}
		o.visited[normalized] = true
		o.discovered[normalized] = true
	}
	o.pagesCrawled = resume.OriginalPagesCrawled
	logger.Info("resuming previous crawl",
		zap.Int64("resumed_from", resume.ResumedFrom),
		zap.Int("skip_urls", len(resume.SkipURLs)))
}

// fetchRobots always pulls the policy; the AI-bot flags and sitemap
// hints are wanted even when enforcement is off.
func (o *Orchestrator) fetchRobots(ctx context.Context, logger *zap.Logger) {
	o.policy = robots.Fetch(ctx, o.deps.HTTPClient, o.project.Domain, o.settings.UserAgent)
	logger.Info("robots policy loaded",
		zap.Bool("found", o.policy.Found()),
		zap.Bool("enforced", o.settings.RespectRobotsTxt),
		zap.Duration("crawl_delay", o.policy.CrawlDelay()))
}

func (o *Orchestrator) seedFrontier(ctx context.Context, logger *zap.Logger) {
	o.admit(o.seedURL, 0, "", domain.SourceSeed)

	reader := sitemap.NewReader(o.deps.HTTPClient, o.project.Domain, o.settings.UserAgent, sitemapMaxURLs, logger)
	entries := reader.Read(ctx, o.policy.Sitemaps())
	admitted := 0
	for _, entry := range entries {
		if o.admit(entry.Loc, 1, o.seedURL, domain.SourceSitemap) {
			admitted++
		}
	}
	logger.Info("sitemap processed",
		zap.Int("listed", len(entries)), zap.Int("admitted", admitted))
}

// admit applies the full admission predicate and appends to the frontier
// on success. Idempotent per normalized URL.
func (o *Orchestrator) admit(rawURL string, depth int, parent string, source domain.DiscoverySource) bool {
	normalized, err := urlutil.Normalize(rawURL)
	if err != nil {
		return false
	}
	if o.visited[normalized] || o.discovered[normalized] {
		return false
	}
	if depth > o.settings.MaxDepth || len(o.discovered) >= o.settings.MaxPages {
		return false
	}
	if o.settings.RespectRobotsTxt && !o.policy.IsAllowed(normalized) {
		return false
	}
	if len(o.settings.IncludePatterns) > 0 && !matchesAny(normalized, o.settings.IncludePatterns) {
		return false
	}
	if matchesAny(normalized, o.settings.ExcludePatterns) {
		return false
	}
	host, err := hostOf(normalized)
	if err != nil || !urlutil.SameDomain(host, o.project.Domain, o.settings.FollowSubdomains) {
		return false
	}
	if ok, _ := urlutil.IsSeoRelevant(normalized); !ok {
		return false
	}

	o.frontier = append(o.frontier, domain.FrontierEntry{
		URL:       normalized,
		Depth:     depth,
		ParentURL: parent,
		Source:    source,
	})
	o.discovered[normalized] = true
	return true
}

func (o *Orchestrator) loop(ctx context.Context, logger *zap.Logger) {
	for len(o.frontier) > 0 {
		if o.cancelled.Load() || ctx.Err() != nil {
			logger.Info("crawl cancelled", zap.Int("pages_crawled", o.pagesCrawled))
			return
		}

		entry := o.frontier[0]
		o.frontier = o.frontier[1:]
		if o.visited[entry.URL] {
			continue
		}
		o.visited[entry.URL] = true

		o.processPage(ctx, entry, logger)

		if len(o.frontier) > 0 {
			if err := o.limiter.Wait(ctx); err != nil {
				return
			}
		}
	}
}

func (o *Orchestrator) processPage(ctx context.Context, entry domain.FrontierEntry, logger *zap.Logger) {
	fetchStart := time.Now()
	rec := o.deps.Fetcher.Crawl(ctx, entry)
	if m := o.deps.Metrics; m != nil {
		m.FetchDuration.Observe(time.Since(fetchStart).Seconds())
	}

	if rec.FetchError != "" {
		o.pagesFailed++
		if m := o.deps.Metrics; m != nil {
			m.PagesFailed.Inc()
		}
	} else {
		o.pagesCrawled++
		if m := o.deps.Metrics; m != nil {
			m.PagesCrawled.Inc()
		}
	}

	pageID, err := o.deps.Store.UpsertPage(ctx, o.job.ID, rec)
	if err != nil {
		logger.Error("page save failed", zap.String("url", entry.URL), zap.Error(err))
		if m := o.deps.Metrics; m != nil {
			m.ErrorsTotal.WithLabelValues("db_save_failed").Inc()
		}
		return
	}
	o.pageIDByURL[entry.URL] = pageID
	o.statusByURL[entry.URL] = rec.StatusCode

	if o.deps.Cache != nil {
		if err := o.deps.Cache.MarkCrawled(ctx, o.job.ID, rec.URLHash); err != nil {
			logger.Debug("visited mark failed", zap.String("url", entry.URL), zap.Error(err))
		}
	}

	seenTargets := make(map[string]bool)
	for _, link := range rec.InternalLinks {
		o.admit(link, entry.Depth+1, entry.URL, domain.SourceCrawl)
		if normalized, err := urlutil.Normalize(link); err == nil && normalized != entry.URL {
			o.incomingLinks[normalized]++
			if !seenTargets[normalized] {
				seenTargets[normalized] = true
				o.outboundLinks[entry.URL] = append(o.outboundLinks[entry.URL], normalized)
			}
		}
	}

	if rec.FetchError == "" {
		o.detectIssues(ctx, pageID, rec, logger)
	}

	progress := float64(o.pagesCrawled+o.pagesFailed) / float64(len(o.discovered)) * 100
	if progress > 100 {
		progress = 100
	}
	if err := o.deps.Store.UpdateProgress(ctx, o.job.ID,
		len(o.discovered), o.pagesCrawled, o.pagesFailed, progress, entry.URL); err != nil {
		logger.Warn("progress update failed", zap.Error(err))
	}

	logger.Debug("page processed",
		zap.String("url", entry.URL),
		zap.Int("status", rec.StatusCode),
		zap.Int("depth", entry.Depth),
		zap.Int("frontier", len(o.frontier)))
}

func (o *Orchestrator) detectIssues(ctx context.Context, pageID int64, rec *domain.PageRecord, logger *zap.Logger) {
	for _, tuple := range o.deps.Detector.Detect(rec) {
		def, known := o.deps.Detector.Definition(tuple.Code)
		if !known {
			continue
		}
		if err := o.deps.Store.RecordIssue(ctx, o.job.ID, pageID, def.ID, tuple.Details); err != nil {
			logger.Warn("issue save failed",
				zap.String("code", tuple.Code), zap.String("url", rec.URL), zap.Error(err))
			if m := o.deps.Metrics; m != nil {
				m.ErrorsTotal.WithLabelValues("issue_save_failed").Inc()
			}
			continue
		}
		o.tally.Add(def)
		if m := o.deps.Metrics; m != nil {
			m.IssuesFound.WithLabelValues(string(def.Severity)).Inc()
		}
	}
}

// postCrawl runs the graph-wide analysis chain. Each stage logs and
// skips its own failures.
func (o *Orchestrator) postCrawl(ctx context.Context, logger *zap.Logger) {
	if err := o.deps.Store.UpdateIncomingLinks(ctx, o.job.ID, o.hashIncomingLinks()); err != nil {
		logger.Warn("incoming link flush failed", zap.Error(err))
	}
	o.flagBrokenLinks(ctx, logger)
	if o.deps.Analyzer != nil {
		o.deps.Analyzer.Run(ctx, o.job.ID, o.tally)
		o.deps.Analyzer.AISearch(ctx, o.job.ID, o.seedURL, o.policy, o.settings.UserAgent)
	}
	if o.deps.Oracle != nil {
		o.deps.Oracle.Run(ctx, o.deps.Store, o.job.ID, o.seedURL)
	}
}

// flagBrokenLinks marks pages whose outbound internal links resolved to
// an error status during this crawl. Targets that were never fetched
// carry no verdict and stay unflagged.
func (o *Orchestrator) flagBrokenLinks(ctx context.Context, logger *zap.Logger) {
	def, known := o.deps.Detector.Definition("CRAWL_BROKEN_LINKS")
	if !known {
		return
	}
	for pageURL, targets := range o.outboundLinks {
		pageID, ok := o.pageIDByURL[pageURL]
		if !ok {
			continue
		}
		var broken []string
		for _, target := range targets {
			if status, fetched := o.statusByURL[target]; fetched && status >= 400 {
				broken = append(broken, target)
			}
		}
		if len(broken) == 0 {
			continue
		}
		if err := o.deps.Store.RecordIssue(ctx, o.job.ID, pageID, def.ID, map[string]any{
			"count": len(broken),
			"links": broken,
		}); err != nil {
			logger.Warn("broken link issue write failed",
				zap.String("url", pageURL), zap.Error(err))
			continue
		}
		o.tally.Add(def)
	}
}

func (o *Orchestrator) hashIncomingLinks() map[string]int {
	counts := make(map[string]int, len(o.incomingLinks))
	for link, n := range o.incomingLinks {
		counts[urlutil.Hash(link)] = n
	}
	return counts
}

func (o *Orchestrator) finalize(ctx context.Context, start time.Time, logger *zap.Logger) error {
	health := issues.Score(o.tally.Errors, o.tally.Warnings, o.tally.Notices)
	final := storage.JobFinal{
		Status:          domain.JobCompleted,
		DurationSeconds: int(time.Since(start).Seconds()),
		PagesDiscovered: len(o.discovered),
		PagesCrawled:    o.pagesCrawled,
		PagesFailed:     o.pagesFailed,
		HealthScore:     &health,
		TotalIssues:     o.tally.Total(),
		ErrorsCount:     o.tally.Errors,
		WarningsCount:   o.tally.Warnings,
		NoticesCount:    o.tally.Notices,
		PassedCount:     o.pagesCrawled,
		CategoryScores:  o.tally.CategoryScores(),
	}
	if err := o.deps.Store.FinalizeJob(ctx, o.job.ID, final); err != nil {
		return fmt.Errorf("finalize job %d: %w", o.job.ID, err)
	}
	logger.Info("crawl finished",
		zap.Int("pages_crawled", o.pagesCrawled),
		zap.Int("pages_failed", o.pagesFailed),
		zap.Int("health_score", health),
		zap.Int("total_issues", o.tally.Total()),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (o *Orchestrator) effectiveDelay() time.Duration {
	delay := time.Duration(o.settings.CrawlDelayMs) * time.Millisecond
	if robotsDelay := o.policy.CrawlDelay(); robotsDelay > delay {
		delay = robotsDelay
	}
	return delay
}

func matchesAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}
