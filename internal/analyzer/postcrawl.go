// Package analyzer runs the checks that need the whole site graph: depth
// and link-shape flags, orphan detection, AI-search readiness, and the
// external performance oracle.
package analyzer

import (
	"context"

	"go.uber.org/zap"

	"github.com/user/siteaudit/internal/domain"
	"github.com/user/siteaudit/internal/issues"
	"github.com/user/siteaudit/internal/storage"
)

const (
	deepThreshold     = 4
	veryDeepThreshold = 7
	maxOutboundLinks  = 150
)

// Store is the slice of the job store the post-crawl pass reads and
// writes.
type Store interface {
	PagesForAnalysis(ctx context.Context, crawlID int64) ([]storage.PageSummary, error)
	RecordIssue(ctx context.Context, crawlID, pageID, definitionID int64, details map[string]any) error
	SaveAIReadiness(ctx context.Context, crawlID int64, score int, breakdown any) error
}

// Analyzer owns the post-crawl pass for one job.
type Analyzer struct {
	store    Store
	detector *issues.Detector
	logger   *zap.Logger
}

// New builds an analyzer sharing the job's detector and store.
func New(store Store, detector *issues.Detector, logger *zap.Logger) *Analyzer {
	return &Analyzer{store: store, detector: detector, logger: logger}
}

// Run executes the graph-wide checks. Failures in one sub-analysis are
// logged and skipped; they never change the job's terminal status.
func (a *Analyzer) Run(ctx context.Context, crawlID int64, tally *issues.Tally) {
	pages, err := a.store.PagesForAnalysis(ctx, crawlID)
	if err != nil {
		a.logger.Error("post-crawl page load failed", zap.Int64("crawl_id", crawlID), zap.Error(err))
		return
	}

	for _, page := range pages {
		if page.FetchError != "" {
			continue
		}
		a.flagPage(ctx, crawlID, page, tally)
	}
	a.flagOrphans(ctx, crawlID, pages, tally)
}

func (a *Analyzer) flagPage(ctx context.Context, crawlID int64, page storage.PageSummary, tally *issues.Tally) {
	if page.PageDepth > veryDeepThreshold {
		a.emit(ctx, crawlID, page, "page_very_deep", map[string]any{"depth": page.PageDepth}, tally)
	} else if page.PageDepth > deepThreshold {
		a.emit(ctx, crawlID, page, "page_too_deep", map[string]any{"depth": page.PageDepth}, tally)
	}
	if page.InternalLinksCount == 0 {
		a.emit(ctx, crawlID, page, "dead_end_page", nil, tally)
	}
	if page.InternalLinksCount > maxOutboundLinks {
		a.emit(ctx, crawlID, page, "high_outbound_links", map[string]any{"count": page.InternalLinksCount}, tally)
	}
}

// flagOrphans marks indexable non-root pages that nothing links to.
// Sitemap-discovered orphans are a notice; the rest are a warning.
func (a *Analyzer) flagOrphans(ctx context.Context, crawlID int64, pages []storage.PageSummary, tally *issues.Tally) {
	for _, page := range pages {
		if page.InternalLinksReceived != 0 || page.PageDepth == 0 {
			continue
		}
		if page.StatusCode < 200 || page.StatusCode >= 400 {
			continue
		}
		switch page.DiscoveredVia {
		case domain.SourceSitemap:
			a.emit(ctx, crawlID, page, "sitemap_only_page", nil, tally)
		case domain.SourceSeed:
			// The seed itself cannot be an orphan.
		default:
			a.emit(ctx, crawlID, page, "orphan_page", nil, tally)
		}
	}
}

func (a *Analyzer) emit(ctx context.Context, crawlID int64, page storage.PageSummary, code string, details map[string]any, tally *issues.Tally) {
	def, known := a.detector.Definition(code)
	if !known {
		return
	}
	if err := a.store.RecordIssue(ctx, crawlID, page.ID, def.ID, details); err != nil {
		a.logger.Warn("post-crawl issue write failed",
			zap.String("code", code), zap.String("url", page.URL), zap.Error(err))
		return
	}
	tally.Add(def)
}
