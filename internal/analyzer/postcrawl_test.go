package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/siteaudit/internal/domain"
	"github.com/user/siteaudit/internal/issues"
	"github.com/user/siteaudit/internal/storage"
)

type fakeStore struct {
	pages    []storage.PageSummary
	recorded map[int64][]int64 // pageID -> definition ids
	aiScore  int
}

func newFakeStore(pages []storage.PageSummary) *fakeStore {
	return &fakeStore{pages: pages, recorded: make(map[int64][]int64)}
}

func (f *fakeStore) PagesForAnalysis(_ context.Context, _ int64) ([]storage.PageSummary, error) {
	return f.pages, nil
}

func (f *fakeStore) RecordIssue(_ context.Context, _, pageID, definitionID int64, _ map[string]any) error {
	f.recorded[pageID] = append(f.recorded[pageID], definitionID)
	return nil
}

func (f *fakeStore) SaveAIReadiness(_ context.Context, _ int64, score int, _ any) error {
	f.aiScore = score
	return nil
}

var postCrawlDefs = []domain.IssueDefinition{
	{ID: 1, Code: "page_too_deep", Category: "technical", Severity: domain.SeverityNotice, Active: true},
	{ID: 2, Code: "page_very_deep", Category: "technical", Severity: domain.SeverityWarning, Active: true},
	{ID: 3, Code: "dead_end_page", Category: "technical", Severity: domain.SeverityNotice, Active: true},
	{ID: 4, Code: "high_outbound_links", Category: "technical", Severity: domain.SeverityNotice, Active: true},
	{ID: 5, Code: "orphan_page", Category: "technical", Severity: domain.SeverityWarning, Active: true},
	{ID: 6, Code: "sitemap_only_page", Category: "technical", Severity: domain.SeverityNotice, Active: true},
}

func defIDs(store *fakeStore, pageID int64) []int64 {
	return store.recorded[pageID]
}

func TestRunFlagsDepthAndLinkShape(t *testing.T) {
	store := newFakeStore([]storage.PageSummary{
		{ID: 1, URL: "https://ex.test/", StatusCode: 200, PageDepth: 0, DiscoveredVia: domain.SourceSeed, InternalLinksCount: 10, InternalLinksReceived: 0},
		{ID: 2, URL: "https://ex.test/deep", StatusCode: 200, PageDepth: 5, DiscoveredVia: domain.SourceCrawl, InternalLinksCount: 3, InternalLinksReceived: 1},
		{ID: 3, URL: "https://ex.test/deeper", StatusCode: 200, PageDepth: 8, DiscoveredVia: domain.SourceCrawl, InternalLinksCount: 3, InternalLinksReceived: 1},
		{ID: 4, URL: "https://ex.test/cul-de-sac", StatusCode: 200, PageDepth: 1, DiscoveredVia: domain.SourceCrawl, InternalLinksCount: 0, InternalLinksReceived: 2},
		{ID: 5, URL: "https://ex.test/hub", StatusCode: 200, PageDepth: 1, DiscoveredVia: domain.SourceCrawl, InternalLinksCount: 151, InternalLinksReceived: 2},
		{ID: 6, URL: "https://ex.test/error", StatusCode: 0, PageDepth: 1, DiscoveredVia: domain.SourceCrawl, FetchError: "DNS resolution failed"},
	})
	detector := issues.NewDetector(postCrawlDefs, zap.NewNop())
	a := New(store, detector, zap.NewNop())

	tally := issues.NewTally()
	a.Run(context.Background(), 7, tally)

	assert.Contains(t, defIDs(store, 2), int64(1)) // page_too_deep
	assert.Contains(t, defIDs(store, 3), int64(2)) // page_very_deep
	assert.Contains(t, defIDs(store, 4), int64(3)) // dead_end_page
	assert.Contains(t, defIDs(store, 5), int64(4)) // high_outbound_links
	assert.Empty(t, defIDs(store, 6), "error pages are exempt from depth flags")
	assert.Equal(t, len(store.recorded[2])+len(store.recorded[3])+len(store.recorded[4])+len(store.recorded[5]), tally.Total())
}

// A sitemap-discovered page nobody links to is a different finding than a
// crawl-discovered orphan.
func TestRunSplitsOrphansBySource(t *testing.T) {
	store := newFakeStore([]storage.PageSummary{
		{ID: 1, URL: "https://ex.test/", StatusCode: 200, PageDepth: 0, DiscoveredVia: domain.SourceSeed, InternalLinksCount: 2},
		{ID: 2, URL: "https://ex.test/orphan", StatusCode: 200, PageDepth: 1, DiscoveredVia: domain.SourceSitemap, InternalLinksCount: 1, InternalLinksReceived: 0},
		{ID: 3, URL: "https://ex.test/lost", StatusCode: 200, PageDepth: 2, DiscoveredVia: domain.SourceCrawl, InternalLinksCount: 1, InternalLinksReceived: 0},
		{ID: 4, URL: "https://ex.test/linked", StatusCode: 200, PageDepth: 1, DiscoveredVia: domain.SourceCrawl, InternalLinksCount: 1, InternalLinksReceived: 4},
		{ID: 5, URL: "https://ex.test/gone", StatusCode: 404, PageDepth: 1, DiscoveredVia: domain.SourceSitemap, InternalLinksCount: 0, InternalLinksReceived: 0},
	})
	detector := issues.NewDetector(postCrawlDefs, zap.NewNop())
	a := New(store, detector, zap.NewNop())

	a.Run(context.Background(), 7, issues.NewTally())

	assert.Contains(t, defIDs(store, 2), int64(6)) // sitemap_only_page
	assert.NotContains(t, defIDs(store, 2), int64(5))
	assert.Contains(t, defIDs(store, 3), int64(5)) // orphan_page
	assert.NotContains(t, defIDs(store, 4), int64(5))
	assert.NotContains(t, defIDs(store, 4), int64(6))
	// Non-2xx/3xx pages are not orphan candidates.
	assert.NotContains(t, defIDs(store, 5), int64(5))
	assert.NotContains(t, defIDs(store, 5), int64(6))
	// The seed is never an orphan.
	require.NotContains(t, defIDs(store, 1), int64(5))
}

// Codes missing from the catalogue are silently skipped, matching the
// per-page detection behavior.
func TestRunSkipsUncataloguedCodes(t *testing.T) {
	store := newFakeStore([]storage.PageSummary{
		{ID: 1, URL: "https://ex.test/deep", StatusCode: 200, PageDepth: 9, DiscoveredVia: domain.SourceCrawl, InternalLinksCount: 1, InternalLinksReceived: 1},
	})
	detector := issues.NewDetector(postCrawlDefs[:1], zap.NewNop())
	a := New(store, detector, zap.NewNop())

	tally := issues.NewTally()
	a.Run(context.Background(), 7, tally)

	assert.Empty(t, defIDs(store, 1))
	assert.Zero(t, tally.Total())
}
