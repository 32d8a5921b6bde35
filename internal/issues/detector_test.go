package issues

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/siteaudit/internal/domain"
)

func defs(codes ...string) []domain.IssueDefinition {
	out := make([]domain.IssueDefinition, 0, len(codes))
	for i, code := range codes {
		out = append(out, domain.IssueDefinition{
			ID:       int64(i + 1),
			Code:     code,
			Name:     code,
			Category: "content",
			Severity: domain.SeverityWarning,
			Active:   true,
		})
	}
	return out
}

func codesOf(tuples []domain.IssueTuple) []string {
	out := make([]string, 0, len(tuples))
	for _, tu := range tuples {
		out = append(out, tu.Code)
	}
	return out
}

// Codes without an active catalogue entry must never surface, no matter
// what the rules emit.
func TestDetectDropsUnknownCodes(t *testing.T) {
	d := NewDetector(defs("CONTENT_NO_TITLE"), zap.NewNop())
	page := &domain.PageRecord{StatusCode: 200, WordCount: 500}

	codes := codesOf(d.Detect(page))
	assert.Equal(t, []string{"CONTENT_NO_TITLE"}, codes)
}

func TestDetectIgnoresInactiveDefinitions(t *testing.T) {
	catalogue := defs("CONTENT_NO_TITLE", "CONTENT_NO_META_DESCRIPTION")
	catalogue[1].Active = false
	d := NewDetector(catalogue, zap.NewNop())
	page := &domain.PageRecord{StatusCode: 200, WordCount: 500}

	codes := codesOf(d.Detect(page))
	assert.Contains(t, codes, "CONTENT_NO_TITLE")
	assert.NotContains(t, codes, "CONTENT_NO_META_DESCRIPTION")

	_, known := d.Definition("CONTENT_NO_META_DESCRIPTION")
	assert.False(t, known)
}

func TestCrawlabilityRules(t *testing.T) {
	page := &domain.PageRecord{
		StatusCode:     503,
		ResponseTimeMs: 4500,
		RedirectChain: []domain.RedirectHop{
			{URL: "https://ex.test/a", StatusCode: 301},
			{URL: "https://ex.test/b", StatusCode: 302},
		},
	}
	codes := codesOf(crawlabilityRules(page))
	assert.ElementsMatch(t, []string{
		"CRAWL_5XX_ERROR",
		"CRAWL_REDIRECT_CHAIN",
		"CRAWL_TEMP_REDIRECT",
		"CRAWL_SLOW_RESPONSE",
	}, codes)
}

func TestCrawlability4xxSingleHop(t *testing.T) {
	page := &domain.PageRecord{
		StatusCode:    404,
		RedirectChain: []domain.RedirectHop{{URL: "https://ex.test/a", StatusCode: 301}},
	}
	codes := codesOf(crawlabilityRules(page))
	assert.Contains(t, codes, "CRAWL_4XX_ERROR")
	assert.NotContains(t, codes, "CRAWL_REDIRECT_CHAIN")
	assert.NotContains(t, codes, "CRAWL_TEMP_REDIRECT")
}

func TestContentTitleThresholds(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"", "CONTENT_NO_TITLE"},
		{"Short title", "CONTENT_TITLE_TOO_SHORT"},
		{"This title is comfortably inside the permitted range.", ""},
		{"This title keeps going on and on, well past the sixty character ceiling", "CONTENT_TITLE_TOO_LONG"},
	}
	for _, tc := range cases {
		page := &domain.PageRecord{Title: tc.title, StatusCode: 200, WordCount: 500}
		codes := codesOf(contentRules(page))
		if tc.want == "" {
			assert.NotContains(t, codes, "CONTENT_NO_TITLE")
			assert.NotContains(t, codes, "CONTENT_TITLE_TOO_SHORT")
			assert.NotContains(t, codes, "CONTENT_TITLE_TOO_LONG")
		} else {
			assert.Contains(t, codes, tc.want, "title %q", tc.title)
		}
	}
}

func TestContentWordCountThresholds(t *testing.T) {
	for wc, want := range map[int]string{
		0:   "CONTENT_NO_BODY_TEXT",
		50:  "CONTENT_VERY_THIN",
		200: "CONTENT_LOW_WORD_COUNT",
	} {
		page := &domain.PageRecord{WordCount: wc}
		assert.Contains(t, codesOf(contentRules(page)), want, "word count %d", wc)
	}
	page := &domain.PageRecord{WordCount: 400}
	codes := codesOf(contentRules(page))
	assert.NotContains(t, codes, "CONTENT_LOW_WORD_COUNT")
}

func TestContentKeywordStuffing(t *testing.T) {
	page := &domain.PageRecord{
		WordCount: 500,
		Keywords:  []domain.KeywordDensity{{Word: "widget", Count: 20, Density: 4.2}},
	}
	assert.Contains(t, codesOf(contentRules(page)), "CONTENT_KEYWORD_STUFFING")

	page.Keywords[0].Density = 2.9
	assert.NotContains(t, codesOf(contentRules(page)), "CONTENT_KEYWORD_STUFFING")
}

func TestContentHeadingSkip(t *testing.T) {
	page := &domain.PageRecord{WordCount: 500, HeadingOrder: []string{"h1", "h3", "h4"}}
	assert.Contains(t, codesOf(contentRules(page)), "CONTENT_HEADING_HIERARCHY_SKIP")

	page.HeadingOrder = []string{"h1", "h2", "h3", "h2"}
	assert.NotContains(t, codesOf(contentRules(page)), "CONTENT_HEADING_HIERARCHY_SKIP")
}

func TestContentTitleKeywordsNotInBody(t *testing.T) {
	page := &domain.PageRecord{
		Title:        "Premium Danish furniture",
		WordCount:    120,
		BodyMarkdown: "We sell chairs and tables made of oak.",
	}
	assert.Contains(t, codesOf(contentRules(page)), "CONTENT_TITLE_KEYWORDS_NOT_IN_BODY")

	page.BodyMarkdown = "Our premium oak chairs last decades."
	assert.NotContains(t, codesOf(contentRules(page)), "CONTENT_TITLE_KEYWORDS_NOT_IN_BODY")
}

func TestPerformanceSizeThresholds(t *testing.T) {
	page := &domain.PageRecord{PageSizeBytes: 4 << 20}
	codes := codesOf(performanceRules(page))
	assert.Contains(t, codes, "PERF_PAGE_TOO_LARGE")
	assert.Contains(t, codes, "PERF_HTML_TOO_LARGE")

	page.PageSizeBytes = 200 << 10
	codes = codesOf(performanceRules(page))
	assert.NotContains(t, codes, "PERF_PAGE_TOO_LARGE")
	assert.Contains(t, codes, "PERF_HTML_TOO_LARGE")

	page.PageSizeBytes = 50 << 10
	codes = codesOf(performanceRules(page))
	assert.NotContains(t, codes, "PERF_PAGE_TOO_LARGE")
	assert.NotContains(t, codes, "PERF_HTML_TOO_LARGE")
}

func TestStructuredDataRulesPrefixTokens(t *testing.T) {
	page := &domain.PageRecord{
		StatusCode:    200,
		IsIndexable:   true,
		HasSchema:     true,
		ProductIssues: []string{"missing_brand", "invalid_price"},
		ArticleIssues: []string{"headline_too_short"},
	}
	codes := codesOf(structuredDataRules(page))
	assert.Contains(t, codes, "product_missing_brand")
	assert.Contains(t, codes, "product_invalid_price")
	assert.Contains(t, codes, "article_headline_too_short")
	assert.NotContains(t, codes, "SCHEMA_MISSING")
}

func TestSchemaMissing(t *testing.T) {
	page := &domain.PageRecord{StatusCode: 200, IsIndexable: true}
	assert.Contains(t, codesOf(structuredDataRules(page)), "SCHEMA_MISSING")

	page.IsIndexable = false
	assert.NotContains(t, codesOf(structuredDataRules(page)), "SCHEMA_MISSING")
}

func TestScoreClamping(t *testing.T) {
	assert.Equal(t, 100, Score(0, 0, 0))
	assert.Equal(t, 95, Score(1, 0, 0))
	assert.Equal(t, 93, Score(1, 1, 0))
	assert.Equal(t, 92, Score(1, 1, 3))
	assert.Equal(t, 0, Score(50, 0, 0))

	for errors := 0; errors <= 30; errors += 5 {
		for warnings := 0; warnings <= 30; warnings += 5 {
			s := Score(errors, warnings, warnings)
			assert.GreaterOrEqual(t, s, 0)
			assert.LessOrEqual(t, s, 100)
		}
	}
}

func TestTallyCategoryScores(t *testing.T) {
	tally := NewTally()
	tally.Add(domain.IssueDefinition{Category: "content", Severity: domain.SeverityError})
	tally.Add(domain.IssueDefinition{Category: "content", Severity: domain.SeverityWarning})
	tally.Add(domain.IssueDefinition{Category: "mobile", Severity: domain.SeverityNotice})
	tally.Add(domain.IssueDefinition{Category: "mobile", Severity: domain.SeverityNotice})

	require.Equal(t, 4, tally.Total())
	assert.Equal(t, 1, tally.Errors)
	assert.Equal(t, 1, tally.Warnings)
	assert.Equal(t, 2, tally.Notices)

	scores := tally.CategoryScores()
	assert.Equal(t, 93, scores["content"])
	assert.Equal(t, 99, scores["mobile"])
}
