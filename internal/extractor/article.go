package extractor

import (
	"regexp"
	"time"

	"github.com/user/siteaudit/internal/domain"
)

var articleTypes = map[string]struct{}{
	"Article":          {},
	"NewsArticle":      {},
	"BlogPosting":      {},
	"TechArticle":      {},
	"ScholarlyArticle": {},
}

// iso8601Re accepts a date or a date-time with optional fraction and zone.
var iso8601Re = regexp.MustCompile(
	`^\d{4}-\d{2}-\d{2}(T\d{2}:\d{2}(:\d{2})?(\.\d+)?(Z|[+-]\d{2}:\d{2})?)?$`)

const articleMaxAge = 2 * 365 * 24 * time.Hour

// extractArticle pulls the first article-typed JSON-LD object out of the
// page's structured data and validates it.
func extractArticle(rec *domain.PageRecord) {
	var articles []map[string]any
	for _, obj := range rec.SchemaObjects {
		for _, t := range schemaTypes(obj) {
			if _, ok := articleTypes[t]; ok {
				articles = append(articles, obj)
				break
			}
		}
	}
	if len(articles) == 0 {
		return
	}

	obj := articles[0]
	art := &domain.ArticleData{
		Type:             schemaTypes(obj)[0],
		Headline:         firstNonEmpty(asString(obj["headline"]), asString(obj["name"])),
		Description:      firstNonEmpty(asString(obj["description"]), asString(obj["abstract"])),
		Body:             asString(obj["articleBody"]),
		DatePublished:    asString(obj["datePublished"]),
		DateModified:     asString(obj["dateModified"]),
		Image:            firstImage(obj["image"]),
		Author:           asAttribution(obj["author"]),
		Publisher:        asAttribution(obj["publisher"]),
		InLanguage:       asString(obj["inLanguage"]),
		MainEntityOfPage: asString(firstMainEntity(obj["mainEntityOfPage"])),
	}
	if wc, ok := asInt(obj["wordCount"]); ok {
		art.WordCount = wc
	}
	rec.Article = art
	rec.ArticleIssues = validateArticle(art, len(articles), time.Now())
}

func validateArticle(art *domain.ArticleData, total int, now time.Time) []string {
	var issues []string

	if art.Headline == "" {
		issues = append(issues, "missing_headline")
	} else if len(art.Headline) < 30 {
		issues = append(issues, "headline_too_short")
	} else if len(art.Headline) > 110 {
		issues = append(issues, "headline_too_long")
	}
	if art.Author == nil {
		issues = append(issues, "missing_author")
	}
	if art.Image == "" {
		issues = append(issues, "missing_image")
	}

	if art.DatePublished == "" {
		issues = append(issues, "missing_date_published")
	} else if published, ok := parseISODate(art.DatePublished); !ok {
		issues = append(issues, "invalid_date_published")
	} else {
		if published.After(now) {
			issues = append(issues, "future_date_published")
		}
		if now.Sub(published) > articleMaxAge && art.DateModified == "" {
			issues = append(issues, "outdated_article")
		}
	}
	if art.DateModified != "" {
		if _, ok := parseISODate(art.DateModified); !ok {
			issues = append(issues, "invalid_date_modified")
		}
	}

	if total > 1 {
		issues = append(issues, "multiple_articles")
	}
	if art.Body != "" && art.WordCount == 0 {
		issues = append(issues, "missing_word_count")
	}

	return issues
}

// parseISODate requires both the ISO-8601 shape and a real calendar date.
func parseISODate(s string) (time.Time, bool) {
	if !iso8601Re.MatchString(s) {
		return time.Time{}, false
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// firstMainEntity unwraps mainEntityOfPage, which may be a string or an
// object with an @id.
func firstMainEntity(v any) any {
	if obj, ok := v.(map[string]any); ok {
		return obj["@id"]
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
