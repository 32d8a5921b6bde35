package issues

import (
	"strings"

	"github.com/user/siteaudit/internal/domain"
)

const (
	titleMinLen       = 30
	titleMaxLen       = 60
	descMinLen        = 70
	descMaxLen        = 160
	veryThinWords     = 100
	lowWordCount      = 300
	stuffingDensity   = 3.0
	minRatioWordCount = 50
	minTextHTMLRatio  = 10
	complexGrade      = 16
)

// contentRules covers titles, meta descriptions, headings, body metrics,
// keyword usage, and reading level.
func contentRules(page *domain.PageRecord) []domain.IssueTuple {
	var out []domain.IssueTuple

	switch {
	case page.Title == "":
		out = append(out, tuple("CONTENT_NO_TITLE", nil))
	case len(page.Title) < titleMinLen:
		out = append(out, tuple("CONTENT_TITLE_TOO_SHORT", map[string]any{"length": len(page.Title)}))
	case len(page.Title) > titleMaxLen:
		out = append(out, tuple("CONTENT_TITLE_TOO_LONG", map[string]any{"length": len(page.Title)}))
	}

	switch {
	case page.MetaDescription == "":
		out = append(out, tuple("CONTENT_NO_META_DESCRIPTION", nil))
	case len(page.MetaDescription) < descMinLen:
		out = append(out, tuple("CONTENT_META_DESCRIPTION_TOO_SHORT", map[string]any{"length": len(page.MetaDescription)}))
	case len(page.MetaDescription) > descMaxLen:
		out = append(out, tuple("CONTENT_META_DESCRIPTION_TOO_LONG", map[string]any{"length": len(page.MetaDescription)}))
	}

	switch {
	case len(page.H1Tags) == 0:
		out = append(out, tuple("CONTENT_NO_H1", nil))
	case len(page.H1Tags) > 1:
		out = append(out, tuple("CONTENT_MULTIPLE_H1", map[string]any{"count": len(page.H1Tags)}))
	}

	switch {
	case page.WordCount == 0:
		out = append(out, tuple("CONTENT_NO_BODY_TEXT", nil))
	case page.WordCount < veryThinWords:
		out = append(out, tuple("CONTENT_VERY_THIN", map[string]any{"wordCount": page.WordCount}))
	case page.WordCount < lowWordCount:
		out = append(out, tuple("CONTENT_LOW_WORD_COUNT", map[string]any{"wordCount": page.WordCount}))
	}

	for _, kw := range page.Keywords {
		if kw.Density > stuffingDensity {
			out = append(out, tuple("CONTENT_KEYWORD_STUFFING", map[string]any{
				"word":    kw.Word,
				"density": kw.Density,
			}))
			break
		}
	}

	if page.WordCount >= minRatioWordCount && page.TextToHTMLRatio < minTextHTMLRatio {
		out = append(out, tuple("CONTENT_LOW_TEXT_HTML_RATIO", map[string]any{
			"ratio": page.TextToHTMLRatio,
		}))
	}

	if page.ReadingGrade != nil && *page.ReadingGrade > complexGrade && page.ReadingLevel == "complex" {
		out = append(out, tuple("CONTENT_COMPLEX_READING_LEVEL", map[string]any{
			"grade": *page.ReadingGrade,
		}))
	}

	if skip := headingSkip(page.HeadingOrder); skip > 1 {
		out = append(out, tuple("CONTENT_HEADING_HIERARCHY_SKIP", map[string]any{
			"maxSkip": skip,
		}))
	}

	if missing := titleKeywordsMissing(page); missing {
		out = append(out, tuple("CONTENT_TITLE_KEYWORDS_NOT_IN_BODY", nil))
	}

	return out
}

// headingSkip returns the largest downward level jump between consecutive
// headings in document order.
func headingSkip(order []string) int {
	maxSkip := 0
	prev := 0
	for _, tag := range order {
		if len(tag) != 2 || tag[0] != 'h' {
			continue
		}
		level := int(tag[1] - '0')
		if level < 1 || level > 6 {
			continue
		}
		if prev > 0 && level > prev && level-prev > maxSkip {
			maxSkip = level - prev
		}
		prev = level
	}
	return maxSkip
}

// titleKeywordsMissing reports whether none of the title's substantial
// words (4+ letters) appear in the body markdown.
func titleKeywordsMissing(page *domain.PageRecord) bool {
	if page.Title == "" || page.WordCount == 0 {
		return false
	}
	body := strings.ToLower(page.BodyMarkdown)
	checked := 0
	for _, word := range strings.Fields(strings.ToLower(page.Title)) {
		word = strings.Trim(word, `.,:;!?"'()[]|-`)
		if len(word) < 4 {
			continue
		}
		checked++
		if strings.Contains(body, word) {
			return false
		}
	}
	return checked > 0
}
