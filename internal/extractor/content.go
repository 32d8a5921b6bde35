package extractor

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/siteaudit/internal/domain"
	"github.com/user/siteaudit/internal/urlutil"
)

const minKeywordTokens = 50

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	tokenRe      = regexp.MustCompile(`\b[a-z]{3,}\b`)
	sentenceRe   = regexp.MustCompile(`[.!?]+`)
	vowelGroupRe = regexp.MustCompile(`[aeiouy]+`)
)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {},
	"all": {}, "can": {}, "her": {}, "was": {}, "one": {}, "our": {}, "out": {},
	"has": {}, "have": {}, "had": {}, "his": {}, "him": {}, "how": {}, "its": {},
	"may": {}, "new": {}, "now": {}, "old": {}, "see": {}, "two": {}, "who": {},
	"why": {}, "will": {}, "with": {}, "this": {}, "that": {}, "they": {},
	"them": {}, "then": {}, "than": {}, "there": {}, "their": {}, "these": {},
	"those": {}, "what": {}, "when": {}, "where": {}, "which": {}, "while": {},
	"your": {}, "from": {}, "been": {}, "were": {}, "into": {}, "more": {},
	"some": {}, "such": {}, "only": {}, "other": {}, "about": {}, "after": {},
	"also": {}, "just": {}, "like": {}, "over": {}, "most": {}, "very": {},
	"would": {}, "could": {}, "should": {}, "here": {}, "each": {}, "does": {},
	"because": {}, "between": {}, "both": {}, "through": {}, "during": {},
	"before": {}, "under": {}, "again": {}, "further": {}, "once": {},
}

// nonContentSelector matches elements stripped before body-text metrics.
const nonContentSelector = "script, style, noscript, nav, footer, header, aside"

// extractContent computes the plain-text body, word count, text-to-HTML
// ratio, content hash, keyword density, and reading level.
func extractContent(doc *goquery.Document, rawHTML string, rec *domain.PageRecord) {
	body := doc.Find("body").Clone()
	body.Find(nonContentSelector).Remove()

	text := strings.TrimSpace(whitespaceRe.ReplaceAllString(body.Text(), " "))
	rec.WordCount = len(strings.Fields(text))
	rec.ContentHash = urlutil.Hash(text)

	if len(rawHTML) > 0 {
		rec.TextToHTMLRatio = int(math.Round(100 * float64(len(text)) / float64(len(rawHTML))))
	}

	rec.Keywords = keywordDensity(text)

	if grade, level, ok := readingLevel(text); ok {
		rec.ReadingGrade = &grade
		rec.ReadingLevel = level
	}
}

// keywordDensity returns the top-10 non-stop-words appearing at least 3
// times, with density per mille rounded to one decimal. Texts below 50
// tokens yield nothing.
func keywordDensity(text string) []domain.KeywordDensity {
	tokens := tokenRe.FindAllString(strings.ToLower(text), -1)
	if len(tokens) < minKeywordTokens {
		return nil
	}

	counts := make(map[string]int)
	total := 0
	for _, tok := range tokens {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		counts[tok]++
		total++
	}
	if total == 0 {
		return nil
	}

	var out []domain.KeywordDensity
	for word, count := range counts {
		if count < 3 {
			continue
		}
		density := math.Round(float64(count)/float64(total)*1000) / 10
		out = append(out, domain.KeywordDensity{Word: word, Count: count, Density: density})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Density != out[j].Density {
			return out[i].Density > out[j].Density
		}
		return out[i].Word < out[j].Word
	})
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

// readingLevel computes the Flesch-Kincaid grade and its bucket.
func readingLevel(text string) (grade int, level string, ok bool) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0, "", false
	}
	sentences := len(sentenceRe.FindAllString(text, -1))
	if sentences == 0 {
		sentences = 1
	}

	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}

	raw := 0.39*(float64(len(words))/float64(sentences)) +
		11.8*(float64(syllables)/float64(len(words))) - 15.59
	grade = int(math.Round(raw))

	switch {
	case grade <= 6:
		level = "basic"
	case grade <= 10:
		level = "intermediate"
	case grade <= 14:
		level = "advanced"
	default:
		level = "complex"
	}
	return grade, level, true
}

// countSyllables approximates syllables by counting vowel groups, with a
// silent trailing "e" adjustment. Every word counts at least one.
func countSyllables(word string) int {
	w := strings.TrimFunc(strings.ToLower(word), func(r rune) bool {
		return r < 'a' || r > 'z'
	})
	if w == "" {
		return 1
	}
	n := len(vowelGroupRe.FindAllString(w, -1))
	if strings.HasSuffix(w, "e") && n > 1 {
		n--
	}
	if n < 1 {
		n = 1
	}
	return n
}
