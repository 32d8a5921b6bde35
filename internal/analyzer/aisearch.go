package analyzer

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/siteaudit/internal/robots"
)

const (
	probeTimeout  = 10 * time.Second
	probeMaxBytes = 1 << 20

	// Minimum length for llms.txt / ai.txt to count as a real document
	// rather than a placeholder.
	minGuidanceLen = 50
)

// AIReadiness is the persisted breakdown behind the AI-search score.
type AIReadiness struct {
	Score            int      `json:"score"`
	BlockedAIBots    []string `json:"blocked_ai_bots"`
	HasLLMsTxt       bool     `json:"has_llms_txt"`
	LLMsTxtValid     bool     `json:"llms_txt_valid"`
	HasAITxt         bool     `json:"has_ai_txt"`
	AITxtValid       bool     `json:"ai_txt_valid"`
	OptimizedPages   int      `json:"optimized_pages"`
	EligiblePages    int      `json:"eligible_pages"`
	FAQSchemaCount   int      `json:"faq_schema_count"`
	HowToSchemaCount int      `json:"howto_schema_count"`
	SpeakableCount   int      `json:"speakable_schema_count"`
}

// AISearch scores how discoverable the site is for AI answer engines and
// persists the result. Probe failures degrade the score but never the job.
func (a *Analyzer) AISearch(ctx context.Context, crawlID int64, baseURL string, policy *robots.Policy, userAgent string) {
	pages, err := a.store.PagesForAnalysis(ctx, crawlID)
	if err != nil {
		a.logger.Warn("ai-search page load failed", zap.Int64("crawl_id", crawlID), zap.Error(err))
		return
	}

	r := AIReadiness{Score: 100}
	if policy != nil {
		for bot, access := range policy.AIBotAccess() {
			if access == robots.AIDisallowed {
				r.BlockedAIBots = append(r.BlockedAIBots, bot)
			}
		}
		sort.Strings(r.BlockedAIBots)
	}

	r.HasLLMsTxt, r.LLMsTxtValid = a.probeGuidance(ctx, baseURL, "/llms.txt", userAgent)
	r.HasAITxt, r.AITxtValid = a.probeGuidance(ctx, baseURL, "/ai.txt", userAgent)

	for _, page := range pages {
		if page.FetchError != "" || !page.IsIndexable {
			continue
		}
		r.EligiblePages++
		if page.H1Count == 1 && page.H2Count >= 2 && page.WordCount >= 300 && page.TitleLength >= 20 {
			r.OptimizedPages++
		}
		for _, st := range page.SchemaTypes {
			switch strings.ToLower(st) {
			case "faqpage":
				r.FAQSchemaCount++
			case "howto":
				r.HowToSchemaCount++
			case "speakable", "speakablespecification":
				r.SpeakableCount++
			}
		}
	}

	r.Score = scoreAIReadiness(&r)
	if err := a.store.SaveAIReadiness(ctx, crawlID, r.Score, &r); err != nil {
		a.logger.Warn("ai-search save failed", zap.Int64("crawl_id", crawlID), zap.Error(err))
	}
}

// scoreAIReadiness applies the fixed penalty table to a full breakdown.
func scoreAIReadiness(r *AIReadiness) int {
	score := 100

	blocked := 4 * len(r.BlockedAIBots)
	if blocked > 20 {
		blocked = 20
	}
	score -= blocked

	switch {
	case !r.HasLLMsTxt:
		score -= 15
	case !r.LLMsTxtValid:
		score -= 8
	}
	switch {
	case !r.HasAITxt:
		score -= 5
	case !r.AITxtValid:
		score -= 3
	}

	if r.EligiblePages > 0 {
		ratio := float64(r.OptimizedPages) / float64(r.EligiblePages)
		switch {
		case ratio < 0.25:
			score -= 20
		case ratio < 0.5:
			score -= 12
		case ratio < 0.75:
			score -= 5
		}
	}

	if r.FAQSchemaCount == 0 {
		score -= 5
	}
	if r.HowToSchemaCount == 0 {
		score -= 3
	}
	if r.SpeakableCount == 0 {
		score -= 2
	}

	if score < 0 {
		score = 0
	}
	return score
}

// probeGuidance fetches an AI guidance file from the site root. A file is
// valid when it is at least minGuidanceLen characters and carries a
// heading or URL, which filters soft-404 HTML shells.
func (a *Analyzer) probeGuidance(ctx context.Context, baseURL, path, userAgent string) (found, valid bool) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	target := strings.TrimRight(baseURL, "/") + path
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, target, nil)
	if err != nil {
		return false, false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, probeMaxBytes))
	if err != nil {
		return true, false
	}
	text := strings.TrimSpace(string(body))
	if text == "" || strings.HasPrefix(strings.ToLower(text), "<!doctype") || strings.HasPrefix(text, "<html") {
		return false, false
	}
	hasMarker := strings.Contains(text, "#") || strings.Contains(text, "http")
	return true, len(text) >= minGuidanceLen && hasMarker
}
