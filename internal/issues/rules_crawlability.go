package issues

import "github.com/user/siteaudit/internal/domain"

const slowResponseMs = 3000

// crawlabilityRules covers HTTP status classes, redirect shape, and
// response time. Broken outbound links need the whole crawl's statuses
// and are flagged after the crawl instead.
func crawlabilityRules(page *domain.PageRecord) []domain.IssueTuple {
	var out []domain.IssueTuple

	switch {
	case page.StatusCode >= 500:
		out = append(out, tuple("CRAWL_5XX_ERROR", map[string]any{"statusCode": page.StatusCode}))
	case page.StatusCode >= 400:
		out = append(out, tuple("CRAWL_4XX_ERROR", map[string]any{"statusCode": page.StatusCode}))
	}

	if len(page.RedirectChain) > 1 {
		out = append(out, tuple("CRAWL_REDIRECT_CHAIN", map[string]any{
			"chainLength": len(page.RedirectChain),
			"chain":       page.RedirectChain,
		}))
	}
	for _, hop := range page.RedirectChain {
		if hop.StatusCode == 302 || hop.StatusCode == 307 {
			out = append(out, tuple("CRAWL_TEMP_REDIRECT", map[string]any{
				"url":        hop.URL,
				"statusCode": hop.StatusCode,
			}))
			break
		}
	}

	if page.ResponseTimeMs > slowResponseMs {
		out = append(out, tuple("CRAWL_SLOW_RESPONSE", map[string]any{
			"responseTimeMs": page.ResponseTimeMs,
		}))
	}

	return out
}

func tuple(code string, details map[string]any) domain.IssueTuple {
	return domain.IssueTuple{Code: code, Details: details}
}
