package issues

import "github.com/user/siteaudit/internal/domain"

const (
	maxPageSizeBytes = 3 << 20
	maxHTMLBytes     = 100 << 10
	lcpThresholdMs   = 4000
	clsThreshold     = 0.25
	inpThresholdMs   = 500
	ttfbThresholdMs  = 800
)

// performanceRules covers page weight and the Core Web Vitals sampled
// during rendering. Vitals rules only fire when the metric was captured.
func performanceRules(page *domain.PageRecord) []domain.IssueTuple {
	var out []domain.IssueTuple

	// Independent thresholds: a page over the hard cap also trips the
	// HTML weight check.
	if page.PageSizeBytes > maxPageSizeBytes {
		out = append(out, tuple("PERF_PAGE_TOO_LARGE", map[string]any{"bytes": page.PageSizeBytes}))
	}
	if page.PageSizeBytes > maxHTMLBytes {
		out = append(out, tuple("PERF_HTML_TOO_LARGE", map[string]any{"bytes": page.PageSizeBytes}))
	}

	v := page.Vitals
	if v == nil {
		return out
	}
	if v.LCPMs != nil && *v.LCPMs > lcpThresholdMs {
		out = append(out, tuple("PERF_SLOW_LCP", map[string]any{"lcpMs": *v.LCPMs}))
	}
	if v.CLS != nil && *v.CLS > clsThreshold {
		out = append(out, tuple("PERF_HIGH_CLS", map[string]any{"cls": *v.CLS}))
	}
	if v.INPMs != nil && *v.INPMs > inpThresholdMs {
		out = append(out, tuple("PERF_SLOW_INP", map[string]any{"inpMs": *v.INPMs}))
	}
	if v.TTFBMs != nil && *v.TTFBMs > ttfbThresholdMs {
		out = append(out, tuple("PERF_SLOW_TTFB", map[string]any{"ttfbMs": *v.TTFBMs}))
	}

	return out
}

// securityRules covers transport security signals.
func securityRules(page *domain.PageRecord) []domain.IssueTuple {
	var out []domain.IssueTuple
	if !page.IsHTTPS {
		out = append(out, tuple("SECURITY_NOT_HTTPS", nil))
	}
	if page.HasMixedContent {
		out = append(out, tuple("SECURITY_MIXED_CONTENT", nil))
	}
	return out
}

// imageRules covers alt-text coverage.
func imageRules(page *domain.PageRecord) []domain.IssueTuple {
	var out []domain.IssueTuple
	if page.ImagesWithoutAlt > 0 {
		out = append(out, tuple("IMAGES_MISSING_ALT", map[string]any{"count": page.ImagesWithoutAlt}))
	}
	if page.ImagesWithEmptyAlt > 0 {
		out = append(out, tuple("IMAGES_EMPTY_ALT", map[string]any{"count": page.ImagesWithEmptyAlt}))
	}
	return out
}
