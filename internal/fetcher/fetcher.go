// Package fetcher drives a headless browser to fetch one URL at a time,
// recording the redirect chain and transport metadata, and hands the
// rendered HTML to the extractor.
package fetcher

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/siteaudit/internal/domain"
	"github.com/user/siteaudit/internal/extractor"
	"github.com/user/siteaudit/internal/urlutil"
)

// Options configures one job's fetcher.
type Options struct {
	ProjectDomain    string
	FollowSubdomains bool
	RenderJavascript bool
	NavTimeout       time.Duration
	MaxRetries       int
	RetryBaseDelay   time.Duration
}

// Fetcher fetches pages through a shared browser.
type Fetcher struct {
	browser *Browser
	opts    Options
	logger  *zap.Logger
}

// New builds a fetcher over an open browser.
func New(browser *Browser, opts Options, logger *zap.Logger) *Fetcher {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = time.Second
	}
	return &Fetcher{browser: browser, opts: opts, logger: logger}
}

// retryablePatterns mark transient network failures worth another attempt.
var retryablePatterns = []string{
	"ECONNRESET",
	"ETIMEDOUT",
	"ECONNREFUSED",
	"EPIPE",
	"socket hang up",
	"aborted",
	"ERR_CONNECTION_RESET",
	"ERR_CONNECTION_CLOSED",
	"ERR_CONNECTION_TIMED_OUT",
	"ERR_CONNECTION_REFUSED",
	"ERR_NETWORK_CHANGED",
	"ERR_TIMED_OUT",
	"net::ERR_EMPTY_RESPONSE",
}

func isRetryable(err error) bool {
	msg := err.Error()
	for _, pat := range retryablePatterns {
		if strings.Contains(msg, pat) {
			return true
		}
	}
	return false
}

// Crawl fetches one URL, retrying transient network failures with
// exponential backoff, and returns a PageRecord on every path: a full
// record on success, a minimal one for non-HTML content, and an
// error-shaped record when the fetch permanently fails.
func (f *Fetcher) Crawl(ctx context.Context, entry domain.FrontierEntry) *domain.PageRecord {
	var lastErr error
	var lastStatus int
	for attempt := 0; attempt <= f.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := f.opts.RetryBaseDelay * (1 << (attempt - 1))
			f.logger.Debug("retrying fetch",
				zap.String("url", entry.URL),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return f.errorRecord(entry, ctx.Err().Error(), lastStatus)
			}
		}

		rec, status, err := f.fetchOnce(ctx, entry)
		if err == nil {
			return rec
		}
		lastErr = err
		if status != 0 {
			lastStatus = status
		}
		if !isRetryable(err) {
			break
		}
	}

	f.logger.Warn("fetch failed", zap.String("url", entry.URL), zap.Error(lastErr))
	return f.errorRecord(entry, lastErr.Error(), lastStatus)
}

type navResult struct {
	statusCode  int
	contentType string
	finalURL    string
	redirects   []domain.RedirectHop
}

// fetchOnce returns the record, or the last document status observed
// before the failure so a dying 5xx still surfaces on the error record.
func (f *Fetcher) fetchOnce(ctx context.Context, entry domain.FrontierEntry) (*domain.PageRecord, int, error) {
	pageCtx, cancel := f.browser.NewPage()
	defer cancel()

	pageCtx, timeoutCancel := context.WithTimeout(pageCtx, f.opts.NavTimeout)
	defer timeoutCancel()

	// Stop waiting early when the job is cancelled.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-pageCtx.Done():
		}
	}()

	nav := &navResult{}
	listenForResponses(pageCtx, nav)

	start := time.Now()
	var html string

	actions := []chromedp.Action{
		network.Enable(),
		chromedp.Navigate(entry.URL),
	}
	if f.opts.RenderJavascript {
		actions = append(actions, waitDocumentComplete(), chromedp.Sleep(500*time.Millisecond))
	} else {
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))
	}
	actions = append(actions,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&nav.finalURL),
	)

	if err := chromedp.Run(pageCtx, actions...); err != nil {
		return nil, nav.statusCode, err
	}
	responseTime := int(time.Since(start).Milliseconds())

	finalURL := nav.finalURL
	if finalURL == "" {
		finalURL = entry.URL
	}
	statusCode := nav.statusCode
	if statusCode == 0 {
		statusCode = 200
	}

	if nav.contentType != "" && !strings.Contains(strings.ToLower(nav.contentType), "text/html") {
		return &domain.PageRecord{
			URL:                finalURL,
			URLHash:            urlutil.Hash(finalURL),
			StatusCode:         statusCode,
			ContentType:        nav.contentType,
			ResponseTimeMs:     responseTime,
			PageDepth:          entry.Depth,
			DiscoveredVia:      entry.Source,
			IsIndexable:        false,
			IndexabilityReason: "Not HTML content",
		}, 0, nil
	}

	rec, err := extractor.Extract(extractor.Input{
		HTML:             html,
		FinalURL:         finalURL,
		StatusCode:       statusCode,
		ContentType:      nav.contentType,
		ResponseTimeMs:   responseTime,
		RedirectChain:    nav.redirects,
		PageDepth:        entry.Depth,
		DiscoveredVia:    entry.Source,
		ProjectDomain:    f.opts.ProjectDomain,
		FollowSubdomains: f.opts.FollowSubdomains,
	})
	if err != nil {
		return nil, nav.statusCode, err
	}

	if f.opts.RenderJavascript {
		rec.Vitals = measureVitals(pageCtx)
	}
	return rec, 0, nil
}

// listenForResponses records document responses: 3xx hops build the
// redirect chain; the last non-3xx document response supplies the status
// and content type.
func listenForResponses(ctx context.Context, nav *navResult) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		status := int(resp.Response.Status)
		if status >= 300 && status < 400 {
			nav.redirects = append(nav.redirects, domain.RedirectHop{
				URL:        resp.Response.URL,
				StatusCode: status,
			})
			return
		}
		nav.statusCode = status
		nav.contentType = resp.Response.MimeType
	})
}

func waitDocumentComplete() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			var readyState string
			if err := chromedp.Evaluate(`document.readyState`, &readyState).Do(ctx); err != nil {
				return err
			}
			if readyState == "complete" {
				return nil
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
}

const vitalsScript = `(() => {
	const out = {};
	const nav = performance.getEntriesByType("navigation")[0];
	if (nav) { out.ttfb = nav.responseStart - nav.requestStart; }
	const fcp = performance.getEntriesByName("first-contentful-paint")[0];
	if (fcp) { out.fcp = fcp.startTime; }
	const lcpEntries = performance.getEntriesByType("largest-contentful-paint");
	if (lcpEntries.length > 0) { out.lcp = lcpEntries[lcpEntries.length - 1].startTime; }
	let cls = 0, seen = false;
	for (const e of performance.getEntriesByType("layout-shift")) {
		if (!e.hadRecentInput) { cls += e.value; seen = true; }
	}
	if (seen) { out.cls = cls; }
	return out;
})()`

// measureVitals samples performance entries in-page. Metrics that the
// browser did not record are simply absent.
func measureVitals(ctx context.Context) *domain.CoreWebVitals {
	var raw map[string]float64
	if err := chromedp.Run(ctx, chromedp.Evaluate(vitalsScript, &raw)); err != nil {
		return nil
	}
	if len(raw) == 0 {
		return nil
	}
	vitals := &domain.CoreWebVitals{}
	if v, ok := raw["lcp"]; ok {
		vitals.LCPMs = &v
	}
	if v, ok := raw["fcp"]; ok {
		vitals.FCPMs = &v
	}
	if v, ok := raw["ttfb"]; ok {
		vitals.TTFBMs = &v
	}
	if v, ok := raw["cls"]; ok {
		vitals.CLS = &v
	}
	return vitals
}

// errorRecord carries the status observed before the failure; zero means
// no document response ever arrived.
func (f *Fetcher) errorRecord(entry domain.FrontierEntry, reason string, status int) *domain.PageRecord {
	return &domain.PageRecord{
		URL:                entry.URL,
		URLHash:            urlutil.Hash(entry.URL),
		StatusCode:         status,
		PageDepth:          entry.Depth,
		DiscoveredVia:      entry.Source,
		IsIndexable:        false,
		IndexabilityReason: classifyFailure(reason),
		FetchError:         reason,
	}
}

func classifyFailure(reason string) string {
	switch {
	case strings.Contains(reason, "ERR_NAME_NOT_RESOLVED"), strings.Contains(reason, "ENOTFOUND"):
		return "DNS resolution failed"
	case strings.Contains(reason, "REFUSED"):
		return "Connection refused"
	case strings.Contains(reason, "deadline exceeded"), strings.Contains(reason, "TIMED_OUT"), strings.Contains(reason, "ETIMEDOUT"):
		return "Navigation timeout"
	default:
		return "Navigation failed"
	}
}
