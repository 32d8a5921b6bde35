package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	oracleEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"
	oracleTimeout  = 60 * time.Second
	maxFindings    = 5
)

// Oracle fetches Lighthouse-style audits for a single URL.
type Oracle struct {
	apiKey string
	client *http.Client
	logger *zap.Logger
}

// NewOracle returns nil when no API key is configured; callers skip the
// audit step in that case.
func NewOracle(apiKey string, logger *zap.Logger) *Oracle {
	if apiKey == "" {
		return nil
	}
	return &Oracle{
		apiKey: apiKey,
		client: &http.Client{Timeout: oracleTimeout},
		logger: logger,
	}
}

// StrategyAudit is one device class of the homepage audit.
type StrategyAudit struct {
	Score         int               `json:"score"`
	FieldData     map[string]int    `json:"field_data,omitempty"`
	Opportunities []Finding         `json:"opportunities,omitempty"`
	Diagnostics   []Finding         `json:"diagnostics,omitempty"`
	LabMetrics    map[string]string `json:"lab_metrics,omitempty"`
}

// Finding is a single named opportunity or diagnostic from the audit.
type Finding struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	SavingsMs   float64 `json:"savings_ms,omitempty"`
}

// PerformanceAudit is the persisted mobile + desktop result.
type PerformanceAudit struct {
	URL       string         `json:"url"`
	Mobile    *StrategyAudit `json:"mobile,omitempty"`
	Desktop   *StrategyAudit `json:"desktop,omitempty"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// Audit runs mobile and desktop strategies in parallel. A failed strategy
// leaves its slot nil; both failing returns an error.
func (o *Oracle) Audit(ctx context.Context, pageURL string) (*PerformanceAudit, error) {
	result := &PerformanceAudit{URL: pageURL, FetchedAt: time.Now().UTC()}

	var wg sync.WaitGroup
	for _, strategy := range []string{"mobile", "desktop"} {
		wg.Add(1)
		go func(strategy string) {
			defer wg.Done()
			audit, err := o.runStrategy(ctx, pageURL, strategy)
			if err != nil {
				o.logger.Warn("performance audit strategy failed",
					zap.String("strategy", strategy), zap.String("url", pageURL), zap.Error(err))
				return
			}
			if strategy == "mobile" {
				result.Mobile = audit
			} else {
				result.Desktop = audit
			}
		}(strategy)
	}
	wg.Wait()

	if result.Mobile == nil && result.Desktop == nil {
		return nil, fmt.Errorf("performance audit failed for both strategies")
	}
	return result, nil
}

func (o *Oracle) runStrategy(ctx context.Context, pageURL, strategy string) (*StrategyAudit, error) {
	q := url.Values{}
	q.Set("url", pageURL)
	q.Set("strategy", strategy)
	q.Set("category", "performance")
	q.Set("key", o.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, oracleEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle returned HTTP %d", resp.StatusCode)
	}

	var raw oracleResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	return raw.toAudit(), nil
}

// oracleResponse mirrors the slice of the PageSpeed payload we keep.
type oracleResponse struct {
	LoadingExperience struct {
		Metrics map[string]struct {
			Percentile int `json:"percentile"`
		} `json:"metrics"`
	} `json:"loadingExperience"`
	LighthouseResult struct {
		Categories struct {
			Performance struct {
				Score float64 `json:"score"`
			} `json:"performance"`
		} `json:"categories"`
		Audits map[string]struct {
			Title            string  `json:"title"`
			Description      string  `json:"description"`
			Score            float64 `json:"score"`
			ScoreDisplayMode string  `json:"scoreDisplayMode"`
			DisplayValue     string  `json:"displayValue"`
			Details          struct {
				Type             string  `json:"type"`
				OverallSavingsMs float64 `json:"overallSavingsMs"`
			} `json:"details"`
		} `json:"audits"`
	} `json:"lighthouseResult"`
}

var labMetricIDs = []string{
	"first-contentful-paint",
	"largest-contentful-paint",
	"total-blocking-time",
	"cumulative-layout-shift",
	"speed-index",
	"interactive",
}

func (r *oracleResponse) toAudit() *StrategyAudit {
	out := &StrategyAudit{
		Score:      int(r.LighthouseResult.Categories.Performance.Score * 100),
		FieldData:  map[string]int{},
		LabMetrics: map[string]string{},
	}
	for name, m := range r.LoadingExperience.Metrics {
		out.FieldData[name] = m.Percentile
	}
	for _, id := range labMetricIDs {
		if audit, ok := r.LighthouseResult.Audits[id]; ok && audit.DisplayValue != "" {
			out.LabMetrics[id] = audit.DisplayValue
		}
	}
	for id, audit := range r.LighthouseResult.Audits {
		if audit.Score >= 0.9 && audit.ScoreDisplayMode != "informative" {
			continue
		}
		finding := Finding{ID: id, Title: audit.Title, SavingsMs: audit.Details.OverallSavingsMs}
		switch audit.Details.Type {
		case "opportunity":
			if len(out.Opportunities) < maxFindings {
				out.Opportunities = append(out.Opportunities, finding)
			}
		case "table", "debugdata":
			if audit.ScoreDisplayMode == "numeric" || audit.ScoreDisplayMode == "binary" {
				if len(out.Diagnostics) < maxFindings {
					out.Diagnostics = append(out.Diagnostics, finding)
				}
			}
		}
	}
	return out
}

// Run executes the homepage audit and persists it on the job row.
func (o *Oracle) Run(ctx context.Context, store auditStore, crawlID int64, homepage string) {
	audit, err := o.Audit(ctx, homepage)
	if err != nil {
		o.logger.Warn("performance audit skipped", zap.Int64("crawl_id", crawlID), zap.Error(err))
		return
	}
	if err := store.SavePerformanceAudit(ctx, crawlID, audit); err != nil {
		o.logger.Warn("performance audit save failed", zap.Int64("crawl_id", crawlID), zap.Error(err))
	}
}

type auditStore interface {
	SavePerformanceAudit(ctx context.Context, crawlID int64, audit any) error
}
