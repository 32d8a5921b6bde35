// Package issues maps extracted page signals to the issue catalogue. The
// catalogue is authoritative: a rule emitting a code with no active
// definition is silently dropped.
package issues

import (
	"math"

	"go.uber.org/zap"

	"github.com/user/siteaudit/internal/domain"
)

// Rule is a pure check over one PageRecord. Each issue family is one rule.
type Rule func(*domain.PageRecord) []domain.IssueTuple

// Detector sequences the rule bank against the loaded catalogue.
type Detector struct {
	catalogue map[string]domain.IssueDefinition
	rules     []Rule
	logger    *zap.Logger
}

// NewDetector builds a detector over the catalogue loaded for this job.
// Inactive definitions are kept out of the lookup so their codes drop.
func NewDetector(defs []domain.IssueDefinition, logger *zap.Logger) *Detector {
	catalogue := make(map[string]domain.IssueDefinition, len(defs))
	for _, def := range defs {
		if def.Active {
			catalogue[def.Code] = def
		}
	}
	return &Detector{
		catalogue: catalogue,
		logger:    logger,
		rules: []Rule{
			crawlabilityRules,
			contentRules,
			performanceRules,
			securityRules,
			imageRules,
			structuredDataRules,
			mobileRules,
			internationalRules,
			socialRules,
			technicalRules,
		},
	}
}

// Detect runs every rule against the page and returns the tuples whose
// codes exist in the catalogue.
func (d *Detector) Detect(page *domain.PageRecord) []domain.IssueTuple {
	var out []domain.IssueTuple
	for _, rule := range d.rules {
		for _, tuple := range rule(page) {
			if _, known := d.catalogue[tuple.Code]; !known {
				d.logger.Debug("dropping issue code absent from catalogue",
					zap.String("code", tuple.Code), zap.String("url", page.URL))
				continue
			}
			out = append(out, tuple)
		}
	}
	return out
}

// Definition looks up the catalogue entry for a code.
func (d *Detector) Definition(code string) (domain.IssueDefinition, bool) {
	def, ok := d.catalogue[code]
	return def, ok
}

// Tally accumulates detected issues by severity and category over a job.
type Tally struct {
	Errors   int
	Warnings int
	Notices  int

	byCategory map[string]*domain.IssueCounts
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{byCategory: make(map[string]*domain.IssueCounts)}
}

// Add records one detected issue under its definition.
func (t *Tally) Add(def domain.IssueDefinition) {
	cat := t.byCategory[def.Category]
	if cat == nil {
		cat = &domain.IssueCounts{}
		t.byCategory[def.Category] = cat
	}
	cat.Total++
	switch def.Severity {
	case domain.SeverityError:
		t.Errors++
		cat.Errors++
	case domain.SeverityWarning:
		t.Warnings++
		cat.Warnings++
	case domain.SeverityNotice:
		t.Notices++
		cat.Notices++
	}
}

// Total is the number of issues recorded.
func (t *Tally) Total() int { return t.Errors + t.Warnings + t.Notices }

// CategoryScores computes the per-category score from the weighted
// penalty formula.
func (t *Tally) CategoryScores() map[string]int {
	out := make(map[string]int, len(t.byCategory))
	for category, counts := range t.byCategory {
		out[category] = Score(counts.Errors, counts.Warnings, counts.Notices)
	}
	return out
}

// Score applies the weighted penalty formula, clamped to [0, 100].
func Score(errors, warnings, notices int) int {
	score := 100 - 5*errors - 2*warnings - int(math.Floor(0.5*float64(notices)))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
