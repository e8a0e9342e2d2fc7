package filter

import "github.com/zpam/spamscore/pkg/config"

// Aggregator turns findings into a score, a category and an auth summary
type Aggregator struct {
	maxScore   int
	thresholds config.Thresholds
}

// NewAggregator creates an aggregator from the detection settings
func NewAggregator(cfg config.DetectionConfig) *Aggregator {
	return &Aggregator{
		maxScore:   cfg.MaxScore,
		thresholds: cfg.Thresholds,
	}
}

// Score sums the points of all findings and clamps the total at the maximum
func (a *Aggregator) Score(findings []Finding) int {
	total := 0
	for _, f := range findings {
		total += f.Points
	}
	if total > a.maxScore {
		return a.maxScore
	}
	return total
}

// Categorize maps a score onto a category
func (a *Aggregator) Categorize(score int) Category {
	switch {
	case score <= a.thresholds.Suspicious:
		return CategorySafe
	case score <= a.thresholds.Spam:
		return CategorySuspicious
	default:
		return CategoryLikelySpam
	}
}

// Aggregate fills score, category and auth status for findings
func (a *Aggregator) Aggregate(findings []Finding) (int, Category, AuthStatus) {
	score := a.Score(findings)
	return score, a.Categorize(score), authStatus(findings)
}

func authStatus(findings []Finding) AuthStatus {
	status := AuthStatus{SPF: "pass", DKIM: "pass", DMARC: "pass"}
	if hasFinding(findings, RuleSPFFail) {
		status.SPF = "fail"
	}
	if hasFinding(findings, RuleNoDKIM) {
		status.DKIM = "missing"
	}
	if hasFinding(findings, RuleDMARCFail) {
		status.DMARC = "fail"
	}
	return status
}
