package filter

import (
	"testing"

	"github.com/zpam/spamscore/pkg/config"
)

func TestCategorize(t *testing.T) {
	aggregator := NewAggregator(config.DefaultConfig().Detection)

	testCases := []struct {
		score    int
		expected Category
	}{
		{0, CategorySafe},
		{30, CategorySafe},
		{31, CategorySuspicious},
		{60, CategorySuspicious},
		{61, CategoryLikelySpam},
		{100, CategoryLikelySpam},
	}

	for _, tc := range testCases {
		if got := aggregator.Categorize(tc.score); got != tc.expected {
			t.Errorf("Categorize(%d) = %s, expected %s", tc.score, got, tc.expected)
		}
	}
}

func TestScoreClampsOnlyTheTotal(t *testing.T) {
	aggregator := NewAggregator(config.DefaultConfig().Detection)

	testCases := []struct {
		name     string
		points   []int
		expected int
	}{
		{"empty", nil, 0},
		{"sum", []int{12, 15, 3}, 30},
		{"boundary", []int{18, 15, 12, 10, 5}, 60},
		{"clamped", []int{18, 15, 12, 10, 10, 10, 10, 10, 15, 8, 7}, 100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var findings []Finding
			for _, p := range tc.points {
				findings = append(findings, Finding{Name: "X", Points: p})
			}
			if got := aggregator.Score(findings); got != tc.expected {
				t.Errorf("Score = %d, expected %d", got, tc.expected)
			}
		})
	}
}

func TestAggregate(t *testing.T) {
	aggregator := NewAggregator(config.DefaultConfig().Detection)

	score, category, auth := aggregator.Aggregate([]Finding{
		{Name: RuleSPFFail, Points: 12},
		{Name: RuleNoDKIM, Points: 15},
		{Name: RuleDMARCFail, Points: 10},
	})

	if score != 37 || category != CategorySuspicious {
		t.Errorf("Got %d %s, expected 37 SUSPICIOUS", score, category)
	}
	expected := AuthStatus{SPF: "fail", DKIM: "missing", DMARC: "fail"}
	if auth != expected {
		t.Errorf("AuthStatus = %+v, expected %+v", auth, expected)
	}

	_, category, auth = aggregator.Aggregate(nil)
	if category != CategorySafe {
		t.Errorf("No findings should be SAFE, got %s", category)
	}
	if auth != (AuthStatus{SPF: "pass", DKIM: "pass", DMARC: "pass"}) {
		t.Errorf("AuthStatus = %+v", auth)
	}
}

func TestCustomThresholds(t *testing.T) {
	cfg := config.DefaultConfig().Detection
	cfg.Thresholds = config.Thresholds{Suspicious: 10, Spam: 20}
	cfg.MaxScore = 50
	aggregator := NewAggregator(cfg)

	if got := aggregator.Categorize(11); got != CategorySuspicious {
		t.Errorf("Categorize(11) = %s", got)
	}
	if got := aggregator.Categorize(21); got != CategoryLikelySpam {
		t.Errorf("Categorize(21) = %s", got)
	}
	if got := aggregator.Score([]Finding{{Points: 40}, {Points: 40}}); got != 50 {
		t.Errorf("Score should clamp to 50, got %d", got)
	}
}
