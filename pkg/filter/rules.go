package filter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/zpam/spamscore/pkg/config"
	"github.com/zpam/spamscore/pkg/email"
	"github.com/zpam/spamscore/pkg/reputation"
	"go.uber.org/zap"
)

// Recorder receives per-rule evaluation times
type Recorder interface {
	Record(name string, duration time.Duration)
}

// ruleInput is everything a rule may look at
type ruleInput struct {
	msg      *email.Message
	features *email.Features
}

type rule struct {
	name string
	eval func(ctx context.Context, in *ruleInput) (Finding, bool)
}

// RuleEngine evaluates the fixed rule battery against one message
type RuleEngine struct {
	keywords        []string
	disposable      map[string]struct{}
	shortenerHints  []string
	newDomainMaxAge int
	concurrent      bool

	provider reputation.Provider
	recorder Recorder
	logger   *zap.Logger

	rules []rule
}

// NewRuleEngine builds the rule battery from configuration tables
func NewRuleEngine(cfg *config.Config, provider reputation.Provider, logger *zap.Logger) *RuleEngine {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &RuleEngine{
		keywords:        lowerAll(cfg.Detection.Keywords),
		disposable:      make(map[string]struct{}, len(cfg.Detection.DisposableDomains)),
		shortenerHints:  cfg.Detection.ShortenerHints,
		newDomainMaxAge: cfg.Reputation.NewDomainMaxAgeDays,
		concurrent:      cfg.Detection.ConcurrentRules,
		provider:        provider,
		logger:          logger,
	}
	for _, d := range cfg.Detection.DisposableDomains {
		e.disposable[strings.ToLower(d)] = struct{}{}
	}

	e.rules = []rule{
		{RuleSpamKeywords, e.scoreKeywords},
		{RuleExcessivePunctuation, e.scorePunctuation},
		{RuleAllCapsSubject, e.scoreAllCapsSubject},
		{RulePoorHTMLStructure, e.scoreHTMLStructure},
		{RuleSuspiciousURL, e.scoreLinks},
		{RuleSPFFail, e.checkSPF},
		{RuleNoDKIM, e.checkDKIM},
		{RuleDMARCFail, e.checkDMARC},
		{RuleDisposableDomain, e.checkDisposableDomain},
		{RuleNewDomain, e.checkDomainAge},
		{RuleDNSBLListed, e.checkDNSBL},
	}
	return e
}

// SetRecorder enables per-rule timing
func (e *RuleEngine) SetRecorder(r Recorder) {
	e.recorder = r
}

// RuleNames returns the rule names in evaluation order
func (e *RuleEngine) RuleNames() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.name
	}
	return names
}

// Evaluate runs every rule and returns the findings in rule order
func (e *RuleEngine) Evaluate(ctx context.Context, msg *email.Message, features *email.Features) []Finding {
	in := &ruleInput{msg: msg, features: features}

	// one slot per rule keeps the fixed order regardless of completion order
	slots := make([]*Finding, len(e.rules))

	if e.concurrent {
		var wg sync.WaitGroup
		for i := range e.rules {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				slots[i] = e.run(ctx, e.rules[i], in)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range e.rules {
			slots[i] = e.run(ctx, e.rules[i], in)
		}
	}

	findings := make([]Finding, 0, len(slots))
	for _, f := range slots {
		if f != nil {
			findings = append(findings, *f)
		}
	}
	return findings
}

// run evaluates one rule; a panicking rule does not fire
func (e *RuleEngine) run(ctx context.Context, r rule, in *ruleInput) (result *Finding) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("rule panicked", zap.String("rule", r.name), zap.Any("panic", rec))
			result = nil
		}
		if e.recorder != nil {
			e.recorder.Record(r.name, time.Since(start))
		}
	}()

	finding, fired := r.eval(ctx, in)
	if !fired {
		return nil
	}
	finding.Name = r.name
	return &finding
}

func (e *RuleEngine) scoreKeywords(_ context.Context, in *ruleInput) (Finding, bool) {
	lowered := strings.ToLower(in.features.ScanText)
	var found []string
	for _, kw := range e.keywords {
		if strings.Contains(lowered, kw) {
			found = append(found, kw)
		}
	}
	if len(found) == 0 {
		return Finding{}, false
	}
	return Finding{
		Points: 10 + 2*len(found),
		Info:   fmt.Sprintf("Found suspicious terms: %s", strings.Join(found, ", ")),
	}, true
}

func (e *RuleEngine) scorePunctuation(_ context.Context, in *ruleInput) (Finding, bool) {
	count := strings.Count(in.features.ScanText, "!")
	if count < 5 {
		return Finding{}, false
	}
	return Finding{
		Points: min(15, count),
		Info:   fmt.Sprintf("Found %d exclamation marks", count),
	}, true
}

func (e *RuleEngine) scoreAllCapsSubject(_ context.Context, in *ruleInput) (Finding, bool) {
	subject := in.features.Subject
	if !isUpper(subject) || utf8.RuneCountInString(subject) <= 5 {
		return Finding{}, false
	}
	return Finding{Points: 8, Info: "Subject is all capital letters"}, true
}

func (e *RuleEngine) scoreHTMLStructure(_ context.Context, in *ruleInput) (Finding, bool) {
	html := in.msg.HTMLBody
	if html == "" {
		return Finding{}, false
	}

	var issues []string
	if !strings.Contains(strings.ToLower(html), "<!doctype") {
		issues = append(issues, "missing doctype")
	}
	if strings.Count(html, "<div") != strings.Count(html, "</div>") {
		issues = append(issues, "unbalanced div tags")
	}
	if len(issues) == 0 {
		return Finding{}, false
	}
	return Finding{Points: 7, Info: strings.Join(issues, ", ")}, true
}

func (e *RuleEngine) scoreLinks(_ context.Context, in *ruleInput) (Finding, bool) {
	var suspicious []string
	for _, u := range in.features.URLs {
		for _, hint := range e.shortenerHints {
			if strings.Contains(u, hint) {
				suspicious = append(suspicious, u)
				break
			}
		}
	}
	if len(suspicious) == 0 {
		return Finding{}, false
	}
	return Finding{
		Points: 10,
		Info:   fmt.Sprintf("Found shortened/suspicious URLs: %s", strings.Join(suspicious, ", ")),
	}, true
}

func (e *RuleEngine) checkSPF(_ context.Context, in *ruleInput) (Finding, bool) {
	// "softfail" contains "fail"
	if !strings.Contains(strings.ToLower(in.msg.Header("Received-SPF")), "fail") {
		return Finding{}, false
	}
	return Finding{Points: 12, Info: "SPF validation failed"}, true
}

func (e *RuleEngine) checkDKIM(_ context.Context, in *ruleInput) (Finding, bool) {
	if in.msg.Header("DKIM-Signature") != "" {
		return Finding{}, false
	}
	return Finding{Points: 15, Info: "Missing DKIM signature"}, true
}

func (e *RuleEngine) checkDMARC(_ context.Context, in *ruleInput) (Finding, bool) {
	if !strings.Contains(strings.ToLower(in.msg.Header("Authentication-Results")), "dmarc=fail") {
		return Finding{}, false
	}
	return Finding{Points: 10, Info: "DMARC validation failed"}, true
}

func (e *RuleEngine) checkDisposableDomain(_ context.Context, in *ruleInput) (Finding, bool) {
	domain := in.features.SenderDomain
	if _, ok := e.disposable[domain]; !ok {
		return Finding{}, false
	}
	return Finding{Points: 10, Info: fmt.Sprintf("Sender domain %s is disposable", domain)}, true
}

func (e *RuleEngine) checkDomainAge(ctx context.Context, in *ruleInput) (Finding, bool) {
	age := e.provider.AgeDays(ctx, in.features.SenderDomain)
	if age > e.newDomainMaxAge {
		return Finding{}, false
	}
	return Finding{Points: 10, Info: fmt.Sprintf("Domain registered %d days ago", age)}, true
}

func (e *RuleEngine) checkDNSBL(ctx context.Context, in *ruleInput) (Finding, bool) {
	domain := in.features.SenderDomain
	if domain == "" || !e.provider.IsListed(ctx, domain) {
		return Finding{}, false
	}
	return Finding{Points: 18, Info: fmt.Sprintf("Domain %s is on a blocklist", domain)}, true
}

// isUpper reports whether s has at least one cased letter and no lowercase
// or titlecase letters
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		switch {
		case unicode.IsLower(r), unicode.IsTitle(r):
			return false
		case unicode.IsUpper(r):
			cased = true
		}
	}
	return cased
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
