package filter

// Category is the verdict derived from the score
type Category string

const (
	CategorySafe       Category = "SAFE"
	CategorySuspicious Category = "SUSPICIOUS"
	CategoryLikelySpam Category = "LIKELY_SPAM"
)

// Rule names in evaluation order
const (
	RuleSpamKeywords         = "SPAM_KEYWORDS"
	RuleExcessivePunctuation = "EXCESSIVE_PUNCTUATION"
	RuleAllCapsSubject       = "ALL_CAPS_SUBJECT"
	RulePoorHTMLStructure    = "POOR_HTML_STRUCTURE"
	RuleSuspiciousURL        = "SUSPICIOUS_URL"
	RuleSPFFail              = "SPF_FAIL"
	RuleNoDKIM               = "NO_DKIM"
	RuleDMARCFail            = "DMARC_FAIL"
	RuleDisposableDomain     = "DISPOSABLE_DOMAIN"
	RuleNewDomain            = "NEW_DOMAIN"
	RuleDNSBLListed          = "DNSBL_LISTED"
)

// Finding is one fired rule
type Finding struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
	Info   string `json:"info"`
}

// AuthStatus summarizes the sender authentication headers
type AuthStatus struct {
	SPF   string `json:"spf"`   // pass, fail
	DKIM  string `json:"dkim"`  // pass, missing
	DMARC string `json:"dmarc"` // pass, fail
}

// AnalysisResult is the outcome of analyzing one message
type AnalysisResult struct {
	Score      int        `json:"score"`
	Category   Category   `json:"category"`
	Findings   []Finding  `json:"rules_triggered"`
	Links      []string   `json:"links"`
	AuthStatus AuthStatus `json:"headers"`
}

// HasFinding reports whether the named rule fired
func (r *AnalysisResult) HasFinding(name string) bool {
	return hasFinding(r.Findings, name)
}

// RuleNames returns the names of fired rules in order
func (r *AnalysisResult) RuleNames() []string {
	return ruleNames(r.Findings)
}

func hasFinding(findings []Finding, name string) bool {
	for _, f := range findings {
		if f.Name == name {
			return true
		}
	}
	return false
}
