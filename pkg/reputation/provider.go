package reputation

import "context"

// Provider answers sender domain reputation questions for the rule engine.
// Implementations must not fail: lookup problems degrade to a neutral answer.
type Provider interface {
	// AgeDays returns the registration age of domain in days
	AgeDays(ctx context.Context, domain string) int

	// IsListed reports whether domain is on a blocklist
	IsListed(ctx context.Context, domain string) bool
}

// SimulatedAge derives a stable pseudo age in the range 1..60 from the domain
// name. It stands in for a registrar lookup; an empty domain is treated as old.
func SimulatedAge(domain string) int {
	if domain == "" {
		return 365
	}
	sum := 0
	for _, r := range domain {
		sum += int(r)
	}
	return sum%60 + 1
}
