package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zpam/spamscore/pkg/email"
)

var (
	reputationStats bool
	reputationCount int
)

var reputationCmd = &cobra.Command{
	Use:   "reputation [domain-or-address...]",
	Short: "Check sender domain reputation",
	Long: `Look up the age and blocklist verdict for each domain the way the
NEW_DOMAIN and DNSBL_LISTED rules do. Email addresses are reduced to their domain.

Example usage:
  spamscore reputation mailinator.com spammer@x.io
  spamscore reputation --count 3 --stats example.com`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "%-30s %8s %5s %8s %10s\n", "DOMAIN", "AGE", "NEW", "LISTED", "TIME")
		for _, arg := range args {
			domain := strings.ToLower(arg)
			if strings.Contains(domain, "@") {
				domain = email.DomainFromAddress(domain)
			}
			if domain == "" {
				fmt.Fprintf(out, "%-30s invalid address\n", arg)
				continue
			}

			age := a.probe.AgeDays(ctx, domain)

			// repeated lookups show the resolver cache at work
			for i := 0; i < reputationCount; i++ {
				start := time.Now()
				listed := a.probe.IsListed(ctx, domain)
				fmt.Fprintf(out, "%-30s %8d %5t %8t %10s\n",
					domain, age, age <= cfg.Reputation.NewDomainMaxAgeDays, listed,
					time.Since(start).Round(time.Microsecond))
			}
		}

		if reputationStats {
			data, err := json.MarshalIndent(a.probe.Stats(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode stats: %w", err)
			}
			fmt.Fprintf(out, "\nReputation statistics:\n%s\n", data)
		}
		return nil
	},
}

func init() {
	reputationCmd.Flags().BoolVar(&reputationStats, "stats", false, "Print breaker and resolver statistics")
	reputationCmd.Flags().IntVar(&reputationCount, "count", 1, "Number of lookups per domain")
}
