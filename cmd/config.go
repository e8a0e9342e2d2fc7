package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zpam/spamscore/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  `Generate, validate and show spamscore configuration files`,
}

var configGenCmd = &cobra.Command{
	Use:   "generate [config-file]",
	Short: "Generate default configuration file",
	Long:  `Generate a configuration file holding every option at its default value`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := "config.yaml"
		if len(args) > 0 {
			configPath = args[0]
		}

		if _, err := os.Stat(configPath); err == nil {
			overwrite, _ := cmd.Flags().GetBool("force")
			if !overwrite {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
			}
		}

		if err := config.DefaultConfig().SaveConfig(configPath); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration file generated: %s\n", configPath)
		fmt.Fprintf(out, "Use 'spamscore analyze --config %s <file>' to use it\n", configPath)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate configuration file",
	Long:  `Validate a configuration file for syntax and logical errors`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(args[0])
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration is valid: %s\n", args[0])

		if warnings := validateConfigLogic(cfg); len(warnings) > 0 {
			fmt.Fprintf(out, "\nWarnings:\n")
			for _, warning := range warnings {
				fmt.Fprintf(out, "  - %s\n", warning)
			}
		}

		fmt.Fprintln(out)
		printConfigSummary(out, cfg)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show [config-file]",
	Short: "Show current configuration",
	Long:  `Display the effective configuration values`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		path := configFile
		if len(args) > 0 {
			path = args[0]
		}
		cfg, err := config.LoadConfig(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if path != "" {
			fmt.Fprintf(out, "Configuration: %s\n\n", path)
		} else {
			fmt.Fprintf(out, "Default Configuration:\n\n")
		}

		printConfigSummary(out, cfg)
		return nil
	},
}

func printConfigSummary(w io.Writer, cfg *config.Config) {
	d := cfg.Detection
	fmt.Fprintf(w, "Detection:\n")
	fmt.Fprintf(w, "  Keywords: %s\n", strings.Join(d.Keywords, ", "))
	fmt.Fprintf(w, "  Disposable domains: %s\n", strings.Join(d.DisposableDomains, ", "))
	fmt.Fprintf(w, "  Shortener hints: %s\n", strings.Join(d.ShortenerHints, ", "))
	fmt.Fprintf(w, "  Categories: SAFE <= %d < SUSPICIOUS <= %d < LIKELY_SPAM (max %d)\n",
		d.Thresholds.Suspicious, d.Thresholds.Spam, d.MaxScore)
	fmt.Fprintf(w, "  Concurrent rules: %t\n", d.ConcurrentRules)

	r := cfg.Reputation
	fmt.Fprintf(w, "\nReputation:\n")
	fmt.Fprintf(w, "  New domain max age: %d days\n", r.NewDomainMaxAgeDays)
	fmt.Fprintf(w, "  Blocklist addresses: %s\n", strings.Join(r.BlocklistIPs, ", "))
	fmt.Fprintf(w, "  Fail open: %t\n", r.FailOpen)
	fmt.Fprintf(w, "  DNS timeout: %dms (cache %t, size %d)\n", r.DNS.TimeoutMs, r.DNS.EnableCaching, r.DNS.CacheSize)
	fmt.Fprintf(w, "  Redis verdict cache: %t\n", r.Redis.Enabled)

	fmt.Fprintf(w, "\nPerformance:\n")
	fmt.Fprintf(w, "  Max concurrent: %d\n", cfg.Performance.MaxConcurrentEmails)
	fmt.Fprintf(w, "  Timeout: %dms\n", cfg.Performance.TimeoutMs)

	fmt.Fprintf(w, "\nServer: %s\n", cfg.Server.ListenAddress)
	fmt.Fprintf(w, "Milter: %s://%s\n", cfg.Milter.Network, cfg.Milter.Address)
}

// validateConfigLogic reports settings that are valid but probably unintended
func validateConfigLogic(cfg *config.Config) []string {
	var warnings []string

	if len(cfg.Detection.Keywords) == 0 {
		warnings = append(warnings, "No spam keywords defined")
	}
	if cfg.Detection.Thresholds.Suspicious == cfg.Detection.Thresholds.Spam {
		warnings = append(warnings, "Suspicious and spam thresholds are equal - nothing can be SUSPICIOUS")
	}
	if len(cfg.Reputation.BlocklistIPs) == 0 {
		warnings = append(warnings, "No blocklist addresses - DNSBL_LISTED only fires on fail-closed errors")
	}
	if !cfg.Reputation.FailOpen {
		warnings = append(warnings, "fail_open is false - resolver outages will mark senders as listed")
	}
	if cfg.Performance.MaxConcurrentEmails > 50 {
		warnings = append(warnings, "High concurrency setting might impact performance")
	}
	if cfg.Performance.TimeoutMs > 0 && cfg.Performance.TimeoutMs < cfg.Reputation.DNS.TimeoutMs {
		warnings = append(warnings, "Analysis timeout is shorter than the DNS timeout")
	}

	return warnings
}

func init() {
	configCmd.AddCommand(configGenCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configGenCmd.Flags().Bool("force", false, "Overwrite existing config file")
}
