package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/zpam/spamscore/pkg/filter"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze [email-file]",
	Short: "Score a single email",
	Long: `Score a single raw email file and print its score, category and triggered rules.
Use "-" to read the message from stdin.`,
	Args: cobra.ExactArgs(1),
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
		start := time.Now()

		var result *filter.AnalysisResult
		if args[0] == "-" {
			raw, readErr := io.ReadAll(cmd.InOrStdin())
			if readErr != nil {
				return fmt.Errorf("failed to read stdin: %w", readErr)
			}
			result, err = a.filter.Analyze(ctx, string(raw))
		} else {
			result, err = a.filter.TestEmail(ctx, args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to analyze email: %w", err)
		}
		duration := time.Since(start)

		out := cmd.OutOrStdout()
		if analyzeJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		printResult(out, args[0], result, duration)
		return nil
	},
}

func printResult(w io.Writer, source string, result *filter.AnalysisResult, duration time.Duration) {
	fmt.Fprintf(w, "spamscore results:\n")
	fmt.Fprintf(w, "File: %s\n", source)
	fmt.Fprintf(w, "Score: %d/100\n", result.Score)
	fmt.Fprintf(w, "Category: %s\n", result.Category)
	fmt.Fprintf(w, "Auth: spf=%s dkim=%s dmarc=%s\n",
		result.AuthStatus.SPF, result.AuthStatus.DKIM, result.AuthStatus.DMARC)

	if len(result.Findings) == 0 {
		fmt.Fprintf(w, "Rules triggered: none\n")
	} else {
		fmt.Fprintf(w, "Rules triggered:\n")
		for _, f := range result.Findings {
			fmt.Fprintf(w, "  %-22s +%-3d %s\n", f.Name, f.Points, f.Info)
		}
	}

	if len(result.Links) > 0 {
		fmt.Fprintf(w, "Links:\n")
		for _, link := range result.Links {
			fmt.Fprintf(w, "  %s\n", link)
		}
	}
	fmt.Fprintf(w, "Processing time: %.2fms\n", float64(duration.Nanoseconds())/1e6)
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the result as JSON")
}
