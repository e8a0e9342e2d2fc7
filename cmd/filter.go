package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zpam/spamscore/pkg/filter"
	"github.com/zpam/spamscore/pkg/profiler"
)

var (
	inputPath    string
	outputPath   string
	spamPath     string
	spamCategory string
	profileRun   bool
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Score and sort a directory of emails",
	Long: `Score every message under --input. Messages at or above --category are
moved to --spam, the rest to --output. Omitting a destination leaves those
messages where they are.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		category := filter.Category(spamCategory)
		if category != filter.CategorySuspicious && category != filter.CategoryLikelySpam {
			return fmt.Errorf("category must be SUSPICIOUS or LIKELY_SPAM, got %q", spamCategory)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		var prof *profiler.Profiler
		if profileRun {
			prof = profiler.NewProfiler()
			a.filter.SetRecorder(prof)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		start := time.Now()
		results, err := a.filter.ProcessEmails(ctx, inputPath, outputPath, spamPath, category)
		if err != nil {
			return fmt.Errorf("failed to process emails: %w", err)
		}
		duration := time.Since(start)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "spamscore processing complete!\n")
		fmt.Fprintf(out, "Emails processed: %d\n", results.Total)
		fmt.Fprintf(out, "Safe: %d\n", results.Safe)
		fmt.Fprintf(out, "Suspicious: %d\n", results.Suspicious)
		fmt.Fprintf(out, "Likely spam: %d\n", results.LikelySpam)
		fmt.Fprintf(out, "Failed: %d\n", results.Failed)
		fmt.Fprintf(out, "Moved: %d\n", results.Moved)
		if results.Total > 0 {
			fmt.Fprintf(out, "Average processing time: %.2fms per email\n",
				float64(duration.Nanoseconds())/float64(results.Total)/1e6)
		}
		fmt.Fprintf(out, "Total time: %v\n", duration)

		if configFile != "" {
			fmt.Fprintf(out, "Configuration: %s\n", configFile)
		}

		if prof != nil {
			fmt.Fprintln(out)
			prof.WriteReport(out)
		}

		return nil
	},
}

func init() {
	filterCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input directory or file path")
	filterCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Directory for messages below --category")
	filterCmd.Flags().StringVarP(&spamPath, "spam", "s", "", "Directory for messages at or above --category")
	filterCmd.Flags().StringVar(&spamCategory, "category", string(filter.CategoryLikelySpam), "Lowest category moved to --spam (SUSPICIOUS or LIKELY_SPAM)")
	filterCmd.Flags().BoolVar(&profileRun, "profile", false, "Print per-stage and per-rule timings")

	_ = filterCmd.MarkFlagRequired("input")
}
