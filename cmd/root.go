package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "spamscore",
	Short: "spamscore - heuristic email spam scorer",
	Long: `spamscore parses a raw email, runs a fixed set of heuristic rules over it
and reports a 0-100 score with a SAFE, SUSPICIOUS or LIKELY_SPAM category.

It can score single files, sort a directory of messages, serve an HTTP API
or run as a milter in front of Postfix/Sendmail.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("spamscore - heuristic email spam scorer")
		fmt.Println("Use 'spamscore --help' for usage information")
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging level (debug, info, warn, error)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(milterCmd)
	rootCmd.AddCommand(reputationCmd)
	rootCmd.AddCommand(configCmd)
}
