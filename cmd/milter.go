package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zpam/spamscore/pkg/milter"
	"go.uber.org/zap"
)

var (
	milterNetwork string
	milterAddress string
	milterReject  string
)

var milterCmd = &cobra.Command{
	Use:   "milter",
	Short: "Start milter server for Postfix/Sendmail integration",
	Long: `Start the spamscore milter server to score mail as the MTA receives it.

Every message gets X-Spamscore-* headers with its score, category, triggered
rules and authentication results. With --reject set, messages at or above that
category are refused with a 550.

Example usage:
  spamscore milter --network tcp --address 127.0.0.1:7357
  spamscore milter --reject LIKELY_SPAM

For Postfix integration, add to main.cf:
  smtpd_milters = inet:127.0.0.1:7357
  non_smtpd_milters = inet:127.0.0.1:7357
  milter_default_action = accept`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("network") {
			cfg.Milter.Network = milterNetwork
		}
		if cmd.Flags().Changed("address") {
			cfg.Milter.Address = milterAddress
		}
		if cmd.Flags().Changed("reject") {
			cfg.Milter.RejectCategory = milterReject
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := milter.NewServer(cfg.Milter, a.filter, a.logger)
		listener, err := srv.Listen()
		if err != nil {
			return err
		}
		defer listener.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := srv.Serve(ctx, listener); err != nil {
			return err
		}
		a.logger.Info("milter sessions handled", zap.Uint64("count", srv.Stats().MilterCount))
		return nil
	},
}

func init() {
	milterCmd.Flags().StringVar(&milterNetwork, "network", "tcp", "Network type (tcp or unix)")
	milterCmd.Flags().StringVar(&milterAddress, "address", "127.0.0.1:7357", "Listen address")
	milterCmd.Flags().StringVar(&milterReject, "reject", "", "Reject messages at or above this category (SUSPICIOUS or LIKELY_SPAM)")
}
