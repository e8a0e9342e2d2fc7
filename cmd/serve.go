package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/zpam/spamscore/pkg/server"
)

var serveAddress string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP analysis API",
	Long: `Start the HTTP API.

  POST /analyze  {"raw": "<full email>"}  -> score, category, rules_triggered, links, headers
  GET  /health                            -> status, uptime and reputation statistics

Example usage:
  spamscore serve --address 127.0.0.1:8000
  curl -s -XPOST localhost:8000/analyze -d '{"raw": "From: a@b.com\n\nhello"}'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("address") {
			cfg.Server.ListenAddress = serveAddress
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if cfg.Logging.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.NewServer(cfg.Server, a.filter, a.probe, a.logger)
		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddress, "address", "", "Listen address (overrides config)")
}
