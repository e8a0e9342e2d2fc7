package cmd

import (
	"fmt"

	"github.com/zpam/spamscore/pkg/config"
	"github.com/zpam/spamscore/pkg/filter"
	"github.com/zpam/spamscore/pkg/logging"
	"github.com/zpam/spamscore/pkg/reputation"
	"go.uber.org/zap"
)

// app holds everything a command needs to score messages
type app struct {
	config *config.Config
	logger *zap.Logger
	probe  *reputation.Probe
	filter *filter.SpamFilter
}

// loadConfig reads --config (or the defaults) and applies --log-level
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return cfg, nil
}

// newApp builds the logger, reputation probe and filter from cfg
func newApp(cfg *config.Config) (*app, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	probe, err := reputation.NewProbeFromConfig(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	return &app{
		config: cfg,
		logger: logger,
		probe:  probe,
		filter: filter.NewSpamFilterWithConfig(cfg, probe, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.probe.Close(); err != nil {
		a.logger.Warn("failed to close reputation probe", zap.Error(err))
	}
	_ = a.logger.Sync()
}
