package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clinigraph/internal/config"
	"clinigraph/internal/engine"
	"clinigraph/internal/logging"
)

// app holds what every subcommand needs after flag parsing
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "clinigraph",
		Short:         "Clinical session analysis graph engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "",
		"config file (default: $"+config.EnvConfigPath+", ./"+config.ConfigFileName+", then XDG locations)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newReplayCmd(a))
	root.AddCommand(newConfigCmd(a))

	return root
}

// init loads the configuration and builds the logger
func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	logger.Debug("config loaded", zap.Stringer("source", cfg.Source()))
	return nil
}

// engineOptions maps the configuration onto engine options
func (a *app) engineOptions(observer engine.Observer) engine.Options {
	thresholds := a.cfg.Thresholds
	weights := a.cfg.Scoring
	return engine.Options{
		Logger:          a.logger,
		Observer:        observer,
		Viewport:        a.cfg.Layout,
		Thresholds:      &thresholds,
		Weights:         &weights,
		ConsensusNodeID: a.cfg.Execution.ConsensusNodeID,
	}
}
