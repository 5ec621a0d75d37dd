package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"deliverypulse/internal/app"
	"deliverypulse/internal/config"
	"deliverypulse/internal/infrastructure"
)

// rootOptions holds the persistent flags shared by every command
type rootOptions struct {
	configFile string
	baseDir    string
	logLevel   string

	// logger overrides the configured logger, used by tests
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&rootOptions{})
}

func newRootCmdWith(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "deliverypulse",
		Short:         "Delivery performance dashboard for the Olist e-commerce dataset",
		Long:          `deliverypulse builds a per-order fact table from the seven Olist CSV files and serves an interactive delivery performance dashboard with KPIs, a state map, a delay histogram and category rankings.`,
		Version:       config.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		// One trace id per invocation so pipeline logs correlate like request logs
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(infrastructure.EnsureTraceID(cmd.Context()))
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configFile, "config", "", "YAML config file (default: $DELIVERY_CONFIG or config.yaml when present)")
	f.StringVar(&opts.baseDir, "base-dir", "", "base directory for data/raw, data/processed and logs (overrides config)")
	f.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	cmd.AddCommand(
		newServeCmd(opts),
		newBuildCmd(opts),
		newFetchCmd(opts),
		newReportCmd(opts),
	)
	return cmd
}

// loadConfig reads the config and applies flag overrides
func (o *rootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configFile != "" {
		cfg, err = config.LoadFrom(o.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if o.baseDir != "" {
		cfg.Paths.BaseDir = o.baseDir
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// application builds the wired application for a command
func (o *rootOptions) application(ctx context.Context) (*app.Application, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return app.NewApplication(ctx, cfg, o.logger)
}
