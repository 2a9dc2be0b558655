// Package cmd contains all Cobra commands for nlsql.
//
// Design decision: the root command launches the TUI directly. The
// backend address comes from flags, NLSQL_* variables, the config file or
// a saved profile, and can still be changed on the TUI's connect screen.
// The subcommands run the same console controllers headless, for
// scripting and quick checks.
package cmd

import (
	"github.com/DachengChen/nlsql/applog"
	"github.com/DachengChen/nlsql/config"
	"github.com/DachengChen/nlsql/metrics"
	"github.com/DachengChen/nlsql/tui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	v           = viper.New()
	cfg         *config.Config
	stopMetrics = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "nlsql",
	Short: "Terminal console for an NL2SQL service",
	Long: `nlsql is a terminal admin console for an NL2SQL backend:
  • Import Excel sheets into tables (upload, preview, confirm)
  • Ask questions in plain language, get SQL, results and a summary
  • Debug raw SQL with a persistent history
  • Browse, preview and drop tables; edit model config and prompts

Run 'nlsql' to start the TUI with a connection screen.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		stopMetrics()
		applog.Info("nlsql stopped")
		applog.Close()
	},
	// Running with no subcommand launches the TUI.
	RunE: func(cmd *cobra.Command, args []string) error {
		return tui.Start(cfg, Version)
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String(config.KeyConfig, "", "config file (default <data-dir>/config.yaml)")
	f.String(config.KeyAPIURL, config.DefaultAPIURL, "NL2SQL backend base URL")
	f.Duration(config.KeyTimeout, config.DefaultTimeout, "deadline for every backend request")
	f.String(config.KeyProfile, "", "saved server profile to use")
	f.String(config.KeyLogLevel, "info", "log level: debug, info, warn, error")
	f.String(config.KeyDataDir, config.DefaultDataDir(), "directory for logs, profiles and history")
	f.String(config.KeyMetricsAddress, "", "serve Prometheus metrics on this address, e.g. :9090")
	_ = v.BindPFlags(f)

	rootCmd.AddCommand(healthCmd, tablesCmd, importCmd, askCmd, versionCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = c

	if err := applog.Init(cfg.DataDir, cfg.LogLevel); err != nil {
		return err
	}
	applog.Info("nlsql %s starting: api=%s profile=%q", Version, cfg.APIURL, cfg.Profile)

	if cfg.MetricsAddress != "" {
		stopMetrics = metrics.Serve(cfg.MetricsAddress, func(err error) {
			applog.Error("metrics server: %v", err)
		})
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
