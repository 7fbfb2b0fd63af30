package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tx-dashboard/internal/app"
	"tx-dashboard/internal/config"
	"tx-dashboard/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	appHandle *app.App
)

var rootCmd = &cobra.Command{
	Use:   "txdash",
	Short: "Near-real-time transaction status and auth code dashboard",
	Long: `txdash reads per-minute transaction status counts and authorization code
counts from CSV files or PostgreSQL tables, joins them by timestamp and shows
totals, the approval rate and the approved versus auth "00" comparison for a
15m, 1h, 6h or unbounded window anchored at the newest timestamp.

Configuration comes from --config, then TXDASH_* environment variables.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appHandle != nil {
			return nil
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger := logging.NewLogger(cfg.Logging)
		logger.Debug().
			Str("config_file", cfgFile).
			Str("environment", cfg.App.Environment).
			Str("status_source", describeSource(cfg.Sources.Status)).
			Str("auth_source", describeSource(cfg.Sources.Auth)).
			Str("window", cfg.Window).
			Str("cache_backend", cfg.Cache.Backend).
			Dur("cache_ttl", cfg.Cache.TTL).
			Dur("refresh_interval", cfg.Refresh.Interval).
			Msg("configuration loaded")
		appHandle = app.NewApp(cfg, logger)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(simulateCmd)
}

func getApp() *app.App {
	if appHandle == nil {
		panic("application not initialized; PersistentPreRunE not executed")
	}
	return appHandle
}

// describeSource names a source without exposing connection settings.
func describeSource(src config.SourceConfig) string {
	if src.Kind == config.SourcePostgres {
		return "postgres:" + src.Table
	}
	return src.Kind + ":" + src.Path
}
