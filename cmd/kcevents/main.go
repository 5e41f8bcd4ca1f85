package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"kcevents/internal/config"
	appLog "kcevents/internal/log"
)

var version = "0.1.0-dev"

var rootCmd = &cobra.Command{
	Use:   "kcevents",
	Short: "Build-time Meetup event pipeline for the Code and Coffee KC site",
	Long: `kcevents exchanges Meetup OAuth credentials for an access token, fetches
the group's upcoming events, normalizes them and writes events.json (plus an
optional events.ics feed) for the static site.

Credentials come from MEETUP_* environment variables, which override the
optional YAML config file.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file (optional)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level override: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		appLog.Error("kcevents failed", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, overlays the environment and configures
// logging. A file that cannot be parsed is reported as a *config.ConfigError
// alongside the defaults so that fetch can still write its fallback.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		var ce *config.ConfigError
		if !errors.As(err, &ce) {
			ce = &config.ConfigError{Err: err}
		}
		cfg = config.DefaultConfig()
		err = ce
	}
	cfg.ApplyEnv()

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	appLog.Configure(cfg.Log.Level, cfg.Log.Format)

	return cfg, err
}
