package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kcevents/internal/archive"
	appLog "kcevents/internal/log"
	"kcevents/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the generated artifacts locally for preview",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if v, _ := cmd.Flags().GetString("listen"); v != "" {
			cfg.Listen = v
		}
		staticDir, _ := cmd.Flags().GetString("static")

		opts := web.Options{StaticDir: staticDir}
		if cfg.Archive.Path != "" {
			db, err := archive.Open(cfg.Archive.Path)
			if err != nil {
				appLog.Error("archive unavailable; /api/history disabled", err, "path", cfg.Archive.Path)
			} else {
				defer closeDB(db)
				opts.Archive = archive.NewSQLiteStore(db)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return web.StartServer(ctx, cfg, opts)
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "HTTP listen address (overrides config if set)")
	serveCmd.Flags().String("static", "public", "Directory served at / (empty disables)")
	rootCmd.AddCommand(serveCmd)
}
