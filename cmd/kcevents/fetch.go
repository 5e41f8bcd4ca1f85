package main

import (
	"database/sql"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kcevents/internal/archive"
	"kcevents/internal/config"
	"kcevents/internal/ics"
	appLog "kcevents/internal/log"
	"kcevents/internal/meetup"
	"kcevents/internal/metrics"
	"kcevents/internal/normalize"
	"kcevents/internal/output"
	"kcevents/internal/pipeline"
	"kcevents/internal/venue"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch upcoming events and write events.json",
	Long: `Run the pipeline once: token exchange, event query, normalization and write.

Any authentication, fetch or configuration failure writes a fallback document
(an empty events list with a note) and exits 0 with a warning. Only a failure
to write even the fallback document exits non-zero.`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().String("events", "", "Output path for events.json (overrides config)")
	fetchCmd.Flags().String("calendar", "", "Output path for events.ics (overrides config)")
	fetchCmd.Flags().Bool("no-calendar", false, "Do not write the ICS feed")
}

func runFetch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, loadErr := loadConfig(cmd)
	if v, _ := cmd.Flags().GetString("events"); v != "" {
		cfg.Output.Events = v
	}
	if v, _ := cmd.Flags().GetString("calendar"); v != "" {
		cfg.Output.Calendar = v
	}
	if off, _ := cmd.Flags().GetBool("no-calendar"); off {
		cfg.Output.Calendar = ""
	}

	appLog.Info("effective config",
		"group", cfg.Group,
		"events_path", cfg.Output.Events,
		"calendar_path", cfg.Output.Calendar,
		"token_file", cfg.Credentials.TokenFile,
		"static_token", cfg.Credentials.AccessToken != "",
		"venues", len(cfg.Venues),
		"archive", cfg.Archive.Path,
		"metrics_textfile", cfg.Metrics.Textfile,
	)

	p, closeFn := buildPipeline(cfg)
	defer closeFn()

	cause := loadErr
	if cause == nil {
		cause = cfg.Validate()
	}

	var (
		res pipeline.Result
		err error
	)
	if cause != nil {
		res, err = p.Fallback(ctx, cause)
	} else {
		res, err = p.Run(ctx)
	}

	if p.Metrics != nil {
		if werr := p.Metrics.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			appLog.Error("metrics textfile write failed", werr, "path", cfg.Metrics.Textfile)
		}
	}

	if err != nil {
		return fmt.Errorf("run %s: %w", res.RunID, err)
	}
	if res.Fallback {
		appLog.Warn("run completed with fallback data", "run_id", res.RunID, "note", res.Note)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d events to %s\n", res.Events, cfg.Output.Events)
	return nil
}

// buildPipeline wires the production collaborators from cfg. The returned
// func releases the archive database, if one was opened.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, func()) {
	client := meetup.NewHTTPClient(cfg.HTTPTimeout)

	p := &pipeline.Pipeline{
		Tokens: &meetup.TokenProvider{
			ClientID:     cfg.Credentials.ClientID,
			ClientSecret: cfg.Credentials.ClientSecret,
			RefreshToken: cfg.Credentials.RefreshToken,
			StaticToken:  cfg.Credentials.AccessToken,
			Store:        meetup.NewFileStore(cfg.Credentials.TokenFile),
			TokenURL:     cfg.TokenURL,
			HTTPClient:   client,
		},
		Events: meetup.NewFetcher(cfg.APIURL, client),
		Normalizer: normalize.Normalizer{
			Venues:          venue.NewResolver(cfg.Venues...),
			DefaultDuration: cfg.DefaultDurationMinutes,
		},
		Writer: &output.Writer{
			EventsPath:   cfg.Output.Events,
			CalendarPath: cfg.Output.Calendar,
			Calendar:     ics.Options{Name: cfg.Output.CalendarName},
		},
		Group: cfg.Group,
	}

	if cfg.Metrics.Textfile != "" {
		p.Metrics = metrics.NewRecorder()
	}

	closeFn := func() {}
	if cfg.Archive.Path != "" {
		db, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			// The archive is a side channel; a broken one must not block the run.
			appLog.Error("archive unavailable; continuing without snapshots", err, "path", cfg.Archive.Path)
		} else {
			p.Archive = archive.NewSQLiteStore(db)
			closeFn = func() { closeDB(db) }
		}
	}
	return p, closeFn
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		appLog.Error("archive close failed", err)
	}
}

