package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"kcevents/internal/archive"
	"kcevents/internal/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, closeFn, err := openArchive(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		limit, _ := cmd.Flags().GetInt("limit")
		snaps, err := store.Recent(cmd.Context(), limit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN ID\tGENERATED\tEVENTS\tNOTE")
		for _, s := range snaps {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.RunID, s.GeneratedAt.Format(time.RFC3339), s.EventCount, s.Note)
		}
		return tw.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the document written by a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := openArchive(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		snap, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		data, err := output.Encode(snap.Document)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 for all)")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func openArchive(cmd *cobra.Command) (*archive.SQLiteStore, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Archive.Path == "" {
		return nil, nil, errors.New("archive is not configured (set archive.path or MEETUP_ARCHIVE_PATH)")
	}
	db, err := archive.Open(cfg.Archive.Path)
	if err != nil {
		return nil, nil, err
	}
	return archive.NewSQLiteStore(db), func() { closeDB(db) }, nil
}
