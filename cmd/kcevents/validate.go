package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kcevents/internal/output"
)

var validateCmd = &cobra.Command{
	Use:   "validate [events.json]",
	Short: "Check an events document against the schema the site reads",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path := cfg.Output.Events
		if len(args) == 1 {
			path = args[0]
		}

		doc, err := output.Read(path)
		if err != nil {
			return fmt.Errorf("validate %s: %w", path, err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: ok, %d events, last updated %s\n",
			path, len(doc.Events), doc.LastUpdated.Format("2006-01-02T15:04:05Z07:00"))
		if doc.IsFallback() {
			fmt.Fprintf(out, "fallback document: %s\n", doc.Note)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
