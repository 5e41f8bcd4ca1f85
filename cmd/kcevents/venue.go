package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kcevents/internal/venue"
)

var venueCmd = &cobra.Command{
	Use:   "venue",
	Short: "Inspect the curated venue table",
}

var venueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List venues in lookup order (configured first, then built-in)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tADDRESS\tCITY\tSTATE")
		for _, v := range venue.NewResolver(cfg.Venues...).Entries() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Name, v.Address, v.City, v.State)
		}
		return tw.Flush()
	},
}

var venueResolveCmd = &cobra.Command{
	Use:   "resolve <venue name or event title>",
	Short: "Show how a venue name or event title resolves",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		input := strings.Join(args, " ")
		name := input
		if loc, ok := venue.ExtractLocation(input); ok {
			name = loc
		}

		v := venue.NewResolver(cfg.Venues...).Resolve(name)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	},
}

func init() {
	venueCmd.AddCommand(venueListCmd, venueResolveCmd)
	rootCmd.AddCommand(venueCmd)
}
