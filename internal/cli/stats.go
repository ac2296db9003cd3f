package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewStatsCmd() *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show totals from the analytics log",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd.Context())
			if err != nil {
				return err
			}
			db, err := app.Analytics()
			if err != nil {
				return err
			}
			totals, err := db.Totals()
			if err != nil {
				return err
			}
			recent, err := db.Recent(limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"totals": totals, "recent": recent})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTotals(totals, recent))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 4, "Number of recent entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
