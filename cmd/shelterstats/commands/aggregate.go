package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAggregateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Count shelter visits across every hiker journal and write the report.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			if f := cmd.Flags().Lookup("sqlite"); f.Changed {
				a.cfg.SQLitePath = f.Value.String()
			}

			table, ids, err := a.loadInputs()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			p, closeSinks, err := a.newPipeline(ctx)
			if err != nil {
				return err
			}
			defer closeSinks()

			summary, err := p.Run(ctx, ids, table)
			if err != nil {
				return err
			}
			logSummary(a.logger, summary, table)

			fmt.Fprintf(cmd.OutOrStdout(), "%d hikers processed, %d skipped; %d shelters with %d visits written to %s\n",
				summary.Processed, len(summary.Skipped), table.Len(), table.TotalVisits(), a.cfg.ReportPath)
			return nil
		},
	}
	cmd.Flags().String("sqlite", "", "also snapshot the report into this SQLite database (overrides REPORT_SQLITE_PATH)")
	return cmd
}
