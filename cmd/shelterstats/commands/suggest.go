package commands

import (
	"fmt"

	"github.com/couchcryptid/trail-shelter-stats/internal/domain"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newSuggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest reference shelters that ad-hoc locations probably refer to.",
		Long: "Aggregates the corpus in memory, then compares each ad-hoc location against the\n" +
			"reference shelters by Jaro-Winkler similarity. Nothing is written and counts are never merged.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			threshold := a.cfg.SuggestThreshold
			if f := cmd.Flags().Lookup("threshold"); f.Changed {
				threshold, _ = cmd.Flags().GetFloat64("threshold")
			}
			if threshold <= 0 || threshold > 1 {
				return fmt.Errorf("threshold must be in (0, 1], got %v", threshold)
			}

			tbl, ids, err := a.loadInputs()
			if err != nil {
				return err
			}
			src, err := a.journalStore(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := a.newAggregator(src).Run(cmd.Context(), ids, tbl)
			if err != nil {
				return err
			}
			logSummary(a.logger, summary, tbl)

			suggestions := domain.SuggestAliases(tbl, threshold)
			if len(suggestions) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no alias suggestions at threshold %.2f\n", threshold)
				return nil
			}

			t := newTable(cmd)
			t.AppendHeader(table.Row{"Ad-hoc location", "Visits", "Reference shelter", "Similarity"})
			for _, s := range suggestions {
				t.AppendRow(table.Row{s.AdHoc, s.Visits, s.Reference, fmt.Sprintf("%.3f", s.Similarity)})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().Float64("threshold", 0, "minimum Jaro-Winkler similarity (overrides SUGGEST_THRESHOLD)")
	return cmd
}
