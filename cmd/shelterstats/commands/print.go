package commands

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/trail-shelter-stats/internal/adapter/report"
	"github.com/couchcryptid/trail-shelter-stats/internal/adapter/sqlite"
	"github.com/couchcryptid/trail-shelter-stats/internal/domain"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newPrintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print the shelter report as a table.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			sortFlag, _ := cmd.Flags().GetString("sort")
			order, err := domain.ParseSortOrder(sortFlag)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			var records []domain.ShelterRecord
			if dbPath, _ := cmd.Flags().GetString("sqlite"); dbPath != "" {
				records, err = readSnapshot(cmd, a, dbPath)
			} else {
				records, err = report.ReadFile(a.cfg.ReportPath)
			}
			if err != nil {
				return err
			}
			total := 0
			for _, r := range records {
				total += r.VisitCount
			}

			records = domain.SortRecords(records, order)
			if limit > 0 && limit < len(records) {
				records = records[:limit]
			}

			t := newTable(cmd)
			t.AppendHeader(table.Row{"#", "Shelter", "Visits", "Lat", "Lon"})
			for i, r := range records {
				lat, lon := report.NullMarker, report.NullMarker
				if r.Geo != nil {
					lat = strconv.FormatFloat(r.Geo.Lat, 'f', -1, 64)
					lon = strconv.FormatFloat(r.Geo.Lon, 'f', -1, 64)
				}
				t.AppendRow(table.Row{i + 1, r.Name, r.VisitCount, lat, lon})
			}
			t.AppendFooter(table.Row{"", "Total", total, "", ""})
			t.SetColumnConfigs([]table.ColumnConfig{
				{Number: 3, Align: text.AlignRight, AlignFooter: text.AlignRight},
			})
			t.Render()
			return nil
		},
	}
	cmd.Flags().String("sort", string(domain.SortReport), "row order: report, visits or name")
	cmd.Flags().Int("limit", 0, "show at most this many rows (0 shows all)")
	cmd.Flags().String("sqlite", "", "read the snapshot from this SQLite database instead of the CSV report")
	return cmd
}

// readSnapshot loads the latest SQLite snapshot and prints when it was taken.
func readSnapshot(cmd *cobra.Command, a *app, path string) ([]domain.ShelterRecord, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("sqlite snapshot: %w", err)
	}
	ctx := cmd.Context()
	store, err := sqlite.Open(ctx, path, a.logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	last, ok, err := store.LastRun(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("sqlite snapshot %s has no saved report", path)
	}
	records, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "snapshot generated %s: %d shelters, %d visits\n",
		last.GeneratedAt.Format(time.RFC3339), last.Shelters, last.TotalVisits)
	return records, nil
}

func newTable(cmd *cobra.Command) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(cmd.OutOrStdout())
	return t
}
