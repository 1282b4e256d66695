package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/couchcryptid/trail-shelter-stats/internal/adapter/report"
	"github.com/couchcryptid/trail-shelter-stats/internal/domain"
	"github.com/couchcryptid/trail-shelter-stats/internal/pipeline"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// errValidationFailed is returned when at least one validation phase failed.
var errValidationFailed = errors.New("validation failed")

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a written report against the reference table and the journal corpus.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			return a.validate(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (a *app) validate(ctx context.Context, out io.Writer) error {
	fmt.Fprintln(out, "=== Shelter Report Validation ===")

	records, err := report.ReadFile(a.cfg.ReportPath)
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}
	ref, ids, err := a.loadInputs()
	if err != nil {
		return err
	}
	src, err := a.journalStore(ctx)
	if err != nil {
		return err
	}
	locations, readable, err := countCorpusLocations(ctx, src, ids)
	if err != nil {
		return err
	}

	phases := []*phase{
		validateUniqueNames(records),
		validateReferenceCoverage(records, ref),
		validateVisitTotals(records, locations),
	}

	fmt.Fprintln(out)
	failed := false
	for _, p := range phases {
		status := text.FgGreen.Sprint("PASS")
		if !p.passed() {
			status = text.FgRed.Sprintf("FAIL (%d errors)", len(p.errors))
			failed = true
		}
		fmt.Fprintf(out, "  %-28s %s\n", p.name, status)
	}

	fmt.Fprintf(out, "\nRows: %d report, %d reference; hikers: %d listed, %d readable\n",
		len(records), ref.Len(), len(ids), readable)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if failed {
		fmt.Fprintln(out, "\nValidation FAILED.")
		return errValidationFailed
	}
	fmt.Fprintln(out, "\nAll validations passed.")
	return nil
}

// countCorpusLocations counts non-null start and destination fields across
// every readable hiker document.
func countCorpusLocations(ctx context.Context, src pipeline.JournalSource, ids []string) (locations, readable int, err error) {
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		data, err := src.Fetch(ctx, id)
		if err != nil {
			continue
		}
		doc, err := domain.ParseHikerDocument(data)
		if err != nil {
			continue
		}
		readable++
		for _, e := range doc.Journal.Entries {
			locations += len(e.Locations())
		}
	}
	return locations, readable, nil
}

func validateUniqueNames(records []domain.ShelterRecord) *phase {
	p := &phase{name: "Unique shelter names"}
	seen := make(map[string]int, len(records))
	for i, r := range records {
		if prev, ok := seen[r.Name]; ok {
			p.errorf("row %d: %q repeats row %d", i+2, r.Name, prev+2)
			continue
		}
		seen[r.Name] = i
	}
	return p
}

func validateReferenceCoverage(records []domain.ShelterRecord, ref *domain.ShelterTable) *phase {
	p := &phase{name: "Reference coverage"}
	for i, want := range ref.Records() {
		if i >= len(records) {
			p.errorf("reference shelter %q missing from report", want.Name)
			continue
		}
		got := records[i]
		if got.Name != want.Name {
			p.errorf("row %d: expected reference shelter %q, found %q", i+2, want.Name, got.Name)
			continue
		}
		if want.Geo != nil && (got.Geo == nil || *got.Geo != *want.Geo) {
			p.errorf("row %d: %q coordinates differ from the reference table", i+2, want.Name)
		}
	}
	return p
}

func validateVisitTotals(records []domain.ShelterRecord, locations int) *phase {
	p := &phase{name: "Visit totals"}
	total := 0
	for _, r := range records {
		total += r.VisitCount
	}
	if total != locations {
		p.errorf("report counts %d visits but the readable corpus has %d location fields", total, locations)
	}
	return p
}
