package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/trail-shelter-stats/internal/domain"
	"github.com/spf13/cobra"
)

var (
	mockHikerNames = []string{"Chris", "Alex", "Sam", "Jordan", "Taylor", "Morgan", "Casey", "Riley"}
	mockTrailNames = []string{"Rattlesnake", "Sunshine", "Pathfinder", "Blueberry", "Tortoise", "Mapmaker", "Switchback", "Firefly"}
	mockAdHoc      = []string{"Stover Creek", "Woody Gap", "Unicoi Gap", "Dicks Creek Gap", "Deep Gap", "Trail Town Motel", "Rock Gap", "Standing Indian"}
	mockStartDate  = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
)

type genmockOptions struct {
	count   int
	entries int
	seed    uint64
}

func newGenmockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genmock",
		Short: "Write a deterministic mock corpus of hiker documents and a hiker list.",
		Long: "Generates hiker documents whose locations are spelled the way trail journals\n" +
			"spell them: mixed case, stray quotes, missing or extra words, plus places that are\n" +
			"not in the reference table. Documents go to the configured journal store.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, false)
			if err != nil {
				return err
			}
			var opts genmockOptions
			opts.count, _ = cmd.Flags().GetInt("count")
			opts.entries, _ = cmd.Flags().GetInt("entries")
			opts.seed, _ = cmd.Flags().GetUint64("seed")
			if opts.count < 1 || opts.entries < 1 {
				return fmt.Errorf("count and entries must be positive")
			}

			ref, err := loadReference(a.cfg.ReferencePath)
			if err != nil {
				return err
			}
			store, err := a.journalStore(cmd.Context())
			if err != nil {
				return err
			}

			ids, err := writeMockCorpus(cmd.Context(), store, ref, opts)
			if err != nil {
				return err
			}
			if err := writeHikerList(a.cfg.HikerListPath, ids); err != nil {
				return err
			}
			a.logger.Info("mock corpus written", "hikers", len(ids), "entries_per_hiker", opts.entries, "seed", opts.seed)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d hiker documents; hiker list at %s\n", len(ids), a.cfg.HikerListPath)
			return nil
		},
	}
	cmd.Flags().Int("count", 20, "number of hikers to generate")
	cmd.Flags().Int("entries", 10, "journal entries per hiker")
	cmd.Flags().Uint64("seed", 1, "random seed; the same seed always produces the same corpus")
	return cmd
}

func writeMockCorpus(ctx context.Context, store documentStore, ref *domain.ShelterTable, opts genmockOptions) ([]string, error) {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	places := ref.Keys()
	if len(places) == 0 {
		return nil, fmt.Errorf("reference table is empty")
	}

	ids := make([]string, 0, opts.count)
	for i := range opts.count {
		id := strconv.Itoa(100000 + i)
		doc := mockDocument(rng, i, places, opts.entries)
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode hiker %s: %w", id, err)
		}
		if err := store.Put(ctx, id, data); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func mockDocument(rng *rand.Rand, i int, places []string, entries int) domain.HikerDocument {
	name := mockHikerNames[i%len(mockHikerNames)]
	trail := mockTrailNames[rng.IntN(len(mockTrailNames))]
	start := mockStartDate.AddDate(0, 0, rng.IntN(45))
	startDate := fmt.Sprintf("%d/%d/%d", start.Month(), start.Day(), start.Year())

	j := &domain.Journal{Entries: make([]domain.JournalEntry, 0, entries)}
	loc := mockLocation(rng, places)
	trip := 0.0
	for n := range entries {
		dest := mockLocation(rng, places)
		day := math.Round((5+rng.Float64()*15)*10) / 10
		trip = math.Round((trip+day)*10) / 10
		date := start.AddDate(0, 0, n).Format("Monday, January 2, 2006")

		e := domain.JournalEntry{
			Index:       strconv.Itoa(n),
			Destination: dest,
			DayMileage:  &day,
			TripMileage: ptr(trip),
			Date:        &date,
		}
		// Roughly one entry in ten has no start location.
		if rng.IntN(10) > 0 {
			e.StartLocation = loc
		}
		j.Entries = append(j.Entries, e)
		loc = dest
	}

	return domain.HikerDocument{
		Identifier: json.RawMessage(strconv.Itoa(100000 + i)),
		Name:       &name,
		TrailName:  &trail,
		StartDate:  &startDate,
		Journal:    j,
	}
}

// mockLocation picks a reference place or an ad-hoc one and spells it the
// way a journal might.
func mockLocation(rng *rand.Rand, places []string) *string {
	var s string
	switch r := rng.IntN(10); {
	case r < 6:
		s = titleCase(places[rng.IntN(len(places))])
	case r < 8:
		s = titleCase(places[rng.IntN(len(places))]) + " Area"
	default:
		s = mockAdHoc[rng.IntN(len(mockAdHoc))]
	}
	if rng.IntN(5) == 0 {
		s = `"` + s + `"`
	}
	return &s
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func writeHikerList(path string, ids []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create hiker list dir: %w", err)
	}
	return os.WriteFile(path, []byte(strings.Join(ids, "\n")+"\n"), 0o644)
}

func ptr[T any](v T) *T { return &v }
