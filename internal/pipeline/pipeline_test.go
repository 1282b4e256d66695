package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/trail-shelter-stats/internal/domain"
	"github.com/couchcryptid/trail-shelter-stats/internal/observability"
	"github.com/couchcryptid/trail-shelter-stats/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const referenceCSV = `name,dataset,lat,lon,type
Springer Mountain Shelter,ATC,34.6268,-84.1935,shelter
Hawk Mountain Shelter,ATC,34.6661,-84.1367,shelter
Neels Gap,AWOL,34.7347,-83.9183,landmark
`

// --- mocks ---

type mockSource struct {
	mu       sync.Mutex
	docs     map[string]string
	failures map[string]int // transient failures before success
	calls    map[string]int
}

func newMockSource(docs map[string]string) *mockSource {
	return &mockSource{docs: docs, failures: map[string]int{}, calls: map[string]int{}}
}

func (m *mockSource) Fetch(ctx context.Context, hikerID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[hikerID]++
	if m.failures[hikerID] > 0 {
		m.failures[hikerID]--
		return nil, errors.New("connection reset")
	}
	doc, ok := m.docs[hikerID]
	if !ok {
		return nil, fmt.Errorf("hiker %s: %w", hikerID, domain.ErrJournalNotFound)
	}
	return []byte(doc), nil
}

func (m *mockSource) callCount(hikerID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[hikerID]
}

type mockSink struct {
	name  string
	err   error
	saved []domain.ShelterRecord
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) Save(_ context.Context, records []domain.ShelterRecord) error {
	if m.err != nil {
		return m.err
	}
	m.saved = records
	return nil
}

type stampEnricher struct{}

func (stampEnricher) Enrich(_ context.Context, records []domain.ShelterRecord) []domain.ShelterRecord {
	out := make([]domain.ShelterRecord, len(records))
	for i, r := range records {
		if !r.Reference {
			r.GeoSource = domain.GeoSourceFailed
		}
		out[i] = r
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadTable(t *testing.T) *domain.ShelterTable {
	t.Helper()
	table, err := domain.LoadReference(strings.NewReader(referenceCSV))
	require.NoError(t, err)
	return table
}

func journalDoc(pairs ...string) string {
	var b strings.Builder
	b.WriteString(`{"name": "test", "journal": {`)
	for i := 0; i+1 < len(pairs); i += 2 {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `"%d": {"start_loc": %q, "dest": %q}`, i/2, pairs[i], pairs[i+1])
	}
	b.WriteString(`}}`)
	return b.String()
}

func visits(records []domain.ShelterRecord) map[string]int {
	out := make(map[string]int, len(records))
	for _, r := range records {
		out[r.Name] = r.VisitCount
	}
	return out
}

func corpus() map[string]string {
	return map[string]string{
		"1001": journalDoc("Springer Mountain", "Stover Creek", "Stover Creek", "Hawk Mountain Shelter"),
		"1002": journalDoc("Hawk Mountain", "Gooch Gap"),
		"1003": journalDoc("gooch gap", "Neels Gap Outfitters"),
		"1004": journalDoc(`"Neels Gap"`, "Whitley Gap Shelter"),
		"1005": journalDoc("Whitley Gap", "Low Gap Shelter"),
	}
}

// --- aggregator tests ---

func TestAggregator_Run_Tallies(t *testing.T) {
	src := newMockSource(corpus())
	metrics := observability.NewMetricsForTesting()
	agg := pipeline.NewAggregator(src, discardLogger(), metrics, pipeline.AggregatorOptions{BatchSize: 2})
	table := loadTable(t)

	summary, err := agg.Run(context.Background(), []string{"1001", "1002", "1003", "1004", "1005"}, table)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Processed)
	assert.Empty(t, summary.Skipped)
	assert.Equal(t, 6, summary.Entries)
	assert.Equal(t, 12, summary.Locations)
	assert.Equal(t, summary.Locations, summary.Matched+summary.Unmatched)
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))

	v := visits(table.Records())
	assert.Equal(t, 1, v["springer mountain shelter"])
	assert.Equal(t, 2, v["hawk mountain shelter"])
	assert.Equal(t, 2, v["neels gap"])
	assert.Equal(t, 2, v["stover creek"])
	assert.Equal(t, 2, v["gooch gap"])
	assert.Equal(t, 2, v["whitley gap shelter"])
	assert.Equal(t, 1, v["low gap shelter"])

	assert.Equal(t, []string{
		"springer mountain shelter", "hawk mountain shelter", "neels gap",
		"stover creek", "gooch gap", "whitley gap shelter", "low gap shelter",
	}, table.Keys())

	assert.InDelta(t, 5, testutil.ToFloat64(metrics.HikersProcessed), 0)
	assert.InDelta(t, 6, testutil.ToFloat64(metrics.JournalEntries), 0)
	assert.InDelta(t, 7, testutil.ToFloat64(metrics.SheltersTracked), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.AggregationRunning), 0)
}

func TestAggregator_Run_SkipsUnusableHikers(t *testing.T) {
	docs := map[string]string{
		"good":       journalDoc("Springer Mountain", "Hawk Mountain"),
		"broken":     `{"journal": {"0": {"start_loc": "Neels Gap"`,
		"no-journal": `{"name": "ghost"}`,
		"partial":    `{"journal": {"0": {"start_loc": "Neels Gap", "dest": null}, "1": 17}}`,
	}
	src := newMockSource(docs)
	src.failures["flaky"] = 10
	metrics := observability.NewMetricsForTesting()
	agg := pipeline.NewAggregator(src, discardLogger(), metrics, pipeline.AggregatorOptions{
		BatchSize:    10,
		Retries:      1,
		RetryBackoff: time.Millisecond,
	})
	table := loadTable(t)

	summary, err := agg.Run(context.Background(), []string{"good", "missing", "broken", "no-journal", "partial", "flaky"}, table)
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Processed)
	require.Len(t, summary.Skipped, 5)

	reasons := map[string]string{}
	for _, s := range summary.Skipped {
		reasons[s.HikerID] = s.Reason
	}
	assert.Equal(t, map[string]string{
		"missing":    domain.SkipNotFound,
		"broken":     domain.SkipMalformed,
		"no-journal": domain.SkipMalformed,
		"partial":    domain.SkipMalformed,
		"flaky":      domain.SkipUnreadable,
	}, reasons)
	assert.ErrorIs(t, summary.Skipped[2], domain.ErrMissingJournal)

	// A partially valid document contributes nothing.
	v := visits(table.Records())
	assert.Equal(t, 0, v["neels gap"])
	assert.Equal(t, 1, v["springer mountain shelter"])
	assert.Equal(t, 1, v["hawk mountain shelter"])

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.HikersSkipped.WithLabelValues(domain.SkipNotFound)), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.HikersSkipped.WithLabelValues(domain.SkipMalformed)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.HikersSkipped.WithLabelValues(domain.SkipUnreadable)), 0)
}

func TestAggregator_Run_RetriesTransientErrors(t *testing.T) {
	src := newMockSource(corpus())
	src.failures["1002"] = 2
	metrics := observability.NewMetricsForTesting()
	agg := pipeline.NewAggregator(src, discardLogger(), metrics, pipeline.AggregatorOptions{
		Retries:      2,
		RetryBackoff: time.Millisecond,
	})

	summary, err := agg.Run(context.Background(), []string{"1002"}, loadTable(t))
	require.NoError(t, err)

	assert.Empty(t, summary.Skipped)
	assert.Equal(t, 3, src.callCount("1002"))
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.FetchRetries), 0)
}

func TestAggregator_Run_NotFoundIsNotRetried(t *testing.T) {
	src := newMockSource(nil)
	agg := pipeline.NewAggregator(src, discardLogger(), observability.NewMetricsForTesting(), pipeline.AggregatorOptions{
		Retries:      3,
		RetryBackoff: time.Millisecond,
	})

	summary, err := agg.Run(context.Background(), []string{"404"}, loadTable(t))
	require.NoError(t, err)

	require.Len(t, summary.Skipped, 1)
	assert.ErrorIs(t, summary.Skipped[0], domain.ErrJournalNotFound)
	assert.Equal(t, 1, src.callCount("404"))
}

func TestAggregator_Run_ConcurrentFetchMatchesSequential(t *testing.T) {
	ids := []string{"1005", "1003", "1001", "1004", "1002", "1003", "1001"}

	run := func(opts pipeline.AggregatorOptions) []domain.ShelterRecord {
		agg := pipeline.NewAggregator(newMockSource(corpus()), discardLogger(), observability.NewMetricsForTesting(), opts)
		table := loadTable(t)
		_, err := agg.Run(context.Background(), ids, table)
		require.NoError(t, err)
		return table.Records()
	}

	sequential := run(pipeline.AggregatorOptions{BatchSize: 1, Workers: 1})
	concurrent := run(pipeline.AggregatorOptions{BatchSize: 3, Workers: 4})

	if diff := cmp.Diff(sequential, concurrent); diff != "" {
		t.Errorf("concurrent run differs from sequential (-seq +conc):\n%s", diff)
	}
}

func TestAggregator_Run_EmptyHikerList(t *testing.T) {
	agg := pipeline.NewAggregator(newMockSource(nil), discardLogger(), observability.NewMetricsForTesting(), pipeline.AggregatorOptions{})
	table := loadTable(t)

	summary, err := agg.Run(context.Background(), nil, table)
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
	assert.Equal(t, 0, table.TotalVisits())
	assert.Equal(t, 3, table.Len())
}

func TestAggregator_Run_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agg := pipeline.NewAggregator(newMockSource(corpus()), discardLogger(), observability.NewMetricsForTesting(), pipeline.AggregatorOptions{})
	table := loadTable(t)

	_, err := agg.Run(ctx, []string{"1001"}, table)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, table.TotalVisits())
}

// --- pipeline tests ---

func TestPipeline_Run_SavesToEverySink(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	agg := pipeline.NewAggregator(newMockSource(corpus()), discardLogger(), metrics, pipeline.AggregatorOptions{})
	csvSink := &mockSink{name: "csv"}
	dbSink := &mockSink{name: "sqlite"}
	p := pipeline.New(agg, stampEnricher{}, []pipeline.Sink{csvSink, dbSink}, discardLogger(), metrics)

	require.Error(t, p.CheckReadiness(context.Background()))
	_, _, ok := p.Snapshot()
	assert.False(t, ok)

	summary, err := p.Run(context.Background(), []string{"1001", "1002"}, loadTable(t))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)

	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, csvSink.saved, dbSink.saved)

	records, snapSummary, ok := p.Snapshot()
	require.True(t, ok)
	assert.Equal(t, csvSink.saved, records)
	assert.Equal(t, summary.Processed, snapSummary.Processed)

	for _, r := range records {
		if r.Reference {
			assert.Empty(t, r.GeoSource, r.Name)
		} else {
			assert.Equal(t, domain.GeoSourceFailed, r.GeoSource, r.Name)
		}
	}
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ReportWrites.WithLabelValues("csv", "success")), 0)
}

func TestPipeline_Run_SinkFailureIsIOWriteError(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	agg := pipeline.NewAggregator(newMockSource(corpus()), discardLogger(), metrics, pipeline.AggregatorOptions{})
	bad := &mockSink{name: "kafka", err: errors.New("broker unavailable")}
	good := &mockSink{name: "csv"}
	p := pipeline.New(agg, nil, []pipeline.Sink{bad, good}, discardLogger(), metrics)

	_, err := p.Run(context.Background(), []string{"1001"}, loadTable(t))
	require.Error(t, err)

	var ioErr *domain.IOWriteError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "kafka", ioErr.Target)
	assert.Contains(t, err.Error(), "broker unavailable")

	assert.NotEmpty(t, good.saved)
	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ReportWrites.WithLabelValues("kafka", "error")), 0)
}

func TestPipeline_Run_AggregationCancelledSkipsSinks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	metrics := observability.NewMetricsForTesting()
	agg := pipeline.NewAggregator(newMockSource(corpus()), discardLogger(), metrics, pipeline.AggregatorOptions{})
	sink := &mockSink{name: "csv"}
	p := pipeline.New(agg, nil, []pipeline.Sink{sink}, discardLogger(), metrics)

	_, err := p.Run(ctx, []string{"1001"}, loadTable(t))
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, sink.saved)
	assert.Error(t, p.CheckReadiness(context.Background()))
}
