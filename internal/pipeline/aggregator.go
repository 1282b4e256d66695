package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/trail-shelter-stats/internal/domain"
	"github.com/couchcryptid/trail-shelter-stats/internal/observability"
	"golang.org/x/sync/errgroup"
)

const (
	defaultRetryBackoff = 200 * time.Millisecond
	maxRetryBackoff     = 5 * time.Second
)

// JournalSource returns the stored document for one hiker. Implementations
// return an error wrapping domain.ErrJournalNotFound when the hiker has none.
type JournalSource interface {
	Fetch(ctx context.Context, hikerID string) ([]byte, error)
}

// AggregatorOptions tunes how documents are fetched. Zero values fall back
// to one worker, batches of 50 and no retries.
type AggregatorOptions struct {
	BatchSize    int
	Workers      int
	Retries      int
	RetryBackoff time.Duration
}

// Aggregator accumulates shelter visit counts across a corpus of hiker journals.
type Aggregator struct {
	source  JournalSource
	logger  *slog.Logger
	metrics *observability.Metrics
	opts    AggregatorOptions
}

// Summary describes one aggregation run.
type Summary struct {
	Processed  int
	Entries    int
	Locations  int
	Matched    int
	Unmatched  int
	Skipped    []*domain.RecoverableHikerError
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewAggregator creates an Aggregator reading documents from source.
func NewAggregator(source JournalSource, logger *slog.Logger, metrics *observability.Metrics, opts AggregatorOptions) *Aggregator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	return &Aggregator{source: source, logger: logger, metrics: metrics, opts: opts}
}

type fetchResult struct {
	doc domain.HikerDocument
	err *domain.RecoverableHikerError
}

// Run tallies every hiker in hikerIDs into table. Documents within a batch
// are fetched concurrently but applied in list order, so the table ends up
// the same as a sequential run. Unusable hikers are skipped and reported in
// the summary. Only context cancellation aborts the run.
func (a *Aggregator) Run(ctx context.Context, hikerIDs []string, table *domain.ShelterTable) (Summary, error) {
	a.logger.Info("aggregation started",
		"hikers", len(hikerIDs),
		"shelters", table.Len(),
		"batch_size", a.opts.BatchSize,
		"workers", a.opts.Workers,
	)
	a.metrics.AggregationRunning.Set(1)
	defer a.metrics.AggregationRunning.Set(0)

	tallier := domain.NewTallier(table)
	summary := Summary{StartedAt: domain.Now()}

	for start := 0; start < len(hikerIDs); start += a.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		end := min(start+a.opts.BatchSize, len(hikerIDs))
		batch := hikerIDs[start:end]
		batchStart := time.Now()

		results := a.fetchBatch(ctx, batch)
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		for i, res := range results {
			a.apply(tallier, &summary, batch[i], res)
		}

		a.metrics.BatchSize.Observe(float64(len(batch)))
		a.metrics.BatchProcessingDuration.Observe(time.Since(batchStart).Seconds())
	}

	summary.FinishedAt = domain.Now()
	a.metrics.SheltersTracked.Set(float64(table.Len()))
	a.logger.Info("aggregation finished",
		"processed", summary.Processed,
		"skipped", len(summary.Skipped),
		"entries", summary.Entries,
		"matched", summary.Matched,
		"unmatched", summary.Unmatched,
		"shelters", table.Len(),
	)
	return summary, nil
}

func (a *Aggregator) fetchBatch(ctx context.Context, batch []string) []fetchResult {
	results := make([]fetchResult, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i, id := range batch {
		g.Go(func() error {
			results[i] = a.load(gctx, id)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures live in results
	return results
}

// load fetches and decodes one document. A document is only returned when
// it decoded completely.
func (a *Aggregator) load(ctx context.Context, hikerID string) fetchResult {
	data, err := a.fetchWithRetry(ctx, hikerID)
	if err != nil {
		reason := domain.SkipUnreadable
		if errors.Is(err, domain.ErrJournalNotFound) {
			reason = domain.SkipNotFound
		}
		return fetchResult{err: &domain.RecoverableHikerError{HikerID: hikerID, Reason: reason, Err: err}}
	}

	doc, err := domain.ParseHikerDocument(data)
	if err != nil {
		return fetchResult{err: &domain.RecoverableHikerError{HikerID: hikerID, Reason: domain.SkipMalformed, Err: err}}
	}
	return fetchResult{doc: doc}
}

func (a *Aggregator) fetchWithRetry(ctx context.Context, hikerID string) ([]byte, error) {
	backoff := a.opts.RetryBackoff
	for attempt := 0; ; attempt++ {
		data, err := a.source.Fetch(ctx, hikerID)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, domain.ErrJournalNotFound) || attempt >= a.opts.Retries || ctx.Err() != nil {
			return nil, err
		}

		a.metrics.FetchRetries.Inc()
		a.logger.Debug("retrying journal fetch",
			"hiker_id", hikerID,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)
		if !sleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = nextBackoff(backoff, maxRetryBackoff)
	}
}

func (a *Aggregator) apply(tallier *domain.Tallier, summary *Summary, hikerID string, res fetchResult) {
	summary.Processed++
	a.metrics.HikersProcessed.Inc()

	if res.err != nil {
		a.logger.Warn("hiker skipped",
			"hiker_id", hikerID,
			"reason", res.err.Reason,
			"error", res.err.Err,
		)
		a.metrics.HikersSkipped.WithLabelValues(res.err.Reason).Inc()
		summary.Skipped = append(summary.Skipped, res.err)
		return
	}

	jt := tallier.TallyJournal(res.doc.Journal)
	summary.Entries += jt.Entries
	summary.Locations += jt.Locations
	summary.Matched += jt.Matched()
	summary.Unmatched += jt.Kinds[domain.MatchNone]

	a.metrics.JournalEntries.Add(float64(jt.Entries))
	for kind, n := range jt.Kinds {
		a.metrics.LocationsResolved.WithLabelValues(string(kind)).Add(float64(n))
	}
	a.logger.Debug("hiker tallied",
		"hiker_id", hikerID,
		"entries", jt.Entries,
		"locations", jt.Locations,
		"unmatched", jt.Kinds[domain.MatchNone],
	)
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
