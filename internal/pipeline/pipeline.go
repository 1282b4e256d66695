package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/trail-shelter-stats/internal/domain"
	"github.com/couchcryptid/trail-shelter-stats/internal/observability"
)

// Sink persists the final shelter records.
type Sink interface {
	Name() string
	Save(ctx context.Context, records []domain.ShelterRecord) error
}

// Enricher transforms the final records before they reach the sinks.
type Enricher interface {
	Enrich(ctx context.Context, records []domain.ShelterRecord) []domain.ShelterRecord
}

// Pipeline orchestrates the aggregate, enrich and save stages of one run.
type Pipeline struct {
	aggregator *Aggregator
	enricher   Enricher
	sinks      []Sink
	logger     *slog.Logger
	metrics    *observability.Metrics

	ready atomic.Bool

	mu       sync.RWMutex
	records  []domain.ShelterRecord
	summary  Summary
	hasTable bool
}

// New creates a Pipeline. A nil enricher disables enrichment.
func New(aggregator *Aggregator, enricher Enricher, sinks []Sink, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		aggregator: aggregator,
		enricher:   enricher,
		sinks:      sinks,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once a run has produced a shelter table.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no aggregation run has completed yet")
	}
	return nil
}

// Snapshot returns a copy of the records produced by the last completed run.
func (p *Pipeline) Snapshot() ([]domain.ShelterRecord, Summary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.hasTable {
		return nil, Summary{}, false
	}
	out := make([]domain.ShelterRecord, len(p.records))
	copy(out, p.records)
	return out, p.summary, true
}

// Run aggregates hikerIDs into table, enriches the resulting records and
// hands them to every sink. Every sink is attempted; sink failures are
// returned joined as *domain.IOWriteError values.
func (p *Pipeline) Run(ctx context.Context, hikerIDs []string, table *domain.ShelterTable) (Summary, error) {
	summary, err := p.aggregator.Run(ctx, hikerIDs, table)
	if err != nil {
		return summary, err
	}

	records := table.Records()
	if p.enricher != nil {
		records = p.enricher.Enrich(ctx, records)
	}

	p.mu.Lock()
	p.records = records
	p.summary = summary
	p.hasTable = true
	p.mu.Unlock()
	p.ready.Store(true)

	return summary, p.save(ctx, records)
}

func (p *Pipeline) save(ctx context.Context, records []domain.ShelterRecord) error {
	var errs []error
	for _, sink := range p.sinks {
		if err := sink.Save(ctx, records); err != nil {
			p.logger.Error("report write failed", "sink", sink.Name(), "error", err)
			p.metrics.ReportWrites.WithLabelValues(sink.Name(), "error").Inc()

			var ioErr *domain.IOWriteError
			if !errors.As(err, &ioErr) {
				err = &domain.IOWriteError{Target: sink.Name(), Err: err}
			}
			errs = append(errs, err)
			continue
		}
		p.metrics.ReportWrites.WithLabelValues(sink.Name(), "success").Inc()
		p.logger.Info("report written", "sink", sink.Name(), "records", len(records))
	}
	return errors.Join(errs...)
}
