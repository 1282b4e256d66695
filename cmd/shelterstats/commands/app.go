package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/couchcryptid/trail-shelter-stats/internal/adapter/journal"
	kafkaadapter "github.com/couchcryptid/trail-shelter-stats/internal/adapter/kafka"
	"github.com/couchcryptid/trail-shelter-stats/internal/adapter/mapbox"
	"github.com/couchcryptid/trail-shelter-stats/internal/adapter/report"
	"github.com/couchcryptid/trail-shelter-stats/internal/adapter/sqlite"
	"github.com/couchcryptid/trail-shelter-stats/internal/config"
	"github.com/couchcryptid/trail-shelter-stats/internal/domain"
	"github.com/couchcryptid/trail-shelter-stats/internal/observability"
	"github.com/couchcryptid/trail-shelter-stats/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// documentStore is a journal source that can also be written to.
type documentStore interface {
	pipeline.JournalSource
	Put(ctx context.Context, hikerID string, data []byte) error
}

// app carries what every command needs: configuration, a logger and metrics.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// loadApp reads configuration from the environment and applies the root
// command's flag overrides. Metrics go to a private registry unless
// globalMetrics is set.
func loadApp(cmd *cobra.Command, globalMetrics bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, &domain.FatalConfigError{Source: "configuration", Err: err}
	}

	flags := cmd.Flags()
	overrides := []struct {
		flag string
		dst  *string
	}{
		{"log-level", &cfg.LogLevel},
		{"log-format", &cfg.LogFormat},
		{"reference", &cfg.ReferencePath},
		{"hikers", &cfg.HikerListPath},
		{"journal-dir", &cfg.JournalDir},
		{"report", &cfg.ReportPath},
	}
	for _, o := range overrides {
		if f := flags.Lookup(o.flag); f != nil && f.Changed {
			*o.dst = f.Value.String()
		}
	}

	metrics := observability.NewMetricsWithRegistry(prometheus.NewRegistry())
	if globalMetrics {
		metrics = observability.NewMetrics()
	}

	return &app{
		cfg:     cfg,
		logger:  observability.NewLogger(cfg.LogLevel, cfg.LogFormat),
		metrics: metrics,
	}, nil
}

// loadInputs reads the reference table and hiker list. Any failure is fatal.
func (a *app) loadInputs() (*domain.ShelterTable, []string, error) {
	table, err := loadReference(a.cfg.ReferencePath)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(a.cfg.HikerListPath)
	if err != nil {
		return nil, nil, &domain.FatalConfigError{Source: "hiker list", Err: err}
	}
	defer f.Close()

	ids, err := domain.ReadHikerList(f)
	if err != nil {
		return nil, nil, &domain.FatalConfigError{Source: "hiker list", Err: err}
	}

	a.logger.Info("inputs loaded",
		"reference", a.cfg.ReferencePath,
		"shelters", table.Len(),
		"hiker_list", a.cfg.HikerListPath,
		"hikers", len(ids),
	)
	return table, ids, nil
}

func loadReference(path string) (*domain.ShelterTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.FatalConfigError{Source: "reference file", Err: err}
	}
	defer f.Close()

	table, err := domain.LoadReference(f)
	if err != nil {
		return nil, &domain.FatalConfigError{Source: "reference file", Err: err}
	}
	return table, nil
}

func (a *app) journalStore(ctx context.Context) (documentStore, error) {
	switch a.cfg.JournalDriver {
	case config.JournalDriverS3:
		src, err := journal.NewS3Source(ctx, a.cfg.S3)
		if err != nil {
			return nil, &domain.FatalConfigError{Source: "journal store", Err: err}
		}
		a.logger.Info("reading journals from s3", "bucket", a.cfg.S3.Bucket, "prefix", a.cfg.S3.Prefix)
		return src, nil
	default:
		a.logger.Info("reading journals from directory", "dir", a.cfg.JournalDir)
		return journal.NewDirSource(a.cfg.JournalDir), nil
	}
}

func (a *app) newAggregator(src pipeline.JournalSource) *pipeline.Aggregator {
	return pipeline.NewAggregator(src, a.logger, a.metrics, pipeline.AggregatorOptions{
		BatchSize: a.cfg.BatchSize,
		Workers:   a.cfg.FetchWorkers,
		Retries:   a.cfg.FetchRetries,
	})
}

// enricher returns the geocoding enricher, or nil when geocoding is disabled.
func (a *app) enricher() (pipeline.Enricher, error) {
	if !a.cfg.MapboxEnabled {
		a.metrics.GeocodeEnabled.Set(0)
		a.logger.Info("mapbox geocoding disabled")
		return nil, nil
	}
	client := mapbox.NewClient(a.cfg.MapboxToken, a.cfg.MapboxTimeout, a.metrics, a.logger)
	cached, err := mapbox.NewCachedGeocoder(client, a.cfg.MapboxCacheSize, a.metrics)
	if err != nil {
		return nil, fmt.Errorf("geocode cache: %w", err)
	}
	a.metrics.GeocodeEnabled.Set(1)
	a.logger.Info("mapbox geocoding enabled", "cache_size", a.cfg.MapboxCacheSize, "timeout", a.cfg.MapboxTimeout)
	return pipeline.NewGeocodeEnricher(cached, a.cfg.MapboxRegion, a.logger), nil
}

// sinks builds the report sinks. The CSV report is always written; SQLite
// and Kafka are added when configured. The returned close function releases
// every sink.
func (a *app) sinks(ctx context.Context) ([]pipeline.Sink, func(), error) {
	sinks := []pipeline.Sink{report.NewFileSink(a.cfg.ReportPath)}
	var closers []func() error

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				a.logger.Error("sink close error", "error", err)
			}
		}
	}

	if a.cfg.SQLitePath != "" {
		store, err := sqlite.Open(ctx, a.cfg.SQLitePath, a.logger)
		if err != nil {
			closeAll()
			return nil, nil, &domain.IOWriteError{Target: a.cfg.SQLitePath, Err: err}
		}
		sinks = append(sinks, store)
		closers = append(closers, store.Close)
	}
	if len(a.cfg.KafkaBrokers) > 0 {
		pub := kafkaadapter.NewPublisher(a.cfg.KafkaBrokers, a.cfg.KafkaTopic, a.logger)
		sinks = append(sinks, pub)
		closers = append(closers, pub.Close)
	}
	return sinks, closeAll, nil
}

// newPipeline wires source, enricher and sinks into a Pipeline.
func (a *app) newPipeline(ctx context.Context) (*pipeline.Pipeline, func(), error) {
	src, err := a.journalStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	enricher, err := a.enricher()
	if err != nil {
		return nil, nil, err
	}
	sinks, closeSinks, err := a.sinks(ctx)
	if err != nil {
		return nil, nil, err
	}
	return pipeline.New(a.newAggregator(src), enricher, sinks, a.logger, a.metrics), closeSinks, nil
}

func logSummary(logger *slog.Logger, s pipeline.Summary, table *domain.ShelterTable) {
	for _, sk := range s.Skipped {
		logger.Debug("skipped hiker", "hiker_id", sk.HikerID, "reason", sk.Reason)
	}
	logger.Info("run summary",
		"processed", s.Processed,
		"skipped", len(s.Skipped),
		"entries", s.Entries,
		"locations", s.Locations,
		"matched", s.Matched,
		"unmatched", s.Unmatched,
		"shelters", table.Len(),
		"total_visits", table.TotalVisits(),
		"duration", s.FinishedAt.Sub(s.StartedAt),
	)
}
