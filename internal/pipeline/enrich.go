package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/trail-shelter-stats/internal/domain"
)

// GeocodeEnricher fills in coordinates for ad-hoc shelters using a geocoder.
type GeocodeEnricher struct {
	geocoder domain.Geocoder
	region   string
	logger   *slog.Logger
}

// NewGeocodeEnricher creates a GeocodeEnricher. Pass a nil geocoder to leave
// records untouched.
func NewGeocodeEnricher(geocoder domain.Geocoder, region string, logger *slog.Logger) *GeocodeEnricher {
	return &GeocodeEnricher{
		geocoder: geocoder,
		region:   region,
		logger:   logger,
	}
}

func (e *GeocodeEnricher) Enrich(ctx context.Context, records []domain.ShelterRecord) []domain.ShelterRecord {
	return domain.EnrichWithGeocoding(ctx, records, e.geocoder, e.region, e.logger)
}
