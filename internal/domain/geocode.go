package domain

import (
	"context"
	"log/slog"
)

// Geo source labels for records enriched after aggregation.
const (
	GeoSourceForward  = "forward"
	GeoSourceOriginal = "original"
	GeoSourceFailed   = "failed"
)

// EnrichWithGeocoding returns copies of records in which ad-hoc shelters
// without coordinates are forward geocoded. Reference records and records
// that already have coordinates are returned unchanged. A nil geocoder
// returns the records as they are. Failures degrade to GeoSourceFailed.
func EnrichWithGeocoding(ctx context.Context, records []ShelterRecord, geocoder Geocoder, region string, logger *slog.Logger) []ShelterRecord {
	out := make([]ShelterRecord, len(records))
	copy(out, records)
	if geocoder == nil {
		return out
	}

	for i := range out {
		rec := &out[i]
		if rec.Reference || rec.Geo != nil || rec.Name == "" {
			continue
		}
		if ctx.Err() != nil {
			return out
		}

		result, err := geocoder.ForwardGeocode(ctx, rec.Name, region)
		if err != nil {
			logger.Warn("forward geocoding failed",
				"shelter", rec.Name,
				"region", region,
				"error", err,
			)
			rec.GeoSource = GeoSourceFailed
			continue
		}
		if result.Lat == 0 && result.Lon == 0 {
			rec.GeoSource = GeoSourceOriginal
			continue
		}
		rec.Geo = &Geo{Lat: result.Lat, Lon: result.Lon}
		rec.GeoSource = GeoSourceForward
	}
	return out
}
