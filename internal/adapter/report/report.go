// Package report reads and writes the shelter visit report, a CSV file with
// the header shelter,number,lat,lon. Names are always quoted and missing
// coordinates are written as the literal None.
package report

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/trail-shelter-stats/internal/domain"
)

// NullMarker stands in for an absent coordinate.
const NullMarker = "None"

// Header is the first row of every report.
var Header = []string{"shelter", "number", "lat", "lon"}

// Write serializes records in the given order.
func Write(w io.Writer, records []domain.ShelterRecord) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(Header, ",") + "\n"); err != nil {
		return err
	}
	for _, rec := range records {
		lat, lon := NullMarker, NullMarker
		if rec.Geo != nil {
			lat = formatCoordinate(rec.Geo.Lat)
			lon = formatCoordinate(rec.Geo.Lon)
		}
		row := fmt.Sprintf("%s,%d,%s,%s\n", quote(rec.Name), rec.VisitCount, lat, lon)
		if _, err := bw.WriteString(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Read parses a report back into records carrying name, visit count and
// coordinates.
func Read(r io.Reader) ([]domain.ShelterRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("report is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read report header: %w", err)
	}
	if !slices.Equal(head, Header) {
		return nil, fmt.Errorf("unexpected report header %q", strings.Join(head, ","))
	}

	var records []domain.ShelterRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read report: %w", err)
		}
		line, _ := cr.FieldPos(0)

		count, err := strconv.Atoi(row[1])
		if err != nil || count < 0 {
			return nil, fmt.Errorf("report line %d: invalid number %q", line, row[1])
		}
		geo, err := parseGeo(row[2], row[3])
		if err != nil {
			return nil, fmt.Errorf("report line %d: %w", line, err)
		}
		records = append(records, domain.ShelterRecord{Name: row[0], VisitCount: count, Geo: geo})
	}
}

func parseGeo(lat, lon string) (*domain.Geo, error) {
	if lat == NullMarker && lon == NullMarker {
		return nil, nil
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid lat %q", lat)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid lon %q", lon)
	}
	return &domain.Geo{Lat: la, Lon: lo}, nil
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
