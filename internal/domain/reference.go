package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// referenceFields is the number of columns in name,dataset,lat,lon,type.
const referenceFields = 5

// LoadReference reads the known-shelter CSV and returns a table keyed by
// canonical name with every visit count at zero. The first record is a
// header and is skipped. Any unparsable row aborts the load.
func LoadReference(r io.Reader) (*ShelterTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	table := NewShelterTable()
	header := true
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &MalformedReferenceRowError{Line: pe.StartLine, Err: pe.Err}
			}
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		if header {
			header = false
			continue
		}

		rec, err := parseReferenceRow(row, line)
		if err != nil {
			return nil, err
		}
		table.put(rec)
	}
	return table, nil
}

func parseReferenceRow(row []string, line int) (ShelterRecord, error) {
	if len(row) < referenceFields {
		return ShelterRecord{}, &MalformedReferenceRowError{
			Line: line,
			Err:  fmt.Errorf("expected %d fields, got %d", referenceFields, len(row)),
		}
	}

	lat, err := parseCoordinate(row[2], line, "lat")
	if err != nil {
		return ShelterRecord{}, err
	}
	lon, err := parseCoordinate(row[3], line, "lon")
	if err != nil {
		return ShelterRecord{}, err
	}

	return ShelterRecord{
		Name:      CanonicalKey(strings.TrimSpace(row[0])),
		Dataset:   strings.TrimSpace(row[1]),
		Type:      strings.TrimSpace(row[4]),
		Geo:       &Geo{Lat: lat, Lon: lon},
		Reference: true,
	}, nil
}

func parseCoordinate(s string, line int, column string) (float64, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &MalformedReferenceRowError{Line: line, Column: column, Value: s, Err: err}
	}
	return v, nil
}
