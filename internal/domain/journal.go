package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// HikerDocument is the stored form of one hiker's profile and journal.
type HikerDocument struct {
	Identifier json.RawMessage `json:"identifier,omitempty"`
	Name       *string         `json:"name"`
	TrailName  *string         `json:"trail_name"`
	StartDate  *string         `json:"start_date"`
	EndDate    *string         `json:"end_date"`
	Journal    *Journal        `json:"journal"`
}

// JournalEntry is one day of a hiker's journal. Any field may be null.
type JournalEntry struct {
	Index         string   `json:"-"`
	StartLocation *string  `json:"start_loc"`
	Destination   *string  `json:"dest"`
	DayMileage    *float64 `json:"day_mileage"`
	TripMileage   *float64 `json:"trip_mileage"`
	Date          *string  `json:"date"`
}

// Locations returns the non-null start and destination fields, in that order.
func (e JournalEntry) Locations() []string {
	locs := make([]string, 0, 2)
	if e.StartLocation != nil {
		locs = append(locs, *e.StartLocation)
	}
	if e.Destination != nil {
		locs = append(locs, *e.Destination)
	}
	return locs
}

// Journal holds entries in the order they appear in the stored document.
type Journal struct {
	Entries []JournalEntry
}

// UnmarshalJSON decodes the index->entry object while keeping key order.
func (j *Journal) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("journal: expected object, got %v", tok)
	}

	entries := make([]JournalEntry, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var entry JournalEntry
		if err := dec.Decode(&entry); err != nil {
			return fmt.Errorf("journal entry %q: %w", key, err)
		}
		entry.Index = key
		entries = append(entries, entry)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	j.Entries = entries
	return nil
}

// MarshalJSON writes the entries back as an index->entry object in order.
func (j Journal) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range j.Entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Index)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseHikerDocument decodes a stored hiker document. The whole document is
// validated before it is returned so callers never act on half of a journal.
func ParseHikerDocument(data []byte) (HikerDocument, error) {
	var doc HikerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return HikerDocument{}, fmt.Errorf("parse hiker document: %w", err)
	}
	if doc.Journal == nil {
		return HikerDocument{}, ErrMissingJournal
	}
	return doc, nil
}
