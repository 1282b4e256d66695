package domain

import "strings"

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ShelterRecord holds the visit statistics for one canonical shelter name.
type ShelterRecord struct {
	Name       string `json:"name"`
	VisitCount int    `json:"visits"`
	Dataset    string `json:"dataset,omitempty"`
	Type       string `json:"type,omitempty"`
	Geo        *Geo   `json:"geo,omitempty"`

	// Reference is true for records loaded from the reference table and
	// false for ad-hoc records created from unmatched locations.
	Reference bool `json:"reference"`

	// GeoSource is set when coordinates were filled in after aggregation.
	GeoSource string `json:"geo_source,omitempty"`
}

var canonicalReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n", `"`, "")

// CanonicalKey lower-cases a location, strips every double quote and folds
// CRLF and lone CR line breaks to LF. CSV readers fold CRLF inside quoted
// fields, so keys must not carry CR to survive a report round trip.
func CanonicalKey(s string) string {
	return canonicalReplacer.Replace(strings.ToLower(s))
}

// clone copies r, including its coordinates.
func (r *ShelterRecord) clone() ShelterRecord {
	cp := *r
	if r.Geo != nil {
		g := *r.Geo
		cp.Geo = &g
	}
	return cp
}

// ShelterTable maps canonical names to shelter records and remembers
// insertion order. It is owned by a single aggregation run and is not safe
// for concurrent use.
type ShelterTable struct {
	records map[string]*ShelterRecord
	order   []string
}

// NewShelterTable returns an empty table.
func NewShelterTable() *ShelterTable {
	return &ShelterTable{records: make(map[string]*ShelterRecord)}
}

// Len returns the number of records.
func (t *ShelterTable) Len() int { return len(t.order) }

// Get returns a copy of the record stored under key.
func (t *ShelterTable) Get(key string) (ShelterRecord, bool) {
	rec, ok := t.records[key]
	if !ok {
		return ShelterRecord{}, false
	}
	return rec.clone(), true
}

// Has reports whether key is present.
func (t *ShelterTable) Has(key string) bool {
	_, ok := t.records[key]
	return ok
}

// Keys returns the canonical names in insertion order.
func (t *ShelterTable) Keys() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Records returns copies of all records in insertion order.
func (t *ShelterTable) Records() []ShelterRecord {
	out := make([]ShelterRecord, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.records[k].clone())
	}
	return out
}

// TotalVisits sums the visit counts of every record.
func (t *ShelterTable) TotalVisits() int {
	total := 0
	for _, rec := range t.records {
		total += rec.VisitCount
	}
	return total
}

// Clone returns a deep copy of the table.
func (t *ShelterTable) Clone() *ShelterTable {
	c := &ShelterTable{
		records: make(map[string]*ShelterRecord, len(t.records)),
		order:   make([]string, len(t.order)),
	}
	copy(c.order, t.order)
	for k, rec := range t.records {
		cp := rec.clone()
		c.records[k] = &cp
	}
	return c
}

// put stores rec under rec.Name. An existing key keeps its position and
// takes the new data.
func (t *ShelterTable) put(rec ShelterRecord) {
	if existing, ok := t.records[rec.Name]; ok {
		*existing = rec
		return
	}
	t.records[rec.Name] = &rec
	t.order = append(t.order, rec.Name)
}

// visit increments the count for key. It reports false when key is unknown.
func (t *ShelterTable) visit(key string) bool {
	rec, ok := t.records[key]
	if !ok {
		return false
	}
	rec.VisitCount++
	return true
}

// addAdHoc creates an ad-hoc record for key with a single visit.
func (t *ShelterTable) addAdHoc(key string) {
	t.put(ShelterRecord{Name: key, VisitCount: 1})
}
