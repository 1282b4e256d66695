package domain

import (
	"slices"
	"strings"
)

// MatchKind names the rule that resolved a location.
type MatchKind string

const (
	MatchExact     MatchKind = "exact"     // location equals a key
	MatchContained MatchKind = "contained" // location is a substring of a key
	MatchContains  MatchKind = "contains"  // a key is a substring of the location
	MatchNone      MatchKind = "unmatched"
)

// MatchResult is the outcome of resolving one location string.
type MatchResult struct {
	Matched bool
	Key     string // canonical key on a match, the processed input otherwise
	Kind    MatchKind
}

// Matcher resolves free-text locations to canonical keys of a ShelterTable.
// Keys are kept sorted so substring ties resolve to the lexicographically
// smallest key. An exact match always wins; otherwise both substring rules
// are tried against reference keys before any ad-hoc key, which keeps
// reference counts independent of the order hikers are processed in.
type Matcher struct {
	table     *ShelterTable
	reference []string
	adHoc     []string
}

// NewMatcher indexes the keys currently in table.
func NewMatcher(table *ShelterTable) *Matcher {
	m := &Matcher{table: table}
	for _, k := range table.order {
		if table.records[k].Reference {
			m.reference = append(m.reference, k)
		} else {
			m.adHoc = append(m.adHoc, k)
		}
	}
	slices.Sort(m.reference)
	slices.Sort(m.adHoc)
	return m
}

// Match resolves raw against the indexed keys. It does not modify the table.
func (m *Matcher) Match(raw string) MatchResult {
	s := CanonicalKey(raw)

	if m.table.Has(s) {
		return MatchResult{Matched: true, Key: s, Kind: MatchExact}
	}
	if s == "" {
		return MatchResult{Key: s, Kind: MatchNone}
	}

	contained := func(key string) bool { return key != "" && strings.Contains(key, s) }
	contains := func(key string) bool { return key != "" && strings.Contains(s, key) }

	for _, keys := range [][]string{m.reference, m.adHoc} {
		if k, ok := firstKey(keys, contained); ok {
			return MatchResult{Matched: true, Key: k, Kind: MatchContained}
		}
		if k, ok := firstKey(keys, contains); ok {
			return MatchResult{Matched: true, Key: k, Kind: MatchContains}
		}
	}

	return MatchResult{Key: s, Kind: MatchNone}
}

// addAdHoc indexes a key created after construction.
func (m *Matcher) addAdHoc(key string) {
	i, found := slices.BinarySearch(m.adHoc, key)
	if found {
		return
	}
	m.adHoc = slices.Insert(m.adHoc, i, key)
}

func firstKey(sorted []string, pred func(string) bool) (string, bool) {
	for _, k := range sorted {
		if pred(k) {
			return k, true
		}
	}
	return "", false
}
