package domain

import "strings"

// Tallier accumulates visit counts into a ShelterTable. The matcher index is
// built once and kept current as ad-hoc keys are created.
type Tallier struct {
	table   *ShelterTable
	matcher *Matcher
}

// NewTallier wraps table. The table must not be modified elsewhere while the
// Tallier is in use.
func NewTallier(table *ShelterTable) *Tallier {
	return &Tallier{table: table, matcher: NewMatcher(table)}
}

// Table returns the table being accumulated into.
func (t *Tallier) Table() *ShelterTable { return t.table }

// Tally resolves one location and records a visit: matched keys are
// incremented and unmatched locations become ad-hoc records with one visit.
func (t *Tallier) Tally(location string) MatchResult {
	res := t.matcher.Match(strings.ToLower(location))
	if res.Matched {
		t.table.visit(res.Key)
		return res
	}
	if !t.table.visit(res.Key) {
		t.table.addAdHoc(res.Key)
		t.matcher.addAdHoc(res.Key)
	}
	return res
}

// JournalTally summarises what one journal contributed.
type JournalTally struct {
	Entries   int
	Locations int
	Kinds     map[MatchKind]int
}

// Matched returns the number of locations that resolved to an existing key.
func (jt JournalTally) Matched() int {
	return jt.Locations - jt.Kinds[MatchNone]
}

// TallyJournal records every non-null start and destination of j in entry order.
func (t *Tallier) TallyJournal(j *Journal) JournalTally {
	jt := JournalTally{Kinds: make(map[MatchKind]int)}
	if j == nil {
		return jt
	}
	for _, entry := range j.Entries {
		jt.Entries++
		for _, loc := range entry.Locations() {
			res := t.Tally(loc)
			jt.Locations++
			jt.Kinds[res.Kind]++
		}
	}
	return jt
}
