package domain

import (
	"sort"

	"github.com/antzucaro/matchr"
)

// AliasSuggestion pairs an ad-hoc key with the most similar reference key.
type AliasSuggestion struct {
	AdHoc      string
	Reference  string
	Similarity float64
	Visits     int
}

// SuggestAliases compares every ad-hoc record against the reference records
// using Jaro-Winkler similarity and returns the best candidate for each one
// scoring at least threshold. Counts are never merged. Results are sorted by
// similarity, highest first, then by ad-hoc key.
func SuggestAliases(table *ShelterTable, threshold float64) []AliasSuggestion {
	var refs, adHoc []ShelterRecord
	for _, rec := range table.Records() {
		if rec.Reference {
			refs = append(refs, rec)
		} else if rec.Name != "" {
			adHoc = append(adHoc, rec)
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })

	var out []AliasSuggestion
	for _, a := range adHoc {
		var best AliasSuggestion
		for _, r := range refs {
			sim := matchr.JaroWinkler(a.Name, r.Name, false)
			if sim > best.Similarity {
				best = AliasSuggestion{AdHoc: a.Name, Reference: r.Name, Similarity: sim, Visits: a.VisitCount}
			}
		}
		if best.Reference != "" && best.Similarity >= threshold {
			out = append(out, best)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].AdHoc < out[j].AdHoc
	})
	return out
}
