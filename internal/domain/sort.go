package domain

import (
	"cmp"
	"fmt"
	"slices"
)

// SortOrder selects how shelter records are listed.
type SortOrder string

const (
	SortReport SortOrder = "report" // table order: reference rows, then ad-hoc keys as first seen
	SortVisits SortOrder = "visits" // most visited first, ties by name
	SortName   SortOrder = "name"
)

// ParseSortOrder validates a user supplied sort order. Empty means SortReport.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(s); o {
	case "":
		return SortReport, nil
	case SortReport, SortVisits, SortName:
		return o, nil
	default:
		return "", fmt.Errorf("unknown sort order %q (want report, visits or name)", s)
	}
}

// SortRecords returns a sorted copy of records.
func SortRecords(records []ShelterRecord, order SortOrder) []ShelterRecord {
	out := slices.Clone(records)
	switch order {
	case SortVisits:
		slices.SortStableFunc(out, func(a, b ShelterRecord) int {
			if c := cmp.Compare(b.VisitCount, a.VisitCount); c != 0 {
				return c
			}
			return cmp.Compare(a.Name, b.Name)
		})
	case SortName:
		slices.SortStableFunc(out, func(a, b ShelterRecord) int {
			return cmp.Compare(a.Name, b.Name)
		})
	}
	return out
}
