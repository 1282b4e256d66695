// Package domain models trail-journal shelter statistics.
//
// # Data Source
//
// Hiker journals are collected from a public trail-journal website by an
// upstream collector and stored as one JSON document per hiker, named by the
// hiker identifier. Each document carries a "journal" object whose keys are
// entry indices ("0", "1", ...) in the order the entries were written:
//
//	{"identifier": 1234, "name": "...", "trail_name": "...",
//	 "journal": {"0": {"start_loc": "Springer Mountain", "dest": "Hawk Mountain Shelter",
//	                   "day_mileage": 8.1, "trip_mileage": 8.1, "date": "Friday, March 4, 2016"}}}
//
// Location strings are free text typed by hikers: inconsistently cased,
// sometimes wrapped in quotes, with or without the word "Shelter".
//
// # Reference Table
//
// Known shelters come from a CSV file with a header row followed by
// name,dataset,lat,lon,type rows. Names are stored as canonical keys
// (lower-cased, double quotes removed). See [LoadReference].
//
// # Matching
//
// A location resolves to a canonical key using the first rule that applies:
//
//  1. the location equals a key;
//  2. the location is contained in a key;
//  3. a key is contained in the location.
//
// An exact match always wins. Rules 2 and 3 are tried against every
// reference key before any ad-hoc key, and within a rule the
// lexicographically smallest qualifying key wins, so the result never depends
// on map iteration order. Empty strings only ever match exactly. A location
// that resolves to nothing becomes a new ad-hoc key with no coordinates.
// See [Matcher] and [Tallier].
//
// Near-duplicate spellings of an unlisted shelter ("wolf laurel shelter" vs
// "wolf laurel shltr") become separate ad-hoc keys. [SuggestAliases] reports
// likely aliases but never merges counts.
package domain
