package leaderboard

import (
	"cmp"
	"slices"
)

// RankTopN orders entries best first and keeps at most n of them. Equal values
// are ordered by earlier Date, then by input order. The input is not modified
// and the result is never nil.
func RankTopN(entries []Entry, higherIsBetter bool, n int) []Entry {
	ranked := make([]Entry, len(entries))
	copy(ranked, entries)

	slices.SortStableFunc(ranked, func(a, b Entry) int {
		byValue := cmp.Compare(a.Value, b.Value)
		if higherIsBetter {
			byValue = -byValue
		}
		if byValue != 0 {
			return byValue
		}
		return a.Date.Compare(b.Date)
	})

	if n < 0 {
		n = 0
	}
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
