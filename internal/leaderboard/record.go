package leaderboard

import "math"

// Better reports whether candidate strictly beats current.
func Better(candidate, current float64, higherIsBetter bool) bool {
	if higherIsBetter {
		return candidate > current
	}
	return candidate < current
}

// BestResult reduces a user's results for one activity to the single best one.
// Ties keep the earliest result in slice order. ok is false for empty input.
func BestResult(results []Result, higherIsBetter bool) (best Result, ok bool) {
	if len(results) == 0 {
		return Result{}, false
	}
	best = results[0]
	for _, r := range results[1:] {
		if Better(r.Value, best.Value, higherIsBetter) {
			best = r
		}
	}
	return best, true
}

// PersonalRecords returns the best result per activity among results, using
// the direction configured in cfg. Results with non-finite values are ignored.
func PersonalRecords(results []Result, cfg ActivityConfig) map[string]Result {
	byActivity := make(map[string][]Result)
	for _, r := range results {
		if !finite(r.Value) || r.Activity == "" {
			continue
		}
		byActivity[r.Activity] = append(byActivity[r.Activity], r)
	}

	records := make(map[string]Result, len(byActivity))
	for activity, group := range byActivity {
		if best, ok := BestResult(group, cfg.HigherIsBetter(activity)); ok {
			records[activity] = best
		}
	}
	return records
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
