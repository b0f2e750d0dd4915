package leaderboard

import (
	"strings"
	"time"
)

// Stats describes what Compute did with its inputs. Callers use it for logging.
type Stats struct {
	Activities  int
	Unresolved  int
	Unranked    int
	NonFinite   int
	EntriesKept int
}

// Compute builds the full leaderboard for every configured activity. Ages are
// evaluated as of asOf. Activities without results are omitted.
func Compute(results []Result, athletes []Athlete, cfg ActivityConfig, asOf time.Time) Leaderboard {
	board, _ := ComputeWithStats(results, athletes, cfg, asOf)
	return board
}

// ComputeWithStats is Compute that also reports dropped inputs.
func ComputeWithStats(results []Result, athletes []Athlete, cfg ActivityConfig, asOf time.Time) (Leaderboard, Stats) {
	var stats Stats

	roster := make(map[string]Athlete, len(athletes))
	for _, a := range athletes {
		roster[strings.TrimSpace(a.FullName)] = a
	}

	byActivity := make(map[string][]Result)
	for _, r := range results {
		if !finite(r.Value) {
			stats.NonFinite++
			continue
		}
		byActivity[r.Activity] = append(byActivity[r.Activity], r)
	}

	board := make(Leaderboard)
	for _, activity := range cfg.List {
		activityResults := byActivity[activity]
		if len(activityResults) == 0 {
			continue
		}
		if _, done := board[activity]; done {
			continue
		}
		higher := cfg.HigherIsBetter(activity)

		order, groups := groupByUser(activityResults)

		cells := make(map[AgeCategory]*cellBuilder, len(Categories))
		for _, c := range Categories {
			cells[c] = &cellBuilder{}
		}

		for _, name := range order {
			best, ok := BestResult(groups[name], higher)
			if !ok {
				continue
			}
			athlete, found := roster[name]
			if !found {
				stats.Unresolved++
				continue
			}
			if !athlete.Gender.Ranked() {
				stats.Unranked++
				continue
			}

			entry := Entry{UserName: best.UserName, Value: best.Value, Date: best.Date}
			cells[CategoryOverall].add(athlete.Gender, entry)
			if category := Classify(athlete.Birthdate, asOf); category != CategoryOverall {
				cells[category].add(athlete.Gender, entry)
			}
		}

		ranked := make(map[AgeCategory]Cell, len(Categories))
		for _, c := range Categories {
			cell := Cell{
				Male:   RankTopN(cells[c].male, higher, TopN),
				Female: RankTopN(cells[c].female, higher, TopN),
			}
			stats.EntriesKept += len(cell.Male) + len(cell.Female)
			ranked[c] = cell
		}
		board[activity] = ranked
		stats.Activities++
	}

	return board, stats
}

// groupByUser groups results by trimmed user name, preserving the order in
// which names first appear.
func groupByUser(results []Result) ([]string, map[string][]Result) {
	var order []string
	groups := make(map[string][]Result)
	for _, r := range results {
		name := strings.TrimSpace(r.UserName)
		if _, seen := groups[name]; !seen {
			order = append(order, name)
		}
		groups[name] = append(groups[name], r)
	}
	return order, groups
}

type cellBuilder struct {
	male   []Entry
	female []Entry
}

func (b *cellBuilder) add(g Gender, e Entry) {
	switch g {
	case GenderMale:
		b.male = append(b.male, e)
	case GenderFemale:
		b.female = append(b.female, e)
	}
}
