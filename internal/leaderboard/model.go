// Package leaderboard computes personal records and age/gender segmented
// leaderboards from recorded activity results. It performs no I/O.
package leaderboard

import "time"

// TopN bounds the number of entries kept in every leaderboard cell.
const TopN = 3

// Gender values as stored on the roster. Only Male and Female are ranked.
type Gender string

const (
	GenderMale      Gender = "Male"
	GenderFemale    Gender = "Female"
	GenderNonBinary Gender = "Non-Binary"
)

// Ranked reports whether athletes of this gender take part in leaderboards.
func (g Gender) Ranked() bool {
	return g == GenderMale || g == GenderFemale
}

// AgeCategory is one of the fixed leaderboard age buckets.
type AgeCategory string

const (
	CategoryOverall AgeCategory = "overall"
	Category0To19   AgeCategory = "0-19"
	Category20To29  AgeCategory = "20-29"
	Category30To39  AgeCategory = "30-39"
	Category40To49  AgeCategory = "40-49"
	Category50To59  AgeCategory = "50-59"
	Category60To69  AgeCategory = "60-69"
	Category70To79  AgeCategory = "70-79"
	Category80Plus  AgeCategory = "80+"
)

// Categories lists every age category, overall first.
var Categories = []AgeCategory{
	CategoryOverall,
	Category0To19,
	Category20To29,
	Category30To39,
	Category40To49,
	Category50To59,
	Category60To69,
	Category70To79,
	Category80Plus,
}

// ParseCategory returns the category named by s.
func ParseCategory(s string) (AgeCategory, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Result is one recorded measurement. Value is in canonical units; compound
// units such as feet/inches are already combined into a single scalar.
type Result struct {
	ID       string    `json:"id"`
	UserName string    `json:"userName"`
	Activity string    `json:"activity"`
	Value    float64   `json:"value"`
	Date     time.Time `json:"date"`
}

// Athlete is the roster projection the aggregator needs.
type Athlete struct {
	FullName  string
	Gender    Gender
	Birthdate string
}

// ActivityConfig lists known activities and their PR direction.
type ActivityConfig struct {
	List        []string        `json:"list"`
	PRDirection map[string]bool `json:"prDirection"`
}

// HigherIsBetter resolves the direction for activity, defaulting to true.
func (c ActivityConfig) HigherIsBetter(activity string) bool {
	if higher, ok := c.PRDirection[activity]; ok {
		return higher
	}
	return true
}

// Has reports whether activity is configured.
func (c ActivityConfig) Has(activity string) bool {
	for _, name := range c.List {
		if name == activity {
			return true
		}
	}
	return false
}

// Entry is the projection of a winning result shown on a leaderboard.
type Entry struct {
	UserName string    `json:"userName"`
	Value    float64   `json:"value"`
	Date     time.Time `json:"date"`
}

// Cell holds the ranked entries for one activity and age category.
type Cell struct {
	Male   []Entry `json:"Male"`
	Female []Entry `json:"Female"`
}

// ForGender returns the entries for g, or nil when g is not ranked.
func (c Cell) ForGender(g Gender) []Entry {
	switch g {
	case GenderMale:
		return c.Male
	case GenderFemale:
		return c.Female
	default:
		return nil
	}
}

// Leaderboard maps activity name to its per-category cells.
type Leaderboard map[string]map[AgeCategory]Cell

// DocumentID is the fixed key of the persisted leaderboard document.
const DocumentID = "leaderboards"

// Document is the persisted shape of a computed leaderboard.
type Document struct {
	Leaderboards Leaderboard `json:"leaderboards"`
}
