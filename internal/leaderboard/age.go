package leaderboard

import (
	"strconv"
	"strings"
	"time"
)

// AgeFromBirthdate parses an MM/DD/YYYY birthdate and returns the age in whole
// years as of asOf. ok is false when the birthdate is empty, malformed, not a
// real calendar date, or after asOf. Rolling impossible dates such as 02/30
// over into the next month, or reporting a negative age for a future
// birthdate, would place the athlete in a real age bucket; here both count as
// unknown age and land in overall only.
func AgeFromBirthdate(birthdate string, asOf time.Time) (age int, ok bool) {
	parts := strings.Split(strings.TrimSpace(birthdate), "/")
	if len(parts) != 3 {
		return 0, false
	}

	month, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	day, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, false
	}

	born := time.Date(year, time.Month(month), day, 0, 0, 0, 0, asOf.Location())
	// time.Date normalises out-of-range values (02/30 becomes 03/02).
	if born.Year() != year || born.Month() != time.Month(month) || born.Day() != day {
		return 0, false
	}
	if born.After(asOf) {
		return 0, false
	}

	age = asOf.Year() - year
	if asOf.Month() < born.Month() || (asOf.Month() == born.Month() && asOf.Day() < born.Day()) {
		age--
	}
	return age, true
}

// CategoryForAge buckets an age. Unknown ages map to CategoryOverall.
func CategoryForAge(age int, ok bool) AgeCategory {
	if !ok {
		return CategoryOverall
	}
	switch {
	case age < 20:
		return Category0To19
	case age < 30:
		return Category20To29
	case age < 40:
		return Category30To39
	case age < 50:
		return Category40To49
	case age < 60:
		return Category50To59
	case age < 70:
		return Category60To69
	case age < 80:
		return Category70To79
	default:
		return Category80Plus
	}
}

// Classify combines AgeFromBirthdate and CategoryForAge.
func Classify(birthdate string, asOf time.Time) AgeCategory {
	return CategoryForAge(AgeFromBirthdate(birthdate, asOf))
}
