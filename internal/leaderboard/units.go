package leaderboard

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// UnitOf returns the unit named in the trailing parentheses of an activity
// name, e.g. "lbs" for "Deadlift (lbs)". It returns "" when there is none.
func UnitOf(activity string) string {
	activity = strings.TrimSpace(activity)
	if !strings.HasSuffix(activity, ")") {
		return ""
	}
	open := strings.LastIndex(activity, "(")
	if open < 0 {
		return ""
	}
	return strings.TrimSpace(activity[open+1 : len(activity)-1])
}

// FormatValue renders value for display using the unit of activity. Feet and
// inches values are stored as total inches; clock units as total seconds.
func FormatValue(activity string, value float64) string {
	if !finite(value) {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}

	unit := UnitOf(activity)
	switch strings.ToLower(unit) {
	case "ft/in", "feet/inches", "ft-in":
		feet := math.Floor(value / 12)
		inches := value - feet*12
		return fmt.Sprintf("%d' %s\"", int(feet), trimFloat(inches))
	case "mm:ss", "min:sec":
		total := int(math.Round(value))
		return fmt.Sprintf("%d:%02d", total/60, total%60)
	case "hh:mm:ss":
		total := int(math.Round(value))
		return fmt.Sprintf("%d:%02d:%02d", total/3600, (total/60)%60, total%60)
	case "":
		return trimFloat(value)
	default:
		return trimFloat(value) + " " + unit
	}
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
