package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnitOf(t *testing.T) {
	require.Equal(t, "lbs", UnitOf("Deadlift (lbs)"))
	require.Equal(t, "ft/in", UnitOf("Broad Jump (ft/in) "))
	require.Equal(t, "", UnitOf("Push-ups"))
	require.Equal(t, "", UnitOf("Weird)"))
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		activity string
		value    float64
		want     string
	}{
		{"Deadlift (lbs)", 315, "315 lbs"},
		{"Push-ups", 42, "42"},
		{"Broad Jump (ft/in)", 75, `6' 3"`},
		{"Broad Jump (ft/in)", 74.5, `6' 2.5"`},
		{"Mile (mm:ss)", 405, "6:45"},
		{"Marathon (hh:mm:ss)", 12345, "3:25:45"},
		{"Row (m)", 1999.996, "2000 m"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FormatValue(tt.activity, tt.value), tt.activity)
	}
}
