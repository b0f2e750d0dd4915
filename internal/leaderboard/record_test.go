package leaderboard

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func results(activity, user string, values ...float64) []Result {
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]Result, 0, len(values))
	for i, v := range values {
		out = append(out, Result{
			ID:       fmt.Sprintf("%s-%s-%d", user, activity, i),
			UserName: user,
			Activity: activity,
			Value:    v,
			Date:     base.AddDate(0, 0, i),
		})
	}
	return out
}

func TestBestResultHigherIsBetter(t *testing.T) {
	best, ok := BestResult(results("Push-ups", "A", 10, 15, 12), true)
	require.True(t, ok)
	require.Equal(t, 15.0, best.Value)
}

func TestBestResultLowerIsBetter(t *testing.T) {
	best, ok := BestResult(results("Plank (seconds)", "B", 60, 45, 50), false)
	require.True(t, ok)
	require.Equal(t, 45.0, best.Value)
}

func TestBestResultTieKeepsFirst(t *testing.T) {
	in := results("Squats", "A", 100, 100, 90)
	best, ok := BestResult(in, true)
	require.True(t, ok)
	require.Equal(t, in[0].ID, best.ID)

	best, ok = BestResult(results("Squats", "A", 90, 80, 80), false)
	require.True(t, ok)
	require.Equal(t, 80.0, best.Value)
	require.Equal(t, time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC), best.Date)
}

func TestBestResultEmpty(t *testing.T) {
	_, ok := BestResult(nil, true)
	require.False(t, ok)
}

func TestBestResultMatchesMaxAndMin(t *testing.T) {
	values := []float64{3.5, -2, 17.25, 17, 0, 9}
	in := results("Row (m)", "C", values...)

	high, _ := BestResult(in, true)
	low, _ := BestResult(in, false)

	maxV, minV := values[0], values[0]
	for _, v := range values {
		maxV = math.Max(maxV, v)
		minV = math.Min(minV, v)
	}
	require.Equal(t, maxV, high.Value)
	require.Equal(t, minV, low.Value)
}

func TestPersonalRecords(t *testing.T) {
	in := append(results("Push-ups", "A", 10, 15, 12), results("Mile (mm:ss)", "A", 420, 400, 410)...)
	in = append(in, Result{UserName: "A", Activity: "Push-ups", Value: math.NaN()})

	cfg := ActivityConfig{
		List:        []string{"Push-ups", "Mile (mm:ss)"},
		PRDirection: map[string]bool{"Mile (mm:ss)": false},
	}
	records := PersonalRecords(in, cfg)

	require.Len(t, records, 2)
	require.Equal(t, 15.0, records["Push-ups"].Value)
	require.Equal(t, 400.0, records["Mile (mm:ss)"].Value)
}

func TestHigherIsBetterDefaultsToTrue(t *testing.T) {
	cfg := ActivityConfig{PRDirection: map[string]bool{"Plank (seconds)": false}}
	require.True(t, cfg.HigherIsBetter("Push-ups"))
	require.False(t, cfg.HigherIsBetter("Plank (seconds)"))
	require.True(t, ActivityConfig{}.HigherIsBetter("anything"))
}
