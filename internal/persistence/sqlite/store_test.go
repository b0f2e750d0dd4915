package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/performance/internal/domain"
	"example.com/performance/internal/leaderboard"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "performance.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestResultsKeepInsertionOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	day := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	require.NoError(t, store.CreateResult(ctx, leaderboard.Result{ID: "r1", UserName: "Jane Doe", Activity: "Push-ups", Value: 30, Date: day}))
	require.NoError(t, store.CreateResult(ctx, leaderboard.Result{ID: "r2", UserName: "John Roe", Activity: "Push-ups", Value: 25, Date: day}))
	require.NoError(t, store.CreateResult(ctx, leaderboard.Result{ID: "r3", UserName: "Jane Doe ", Activity: "Plank", Value: 80.5, Date: day}))

	all, err := store.ListResults(ctx, domain.ResultFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []string{"r1", "r2", "r3"}, []string{all[0].ID, all[1].ID, all[2].ID})
	require.True(t, day.Equal(all[0].Date))

	jane, err := store.ListResults(ctx, domain.ResultFilter{UserName: "  Jane Doe"})
	require.NoError(t, err)
	require.Len(t, jane, 2)

	planks, err := store.ListResults(ctx, domain.ResultFilter{Activity: "Plank"})
	require.NoError(t, err)
	require.Len(t, planks, 1)
	require.Equal(t, 80.5, planks[0].Value)
}

func TestUpdateAndDeleteResult(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.CreateResult(ctx, leaderboard.Result{ID: "r1", UserName: "Jane Doe", Activity: "Push-ups", Value: 30, Date: time.Now()}))

	updated, err := store.UpdateResultValue(ctx, "r1", 35)
	require.NoError(t, err)
	require.NotNil(t, updated)
	require.Equal(t, 35.0, updated.Value)

	missing, err := store.UpdateResultValue(ctx, "nope", 1)
	require.NoError(t, err)
	require.Nil(t, missing)

	deleted, err := store.DeleteResult(ctx, "r1")
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = store.DeleteResult(ctx, "r1")
	require.NoError(t, err)
	require.False(t, deleted)

	got, err := store.GetResult(ctx, "r1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestDeleteUserCascadesByTrimmedName(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	jane := domain.User{ID: "u1", FirstName: "Jane", LastName: "Doe", Gender: leaderboard.GenderFemale, Birthdate: "01/15/1990"}
	require.NoError(t, store.CreateUser(ctx, jane))
	require.NoError(t, store.CreateUser(ctx, domain.User{ID: "u2", FirstName: "John", LastName: "Roe", Gender: leaderboard.GenderMale}))
	require.NoError(t, store.CreateResult(ctx, leaderboard.Result{ID: "r1", UserName: " Jane Doe", Activity: "Push-ups", Value: 30, Date: time.Now()}))
	require.NoError(t, store.CreateResult(ctx, leaderboard.Result{ID: "r2", UserName: "John Roe", Activity: "Push-ups", Value: 20, Date: time.Now()}))

	got, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, leaderboard.GenderFemale, got.Gender)
	require.False(t, got.CreatedAt.IsZero())

	removed, err := store.DeleteUser(ctx, jane)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "u2", users[0].ID)

	remaining, err := store.ListResults(ctx, domain.ResultFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestActivityConfigAndRename(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	empty, err := store.GetActivityConfig(ctx)
	require.NoError(t, err)
	require.Empty(t, empty.List)

	cfg := leaderboard.ActivityConfig{List: []string{"Push-ups", "Plank"}, PRDirection: map[string]bool{"Plank": false}}
	require.NoError(t, store.SaveActivityConfig(ctx, cfg))

	loaded, err := store.GetActivityConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)

	require.NoError(t, store.CreateResult(ctx, leaderboard.Result{ID: "r1", UserName: "Jane Doe", Activity: "Push-ups", Value: 30, Date: time.Now()}))
	require.NoError(t, store.CreateResult(ctx, leaderboard.Result{ID: "r2", UserName: "Jane Doe", Activity: "Plank", Value: 60, Date: time.Now()}))

	renamed, err := store.RenameActivity(ctx, "Push-ups", "Pushups", leaderboard.ActivityConfig{List: []string{"Pushups", "Plank"}})
	require.NoError(t, err)
	require.EqualValues(t, 1, renamed)

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, "Pushups", snap.Results[0].Activity)
	require.Equal(t, "Plank", snap.Results[1].Activity)
	require.Equal(t, []string{"Pushups", "Plank"}, snap.Config.List)
}

func TestLeaderboardDocument(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	none, err := store.LoadLeaderboard(ctx)
	require.NoError(t, err)
	require.Nil(t, none)

	board := leaderboard.Leaderboard{
		"Push-ups": {
			leaderboard.CategoryOverall: {
				Male:   []leaderboard.Entry{},
				Female: []leaderboard.Entry{{UserName: "Jane Doe", Value: 30, Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}},
			},
		},
	}
	stamp := time.Date(2024, 6, 1, 12, 0, 0, 123, time.UTC)
	require.NoError(t, store.SaveLeaderboard(ctx, board, stamp))
	require.NoError(t, store.SaveLeaderboard(ctx, board, stamp), "saving twice overwrites the document")

	stored, err := store.LoadLeaderboard(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.True(t, stamp.Equal(stored.UpdatedAt))
	require.Equal(t, "Jane Doe", stored.Leaderboard["Push-ups"][leaderboard.CategoryOverall].Female[0].UserName)
}

func TestRefresherRunsOnSQLite(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	svc := domain.NewService(store, domain.WithClock(now))
	_, err := svc.SaveActivityConfig(ctx, leaderboard.ActivityConfig{List: []string{"Push-ups"}})
	require.NoError(t, err)
	_, err = svc.RegisterUser(ctx, domain.RegisterUserInput{FirstName: "Jane", LastName: "Doe", Gender: leaderboard.GenderFemale, Birthdate: "01/15/1990"})
	require.NoError(t, err)
	_, err = svc.RecordResult(ctx, domain.RecordResultInput{UserName: "Jane Doe", Activity: "Push-ups", Value: 30})
	require.NoError(t, err)

	refreshed, err := domain.NewRefresher(store, domain.WithRefreshClock(now)).Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, refreshed.Stats.EntriesKept, "overall plus the age bucket")

	stored, err := svc.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, stored.Leaderboard["Push-ups"][leaderboard.Category30To39].Female, 1)
}
