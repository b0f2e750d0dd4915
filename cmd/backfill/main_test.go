package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/performance/internal/domain"
	"example.com/performance/internal/leaderboard"
	"example.com/performance/internal/persistence/sqlite"
)

func seedSQLite(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "performance.db")

	store, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveActivityConfig(ctx, leaderboard.ActivityConfig{List: []string{"Push-ups"}}))
	require.NoError(t, store.CreateUser(ctx, domain.User{ID: "u1", FirstName: "Jane", LastName: "Doe", Gender: leaderboard.GenderFemale, Birthdate: "01/15/1990"}))
	require.NoError(t, store.CreateUser(ctx, domain.User{ID: "u2", FirstName: "John", LastName: "Roe", Gender: leaderboard.GenderMale}))
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateResult(ctx, leaderboard.Result{ID: "r1", UserName: "Jane Doe", Activity: "Push-ups", Value: 30, Date: day}))
	require.NoError(t, store.CreateResult(ctx, leaderboard.Result{ID: "r2", UserName: "John Roe", Activity: "Push-ups", Value: 25, Date: day}))
	return path
}

func writeCredentials(t *testing.T, dbPath string) string {
	t.Helper()
	for _, key := range []string{"STORE_DRIVER", "SQLITE_PATH", "LOG_LEVEL"} {
		_, present := os.LookupEnv(key)
		require.False(t, present, "%s must not be set for this test", key)
		t.Cleanup(func() { _ = os.Unsetenv(key) })
	}

	file := filepath.Join(t.TempDir(), "credentials.env")
	body := fmt.Sprintf("STORE_DRIVER=sqlite\nSQLITE_PATH=%s\nLOG_LEVEL=error\n", dbPath)
	require.NoError(t, os.WriteFile(file, []byte(body), 0o600))
	return file
}

func TestBackfillPersistsLeaderboard(t *testing.T) {
	dbPath := seedSQLite(t)
	creds := writeCredentials(t, dbPath)

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-credentials", creds}, &stdout, &stderr))
	require.Empty(t, stdout.String())

	store, err := sqlite.Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer store.Close()

	stored, err := store.LoadLeaderboard(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	overall := stored.Leaderboard["Push-ups"][leaderboard.CategoryOverall]
	require.Len(t, overall.Female, 1)
	require.Len(t, overall.Male, 1)
	require.Equal(t, "John Roe", overall.Male[0].UserName)
}

func TestBackfillDryRunPrintsWithoutPersisting(t *testing.T) {
	dbPath := seedSQLite(t)
	creds := writeCredentials(t, dbPath)

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-credentials", creds, "-dry-run"}, &stdout, &stderr))

	var board leaderboard.Leaderboard
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &board))
	require.Equal(t, 30.0, board["Push-ups"][leaderboard.CategoryOverall].Female[0].Value)

	store, err := sqlite.Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer store.Close()
	stored, err := store.LoadLeaderboard(context.Background())
	require.NoError(t, err)
	require.Nil(t, stored)
}

func TestBackfillFailsOnMissingCredentials(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-credentials", filepath.Join(t.TempDir(), "missing.env")}, &stdout, &stderr)
	require.ErrorContains(t, err, "load env file")
}

func TestBackfillRejectsUnknownDriver(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-driver", "mongo"}, &stdout, &stderr)
	require.ErrorContains(t, err, "unknown STORE_DRIVER")
}
