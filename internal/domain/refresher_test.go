package domain_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/performance/internal/domain"
	"example.com/performance/internal/leaderboard"
	"example.com/performance/internal/logging"
	"example.com/performance/internal/persistence/memory"
)

func seeded(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.SaveActivityConfig(ctx, leaderboard.ActivityConfig{
		List:        []string{"Push-ups", "Plank (seconds)"},
		PRDirection: map[string]bool{"Plank (seconds)": false},
	}))
	require.NoError(t, store.CreateUser(ctx, domain.User{ID: "a", FirstName: "User", LastName: "A", Gender: leaderboard.GenderMale, Birthdate: "01/01/2000"}))
	require.NoError(t, store.CreateUser(ctx, domain.User{ID: "b", FirstName: "User", LastName: "B", Gender: leaderboard.GenderFemale, Birthdate: "03/15/1985"}))
	for i, v := range []float64{10, 15, 12} {
		require.NoError(t, store.CreateResult(ctx, leaderboard.Result{UserName: "User A", Activity: "Push-ups", Value: v, Date: fixedNow.AddDate(0, 0, -i)}))
	}
	for i, v := range []float64{60, 45, 50} {
		require.NoError(t, store.CreateResult(ctx, leaderboard.Result{UserName: "User B", Activity: "Plank (seconds)", Value: v, Date: fixedNow.AddDate(0, 0, -i)}))
	}
	return store
}

func TestRefreshPersistsLeaderboard(t *testing.T) {
	ctx := context.Background()
	store := seeded(t)
	refresher := domain.NewRefresher(store, domain.WithRefreshClock(fixedClock), domain.WithRefreshLogger(logging.Discard()))

	result, err := refresher.Refresh(ctx)
	require.NoError(t, err)
	require.False(t, result.Stale)
	require.Equal(t, fixedNow, result.UpdatedAt)
	require.Equal(t, 2, result.Stats.Activities)

	male := result.Leaderboard["Push-ups"][leaderboard.Category20To29].Male
	require.Len(t, male, 1)
	require.Equal(t, 15.0, male[0].Value)
	require.Equal(t, 45.0, result.Leaderboard["Plank (seconds)"][leaderboard.Category30To39].Female[0].Value)

	stored, err := store.LoadLeaderboard(ctx)
	require.NoError(t, err)
	require.Equal(t, fixedNow, stored.UpdatedAt)

	want, err := json.Marshal(result.Leaderboard)
	require.NoError(t, err)
	got, err := json.Marshal(stored.Leaderboard)
	require.NoError(t, err)
	require.JSONEq(t, string(want), string(got))
}

func TestRefreshIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := seeded(t)
	refresher := domain.NewRefresher(store, domain.WithRefreshClock(fixedClock), domain.WithRefreshLogger(logging.Discard()))

	_, err := refresher.Refresh(ctx)
	require.NoError(t, err)
	first, err := store.LoadLeaderboard(ctx)
	require.NoError(t, err)

	_, err = refresher.Refresh(ctx)
	require.NoError(t, err)
	second, err := store.LoadLeaderboard(ctx)
	require.NoError(t, err)

	a, _ := json.Marshal(first.Leaderboard)
	b, _ := json.Marshal(second.Leaderboard)
	require.Equal(t, string(a), string(b))
}

type failingSnapshot struct {
	*memory.Store
	fail  atomic.Bool
	calls atomic.Int32
	gate  chan struct{}
}

func (f *failingSnapshot) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.fail.Load() {
		return domain.Snapshot{}, errors.New("connection refused")
	}
	return f.Store.Snapshot(ctx)
}

func TestRefreshOrLastFallsBackToPersisted(t *testing.T) {
	ctx := context.Background()
	store := &failingSnapshot{Store: seeded(t)}
	refresher := domain.NewRefresher(store, domain.WithRefreshClock(fixedClock), domain.WithRefreshLogger(logging.Discard()))

	store.fail.Store(true)
	_, err := refresher.RefreshOrLast(ctx)
	require.Error(t, err, "nothing persisted yet so the refresh error surfaces")

	store.fail.Store(false)
	_, err = refresher.Refresh(ctx)
	require.NoError(t, err)

	store.fail.Store(true)
	result, err := refresher.RefreshOrLast(ctx)
	require.NoError(t, err)
	require.True(t, result.Stale)
	require.Equal(t, fixedNow, result.UpdatedAt)
	require.Contains(t, result.Leaderboard, "Push-ups")
}

func TestConcurrentRefreshesAreCoalesced(t *testing.T) {
	ctx := context.Background()
	store := &failingSnapshot{Store: seeded(t), gate: make(chan struct{})}
	refresher := domain.NewRefresher(store, domain.WithRefreshClock(fixedClock), domain.WithRefreshLogger(logging.Discard()))

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := refresher.Refresh(ctx)
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return store.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(store.gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.LessOrEqual(t, store.calls.Load(), int32(4))
	require.GreaterOrEqual(t, store.calls.Load(), int32(1))
}

type countingInvalidator struct {
	mu   sync.Mutex
	keys []string
}

func (c *countingInvalidator) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, key)
	return nil
}

func TestRefreshInvalidatesCache(t *testing.T) {
	inv := &countingInvalidator{}
	refresher := domain.NewRefresher(seeded(t), domain.WithRefreshClock(fixedClock), domain.WithRefreshLogger(logging.Discard()), domain.WithInvalidator(inv))

	_, err := refresher.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{leaderboard.DocumentID}, inv.keys)
}

func TestTriggerRefreshesInBackground(t *testing.T) {
	store := seeded(t)
	refresher := domain.NewRefresher(store, domain.WithRefreshClock(fixedClock), domain.WithRefreshLogger(logging.Discard()))

	refresher.Trigger(time.Second)(context.Background(), "result.recorded")

	require.Eventually(t, func() bool {
		stored, err := store.LoadLeaderboard(context.Background())
		return err == nil && stored != nil
	}, time.Second, 10*time.Millisecond)
}

type gatedSnapshot struct {
	*memory.Store
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

// Snapshot blocks the first call until release is closed.
func (g *gatedSnapshot) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.release
	}
	return g.Store.Snapshot(ctx)
}

func TestRefreshDuringInFlightRefreshSeesLaterWrites(t *testing.T) {
	ctx := context.Background()
	store := &gatedSnapshot{Store: seeded(t), entered: make(chan struct{}), release: make(chan struct{})}
	refresher := domain.NewRefresher(store, domain.WithRefreshClock(fixedClock), domain.WithRefreshLogger(logging.Discard()))

	first := make(chan error, 1)
	go func() {
		_, err := refresher.Refresh(ctx)
		first <- err
	}()
	<-store.entered

	require.NoError(t, store.CreateResult(ctx, leaderboard.Result{ID: "r2", UserName: "User A", Activity: "Push-ups", Value: 99, Date: fixedNow}))

	second := make(chan *domain.RefreshResult, 1)
	secondErr := make(chan error, 1)
	go func() {
		result, err := refresher.Refresh(ctx)
		secondErr <- err
		second <- result
	}()
	time.Sleep(20 * time.Millisecond)
	close(store.release)

	require.NoError(t, <-first)
	require.NoError(t, <-secondErr)
	result := <-second
	require.Equal(t, 99.0, result.Leaderboard["Push-ups"][leaderboard.CategoryOverall].Male[0].Value)

	stored, err := store.LoadLeaderboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 99.0, stored.Leaderboard["Push-ups"][leaderboard.CategoryOverall].Male[0].Value)
	require.Equal(t, int32(2), store.calls.Load(), "the second caller runs its own pass")
}
