package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"example.com/performance/internal/cache"
	"example.com/performance/internal/leaderboard"
	"example.com/performance/internal/observability"
)

// RefreshResult is what a refresh produced, or the fallback it served.
type RefreshResult struct {
	Leaderboard leaderboard.Leaderboard
	UpdatedAt   time.Time
	Stats       leaderboard.Stats
	// Stale is set when the recomputation failed and the last persisted
	// leaderboard was returned instead.
	Stale bool

	generation uint64
}

// Refresher recomputes the leaderboard from a store snapshot and persists it.
// Concurrent calls within one process share a recomputation only when its
// snapshot was taken after they were issued.
type Refresher struct {
	repo        LeaderboardRepository
	clock       Clock
	logger      *slog.Logger
	invalidator cache.Invalidator
	group       singleflight.Group
	// requested counts Refresh calls. A recomputation records the count it
	// observed before reading its snapshot.
	requested atomic.Uint64
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithRefreshClock overrides time.Now as the age reference and write timestamp.
func WithRefreshClock(clock Clock) RefresherOption {
	return func(r *Refresher) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithRefreshLogger sets the logger used for refresh diagnostics.
func WithRefreshLogger(logger *slog.Logger) RefresherOption {
	return func(r *Refresher) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithInvalidator purges edge caches after every successful persist.
func WithInvalidator(inv cache.Invalidator) RefresherOption {
	return func(r *Refresher) {
		if inv != nil {
			r.invalidator = inv
		}
	}
}

// NewRefresher constructs a Refresher.
func NewRefresher(repo LeaderboardRepository, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		repo:        repo,
		clock:       time.Now,
		logger:      slog.Default(),
		invalidator: cache.NoopInvalidator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh reads every input, recomputes the leaderboard and overwrites the
// persisted document. A call joins an in-flight recomputation only if that
// recomputation read its snapshot after the call started; otherwise it runs
// one more pass once the current one finishes.
func (r *Refresher) Refresh(ctx context.Context) (*RefreshResult, error) {
	want := r.requested.Add(1)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err, shared := r.group.Do(leaderboard.DocumentID, func() (any, error) {
			return r.refresh(ctx)
		})
		if err != nil {
			return nil, err
		}
		result := v.(*RefreshResult)
		if result.generation >= want {
			if shared {
				r.logger.Debug("leaderboard refresh coalesced")
			}
			return result, nil
		}
		// The joined recomputation read its snapshot before this call and
		// may miss writes that preceded it.
		r.logger.Debug("joined refresh predates request, running again")
	}
}

func (r *Refresher) refresh(ctx context.Context) (*RefreshResult, error) {
	start := time.Now()
	now := r.clock()
	generation := r.requested.Load()

	snapshot, err := r.repo.Snapshot(ctx)
	if err != nil {
		observability.RecordRefresh(observability.OutcomeError, time.Since(start))
		return nil, fmt.Errorf("read leaderboard inputs: %w", err)
	}

	board, stats := leaderboard.ComputeWithStats(snapshot.Results, Athletes(snapshot.Users), snapshot.Config, now)

	updatedAt := now.UTC()
	if err := r.repo.SaveLeaderboard(ctx, board, updatedAt); err != nil {
		observability.RecordRefresh(observability.OutcomeError, time.Since(start))
		return nil, fmt.Errorf("persist leaderboard: %w", err)
	}

	observability.RecordRefresh(observability.OutcomeOK, time.Since(start))
	observability.RecordLeaderboardPersisted(updatedAt, stats.EntriesKept)
	observability.RecordDropped("unresolved", stats.Unresolved)
	observability.RecordDropped("unranked", stats.Unranked)
	observability.RecordDropped("non_finite", stats.NonFinite)

	if stats.Unresolved > 0 {
		r.logger.Debug("results reference users missing from the roster", slog.Int("count", stats.Unresolved))
	}
	r.logger.Info("leaderboard refreshed",
		slog.Int("activities", stats.Activities),
		slog.Int("entries", stats.EntriesKept),
		slog.Int("results", len(snapshot.Results)),
		slog.Int("users", len(snapshot.Users)),
		slog.Duration("took", time.Since(start)),
	)

	if err := r.invalidator.Invalidate(ctx, leaderboard.DocumentID); err != nil {
		r.logger.Warn("cache invalidation failed", slog.String("error", err.Error()))
	}

	return &RefreshResult{Leaderboard: board, UpdatedAt: updatedAt, Stats: stats, generation: generation}, nil
}

// RefreshOrLast refreshes and, when that fails, serves the last persisted
// leaderboard marked stale. The refresh error is returned only when there is
// nothing to fall back to.
func (r *Refresher) RefreshOrLast(ctx context.Context) (*RefreshResult, error) {
	result, err := r.Refresh(ctx)
	if err == nil {
		return result, nil
	}

	r.logger.Warn("leaderboard refresh failed, serving last persisted", slog.String("error", err.Error()))
	stored, loadErr := r.repo.LoadLeaderboard(ctx)
	if loadErr != nil || stored == nil {
		return nil, err
	}
	observability.RecordRefresh(observability.OutcomeStale, 0)
	return &RefreshResult{Leaderboard: stored.Leaderboard, UpdatedAt: stored.UpdatedAt, Stale: true}, nil
}

// Trigger runs a refresh in the background bounded by timeout. It is used as
// a ChangeHook when no event pipeline is configured.
func (r *Refresher) Trigger(timeout time.Duration) ChangeHook {
	return func(_ context.Context, eventType string) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if _, err := r.Refresh(ctx); err != nil {
				r.logger.Error("background refresh failed", slog.String("event_type", eventType), slog.String("error", err.Error()))
			}
		}()
	}
}
