package domain

import (
	"context"
	"time"

	"example.com/performance/internal/leaderboard"
)

// ResultFilter narrows ListResults. Empty fields match everything; UserName
// is compared after trimming.
type ResultFilter struct {
	UserName string
	Activity string
}

// Matches reports whether r passes the filter.
func (f ResultFilter) Matches(r leaderboard.Result) bool {
	if f.UserName != "" && !SameName(f.UserName, r.UserName) {
		return false
	}
	if f.Activity != "" && f.Activity != r.Activity {
		return false
	}
	return true
}

// Snapshot is a consistent read of every input Compute needs.
type Snapshot struct {
	Users   []User
	Results []leaderboard.Result
	Config  leaderboard.ActivityConfig
}

// StoredLeaderboard is the persisted leaderboard document with its write time.
type StoredLeaderboard struct {
	Leaderboard leaderboard.Leaderboard
	UpdatedAt   time.Time
}

// UserRepository persists the roster. Lookups return nil, nil when absent.
type UserRepository interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, user User) error
	// DeleteUser removes the user and every result recorded under its full
	// name, returning the number of results removed.
	DeleteUser(ctx context.Context, user User) (int64, error)
}

// ResultRepository persists results. Lookups return nil, nil when absent.
type ResultRepository interface {
	ListResults(ctx context.Context, filter ResultFilter) ([]leaderboard.Result, error)
	GetResult(ctx context.Context, id string) (*leaderboard.Result, error)
	CreateResult(ctx context.Context, result leaderboard.Result) error
	UpdateResultValue(ctx context.Context, id string, value float64) (*leaderboard.Result, error)
	DeleteResult(ctx context.Context, id string) (bool, error)
}

// ActivityRepository persists the activity configuration document.
type ActivityRepository interface {
	// GetActivityConfig returns the zero config when none was saved.
	GetActivityConfig(ctx context.Context) (leaderboard.ActivityConfig, error)
	SaveActivityConfig(ctx context.Context, cfg leaderboard.ActivityConfig) error
	// RenameActivity rewrites every result recorded under from and stores
	// cfg in the same unit of work. It returns the number of results changed.
	RenameActivity(ctx context.Context, from, to string, cfg leaderboard.ActivityConfig) (int64, error)
}

// LeaderboardRepository reads inputs and persists computed leaderboards.
type LeaderboardRepository interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	SaveLeaderboard(ctx context.Context, board leaderboard.Leaderboard, updatedAt time.Time) error
	// LoadLeaderboard returns nil, nil when nothing was persisted yet.
	LoadLeaderboard(ctx context.Context) (*StoredLeaderboard, error)
}

// Store is implemented by every persistence driver.
type Store interface {
	UserRepository
	ResultRepository
	ActivityRepository
	LeaderboardRepository
	Close() error
}
