// Package memory provides an in-process Store for local development and tests.
package memory

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/performance/internal/domain"
	"example.com/performance/internal/leaderboard"
)

// Store keeps users, results and documents in memory. Insertion order is
// preserved so aggregation sees the same input order on every read.
type Store struct {
	mu        sync.RWMutex
	users     []domain.User
	results   []leaderboard.Result
	config    leaderboard.ActivityConfig
	board     []byte
	boardTime time.Time
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Close implements domain.Store.
func (s *Store) Close() error { return nil }

// ListUsers implements domain.UserRepository.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.users), nil
}

// GetUser implements domain.UserRepository.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, nil
}

// CreateUser implements domain.UserRepository.
func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(user.ID) == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users = append(s.users, user)
	return nil
}

// DeleteUser implements domain.UserRepository.
func (s *Store) DeleteUser(ctx context.Context, user domain.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = slices.DeleteFunc(s.users, func(u domain.User) bool { return u.ID == user.ID })

	name := user.FullName()
	before := len(s.results)
	s.results = slices.DeleteFunc(s.results, func(r leaderboard.Result) bool {
		return domain.SameName(r.UserName, name)
	})
	return int64(before - len(s.results)), nil
}

// ListResults implements domain.ResultRepository.
func (s *Store) ListResults(ctx context.Context, filter domain.ResultFilter) ([]leaderboard.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]leaderboard.Result, 0)
	for _, r := range s.results {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetResult implements domain.ResultRepository.
func (s *Store) GetResult(ctx context.Context, id string) (*leaderboard.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		r := s.results[i]
		return &r, nil
	}
	return nil, nil
}

// CreateResult implements domain.ResultRepository.
func (s *Store) CreateResult(ctx context.Context, result leaderboard.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(result.ID) == "" {
		result.ID = uuid.NewString()
	}
	s.results = append(s.results, result)
	return nil
}

// UpdateResultValue implements domain.ResultRepository.
func (s *Store) UpdateResultValue(ctx context.Context, id string, value float64) (*leaderboard.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, nil
	}
	s.results[i].Value = value
	r := s.results[i]
	return &r, nil
}

// DeleteResult implements domain.ResultRepository.
func (s *Store) DeleteResult(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}
	s.results = slices.Delete(s.results, i, i+1)
	return true, nil
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.results, func(r leaderboard.Result) bool { return r.ID == id })
}

// GetActivityConfig implements domain.ActivityRepository.
func (s *Store) GetActivityConfig(ctx context.Context) (leaderboard.ActivityConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneConfig(s.config), nil
}

// SaveActivityConfig implements domain.ActivityRepository.
func (s *Store) SaveActivityConfig(ctx context.Context, cfg leaderboard.ActivityConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cloneConfig(cfg)
	return nil
}

// RenameActivity implements domain.ActivityRepository.
func (s *Store) RenameActivity(ctx context.Context, from, to string, cfg leaderboard.ActivityConfig) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for i := range s.results {
		if s.results[i].Activity == from {
			s.results[i].Activity = to
			count++
		}
	}
	s.config = cloneConfig(cfg)
	return count, nil
}

// Snapshot implements domain.LeaderboardRepository.
func (s *Store) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.Snapshot{
		Users:   slices.Clone(s.users),
		Results: slices.Clone(s.results),
		Config:  cloneConfig(s.config),
	}, nil
}

// SaveLeaderboard implements domain.LeaderboardRepository. The document is
// kept serialised so readers never share maps with the writer.
func (s *Store) SaveLeaderboard(ctx context.Context, board leaderboard.Leaderboard, updatedAt time.Time) error {
	body, err := json.Marshal(leaderboard.Document{Leaderboards: board})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.board = body
	s.boardTime = updatedAt
	return nil
}

// LoadLeaderboard implements domain.LeaderboardRepository.
func (s *Store) LoadLeaderboard(ctx context.Context) (*domain.StoredLeaderboard, error) {
	s.mu.RLock()
	body, updatedAt := s.board, s.boardTime
	s.mu.RUnlock()

	if body == nil {
		return nil, nil
	}
	var doc leaderboard.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	return &domain.StoredLeaderboard{Leaderboard: doc.Leaderboards, UpdatedAt: updatedAt}, nil
}

func cloneConfig(cfg leaderboard.ActivityConfig) leaderboard.ActivityConfig {
	out := leaderboard.ActivityConfig{List: slices.Clone(cfg.List)}
	if cfg.PRDirection != nil {
		out.PRDirection = make(map[string]bool, len(cfg.PRDirection))
		for k, v := range cfg.PRDirection {
			out.PRDirection[k] = v
		}
	}
	return out
}
