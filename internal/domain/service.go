// Package domain defines the business logic around results, the roster,
// activity configuration and leaderboard refreshes.
package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/performance/internal/events"
	"example.com/performance/internal/leaderboard"
	"example.com/performance/internal/observability"
)

var (
	// ErrValidation marks rejected input. Wrapped errors carry the detail.
	ErrValidation = errors.New("validation failed")
	// ErrUserNotFound is returned when a roster member cannot be located.
	ErrUserNotFound = errors.New("user not found")
	// ErrResultNotFound is returned when a result cannot be located.
	ErrResultNotFound = errors.New("result not found")
	// ErrLeaderboardNotFound is returned before the first refresh, or for an
	// activity absent from the persisted leaderboard.
	ErrLeaderboardNotFound = errors.New("leaderboard not found")
)

// Clock returns the current time. Tests inject a fixed one.
type Clock func() time.Time

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ChangeHook observes committed mutations. eventType is one of the events
// package Type constants.
type ChangeHook func(ctx context.Context, eventType string)

// Service orchestrates roster, result and activity workflows.
type Service struct {
	store    Store
	clock    Clock
	onChange ChangeHook
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides time.Now.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithChangeHook registers a hook run after every committed mutation.
func WithChangeHook(hook ChangeHook) ServiceOption {
	return func(s *Service) {
		s.onChange = hook
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{store: store, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) changed(ctx context.Context, eventType string) {
	if s.onChange != nil {
		s.onChange(ctx, eventType)
	}
}

// RegisterUserInput captures the payload from the API layer.
type RegisterUserInput struct {
	FirstName string
	LastName  string
	Gender    leaderboard.Gender
	Birthdate string
	Email     string
}

// RegisterUser validates and adds a roster member. Full names must be unique
// because results reference users by name.
func (s *Service) RegisterUser(ctx context.Context, input RegisterUserInput) (*User, error) {
	user := User{
		ID:        uuid.NewString(),
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Gender:    input.Gender,
		Birthdate: strings.TrimSpace(input.Birthdate),
		Email:     strings.TrimSpace(input.Email),
		CreatedAt: s.clock().UTC(),
	}
	if user.FirstName == "" || user.LastName == "" {
		return nil, invalid("firstName and lastName are required")
	}
	switch user.Gender {
	case leaderboard.GenderMale, leaderboard.GenderFemale, leaderboard.GenderNonBinary, "":
	default:
		return nil, invalid("gender %q is not one of Male, Female, Non-Binary", user.Gender)
	}
	if user.Birthdate != "" {
		if _, ok := leaderboard.AgeFromBirthdate(user.Birthdate, s.clock()); !ok {
			return nil, invalid("birthdate %q must be a past MM/DD/YYYY date", user.Birthdate)
		}
	}

	existing, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range existing {
		if u.FullName() == user.FullName() {
			return nil, invalid("a user named %q already exists", user.FullName())
		}
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.changed(ctx, events.TypeRosterChanged)
	return &user, nil
}

// ListUsers returns the roster.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.store.ListUsers(ctx)
}

// DeleteUser removes a user and cascades to their results.
func (s *Service) DeleteUser(ctx context.Context, id string) (int64, error) {
	if strings.TrimSpace(id) == "" {
		return 0, invalid("user id is required")
	}
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, ErrUserNotFound
	}
	removed, err := s.store.DeleteUser(ctx, *user)
	if err != nil {
		return 0, err
	}
	s.changed(ctx, events.TypeRosterChanged)
	return removed, nil
}

// RecordResultInput captures the payload from the API layer.
type RecordResultInput struct {
	UserName string
	Activity string
	Value    float64
	Date     time.Time
}

// RecordResult validates and stores a measurement. The user must be on the
// roster and the activity configured.
func (s *Service) RecordResult(ctx context.Context, input RecordResultInput) (*leaderboard.Result, error) {
	name := strings.TrimSpace(input.UserName)
	activity := strings.TrimSpace(input.Activity)
	if name == "" {
		return nil, invalid("userName is required")
	}
	if activity == "" {
		return nil, invalid("activity is required")
	}
	if err := checkValue(input.Value); err != nil {
		return nil, err
	}

	cfg, err := s.store.GetActivityConfig(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.Has(activity) {
		return nil, invalid("activity %q is not configured", activity)
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if !onRoster(users, name) {
		return nil, ErrUserNotFound
	}

	date := input.Date
	if date.IsZero() {
		date = s.clock()
	}
	result := leaderboard.Result{
		ID:       uuid.NewString(),
		UserName: name,
		Activity: activity,
		Value:    input.Value,
		Date:     date.UTC(),
	}
	if err := s.store.CreateResult(ctx, result); err != nil {
		return nil, err
	}
	observability.RecordResultRecorded(result.Date)
	s.changed(ctx, events.TypeResultRecorded)
	return &result, nil
}

// ListResults returns results matching filter.
func (s *Service) ListResults(ctx context.Context, filter ResultFilter) ([]leaderboard.Result, error) {
	return s.store.ListResults(ctx, filter)
}

// UpdateResultValue edits only the value of a result.
func (s *Service) UpdateResultValue(ctx context.Context, id string, value float64) (*leaderboard.Result, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("result id is required")
	}
	if err := checkValue(value); err != nil {
		return nil, err
	}
	result, err := s.store.UpdateResultValue(ctx, id, value)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrResultNotFound
	}
	s.changed(ctx, events.TypeResultUpdated)
	return result, nil
}

// DeleteResult removes a single result.
func (s *Service) DeleteResult(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("result id is required")
	}
	deleted, err := s.store.DeleteResult(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrResultNotFound
	}
	s.changed(ctx, events.TypeResultDeleted)
	return nil
}

// AthleteRecords returns the personal record per activity for the named athlete.
func (s *Service) AthleteRecords(ctx context.Context, name string) (map[string]leaderboard.Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("athlete name is required")
	}
	results, err := s.store.ListResults(ctx, ResultFilter{UserName: name})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		users, err := s.store.ListUsers(ctx)
		if err != nil {
			return nil, err
		}
		if !onRoster(users, name) {
			return nil, ErrUserNotFound
		}
	}
	cfg, err := s.store.GetActivityConfig(ctx)
	if err != nil {
		return nil, err
	}
	return leaderboard.PersonalRecords(results, cfg), nil
}

// ActivityConfig returns the stored activity configuration.
func (s *Service) ActivityConfig(ctx context.Context) (leaderboard.ActivityConfig, error) {
	cfg, err := s.store.GetActivityConfig(ctx)
	if err != nil {
		return leaderboard.ActivityConfig{}, err
	}
	if cfg.List == nil {
		cfg.List = []string{}
	}
	if cfg.PRDirection == nil {
		cfg.PRDirection = map[string]bool{}
	}
	return cfg, nil
}

// SaveActivityConfig replaces the configuration after normalising names.
func (s *Service) SaveActivityConfig(ctx context.Context, cfg leaderboard.ActivityConfig) (leaderboard.ActivityConfig, error) {
	normalized, err := normalizeConfig(cfg)
	if err != nil {
		return leaderboard.ActivityConfig{}, err
	}
	if err := s.store.SaveActivityConfig(ctx, normalized); err != nil {
		return leaderboard.ActivityConfig{}, err
	}
	s.changed(ctx, events.TypeActivitiesSet)
	return normalized, nil
}

// RenameActivity renames an activity in the configuration and in every result.
func (s *Service) RenameActivity(ctx context.Context, from, to string) (int64, error) {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" || to == "" {
		return 0, invalid("from and to are required")
	}
	if from == to {
		return 0, invalid("from and to are identical")
	}

	cfg, err := s.store.GetActivityConfig(ctx)
	if err != nil {
		return 0, err
	}
	if !cfg.Has(from) {
		return 0, invalid("activity %q is not configured", from)
	}
	if cfg.Has(to) {
		return 0, invalid("activity %q already exists", to)
	}

	renamed := leaderboard.ActivityConfig{
		List:        make([]string, 0, len(cfg.List)),
		PRDirection: make(map[string]bool, len(cfg.PRDirection)),
	}
	for _, name := range cfg.List {
		if name == from {
			name = to
		}
		renamed.List = append(renamed.List, name)
	}
	for name, higher := range cfg.PRDirection {
		if name == from {
			name = to
		}
		renamed.PRDirection[name] = higher
	}

	count, err := s.store.RenameActivity(ctx, from, to, renamed)
	if err != nil {
		return 0, err
	}
	s.changed(ctx, events.TypeActivityRenamed)
	return count, nil
}

// Leaderboard returns the last persisted leaderboard.
func (s *Service) Leaderboard(ctx context.Context) (*StoredLeaderboard, error) {
	stored, err := s.store.LoadLeaderboard(ctx)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrLeaderboardNotFound
	}
	return stored, nil
}

// ActivityLeaderboard returns the persisted cells of one activity.
func (s *Service) ActivityLeaderboard(ctx context.Context, activity string) (map[leaderboard.AgeCategory]leaderboard.Cell, time.Time, error) {
	stored, err := s.Leaderboard(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	cells, ok := stored.Leaderboard[activity]
	if !ok {
		return nil, time.Time{}, ErrLeaderboardNotFound
	}
	return cells, stored.UpdatedAt, nil
}

func checkValue(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid("value must be a finite number")
	}
	return nil
}

func onRoster(users []User, name string) bool {
	for _, u := range users {
		if SameName(u.FullName(), name) {
			return true
		}
	}
	return false
}

func normalizeConfig(cfg leaderboard.ActivityConfig) (leaderboard.ActivityConfig, error) {
	out := leaderboard.ActivityConfig{
		List:        make([]string, 0, len(cfg.List)),
		PRDirection: make(map[string]bool, len(cfg.PRDirection)),
	}
	seen := make(map[string]struct{}, len(cfg.List))
	for _, name := range cfg.List {
		name = strings.TrimSpace(name)
		if name == "" {
			return leaderboard.ActivityConfig{}, invalid("activity names must not be empty")
		}
		if _, dup := seen[name]; dup {
			return leaderboard.ActivityConfig{}, invalid("activity %q is listed twice", name)
		}
		seen[name] = struct{}{}
		out.List = append(out.List, name)
	}
	for name, higher := range cfg.PRDirection {
		name = strings.TrimSpace(name)
		if _, ok := seen[name]; !ok {
			return leaderboard.ActivityConfig{}, invalid("prDirection names unknown activity %q", name)
		}
		out.PRDirection[name] = higher
	}
	return out, nil
}
