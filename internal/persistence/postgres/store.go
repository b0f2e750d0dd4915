// Package postgres provides the Postgres-backed Store. Every mutation writes
// its change event to the outbox in the same transaction.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/performance/db/postgres/migrations"
	"example.com/performance/internal/domain"
	"example.com/performance/internal/events"
	"example.com/performance/internal/leaderboard"
	"example.com/performance/internal/outbox"
)

const (
	eventVersion       = "v1"
	activitiesDocument = "activities"
)

// Store implements domain.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewStore(pool), nil
}

// Pool exposes the underlying pool for the outbox dispatcher and DLQ manager.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Close implements domain.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	files, err := fs.Glob(migrations.FS, "*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, name := range files {
		contents, err := migrations.FS.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListUsers implements domain.UserRepository.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id, first_name, last_name, gender, birthdate, email, created_at
        FROM users ORDER BY created_at, user_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanUser)
}

// GetUser implements domain.UserRepository.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT user_id, first_name, last_name, gender, birthdate, email, created_at
        FROM users WHERE user_id = $1`, id)
	if err != nil {
		return nil, err
	}
	user, err := pgx.CollectOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser implements domain.UserRepository.
func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO users (user_id, first_name, last_name, gender, birthdate, email, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			user.ID, user.FirstName, user.LastName, string(user.Gender), user.Birthdate, user.Email, user.CreatedAt,
		); err != nil {
			return err
		}
		return enqueueRoster(ctx, tx, user, "created")
	})
}

// DeleteUser implements domain.UserRepository.
func (s *Store) DeleteUser(ctx context.Context, user domain.User) (int64, error) {
	var removed int64
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM users WHERE user_id = $1`, user.ID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM results WHERE btrim(user_name) = $1`, user.FullName())
		if err != nil {
			return err
		}
		removed = tag.RowsAffected()
		return enqueueRoster(ctx, tx, user, "deleted")
	})
	return removed, err
}

func enqueueRoster(ctx context.Context, tx pgx.Tx, user domain.User, change string) error {
	return outbox.Enqueue(ctx, tx, outbox.Event{
		AggregateType: "user",
		AggregateID:   user.ID,
		EventType:     events.TypeRosterChanged,
		PartitionKey:  user.FullName(),
		Payload: events.RosterChanged{
			UserID:     user.ID,
			FullName:   user.FullName(),
			Change:     change,
			OccurredAt: time.Now().UTC(),
		},
	})
}

// ListResults implements domain.ResultRepository.
func (s *Store) ListResults(ctx context.Context, filter domain.ResultFilter) ([]leaderboard.Result, error) {
	rows, err := s.pool.Query(ctx, `SELECT result_id, user_name, activity, value, recorded_at
        FROM results
        WHERE ($1 = '' OR btrim(user_name) = btrim($1))
          AND ($2 = '' OR activity = $2)
        ORDER BY seq`, filter.UserName, filter.Activity)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanResult)
}

// GetResult implements domain.ResultRepository.
func (s *Store) GetResult(ctx context.Context, id string) (*leaderboard.Result, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT result_id, user_name, activity, value, recorded_at
        FROM results WHERE result_id = $1`, id)
	if err != nil {
		return nil, err
	}
	return collectOptionalResult(rows)
}

// CreateResult implements domain.ResultRepository.
func (s *Store) CreateResult(ctx context.Context, result leaderboard.Result) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO results (result_id, user_name, activity, value, recorded_at)
            VALUES ($1,$2,$3,$4,$5)`,
			result.ID, result.UserName, result.Activity, result.Value, result.Date,
		); err != nil {
			return err
		}
		return enqueueResult(ctx, tx, result, events.TypeResultRecorded)
	})
}

// UpdateResultValue implements domain.ResultRepository.
func (s *Store) UpdateResultValue(ctx context.Context, id string, value float64) (*leaderboard.Result, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	var updated *leaderboard.Result
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `UPDATE results SET value = $2 WHERE result_id = $1
            RETURNING result_id, user_name, activity, value, recorded_at`, id, value)
		if err != nil {
			return err
		}
		if updated, err = collectOptionalResult(rows); err != nil || updated == nil {
			return err
		}
		return enqueueResult(ctx, tx, *updated, events.TypeResultUpdated)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteResult implements domain.ResultRepository.
func (s *Store) DeleteResult(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	var deleted *leaderboard.Result
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `DELETE FROM results WHERE result_id = $1
            RETURNING result_id, user_name, activity, value, recorded_at`, id)
		if err != nil {
			return err
		}
		if deleted, err = collectOptionalResult(rows); err != nil || deleted == nil {
			return err
		}
		return enqueueResult(ctx, tx, *deleted, events.TypeResultDeleted)
	})
	if err != nil {
		return false, err
	}
	return deleted != nil, nil
}

func enqueueResult(ctx context.Context, tx pgx.Tx, result leaderboard.Result, eventType string) error {
	return outbox.Enqueue(ctx, tx, outbox.Event{
		AggregateType: "result",
		AggregateID:   result.ID,
		EventType:     eventType,
		PartitionKey:  result.UserName,
		Payload: events.ResultChanged{
			ResultID:   result.ID,
			UserName:   result.UserName,
			Activity:   result.Activity,
			Value:      result.Value,
			OccurredAt: time.Now().UTC(),
			Version:    eventVersion,
		},
	})
}

// GetActivityConfig implements domain.ActivityRepository.
func (s *Store) GetActivityConfig(ctx context.Context) (leaderboard.ActivityConfig, error) {
	return getActivityConfig(ctx, s.pool)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getActivityConfig(ctx context.Context, q queryRower) (leaderboard.ActivityConfig, error) {
	var cfg leaderboard.ActivityConfig
	var body []byte
	err := q.QueryRow(ctx, `SELECT body FROM documents WHERE id = $1`, activitiesDocument).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := json.Unmarshal(body, &cfg); err != nil {
		return cfg, fmt.Errorf("decode activity config: %w", err)
	}
	return cfg, nil
}

// SaveActivityConfig implements domain.ActivityRepository.
func (s *Store) SaveActivityConfig(ctx context.Context, cfg leaderboard.ActivityConfig) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := putDocument(ctx, tx, activitiesDocument, cfg, time.Now().UTC()); err != nil {
			return err
		}
		return outbox.Enqueue(ctx, tx, outbox.Event{
			AggregateType: "activities",
			AggregateID:   activitiesDocument,
			EventType:     events.TypeActivitiesSet,
			PartitionKey:  activitiesDocument,
			Payload:       events.ActivitiesConfigured{List: cfg.List, OccurredAt: time.Now().UTC()},
		})
	})
}

// RenameActivity implements domain.ActivityRepository.
func (s *Store) RenameActivity(ctx context.Context, from, to string, cfg leaderboard.ActivityConfig) (int64, error) {
	var renamed int64
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE results SET activity = $2 WHERE activity = $1`, from, to)
		if err != nil {
			return err
		}
		renamed = tag.RowsAffected()
		if err := putDocument(ctx, tx, activitiesDocument, cfg, time.Now().UTC()); err != nil {
			return err
		}
		return outbox.Enqueue(ctx, tx, outbox.Event{
			AggregateType: "activities",
			AggregateID:   activitiesDocument,
			EventType:     events.TypeActivityRenamed,
			PartitionKey:  activitiesDocument,
			Payload:       events.ActivityRenamed{From: from, To: to, Results: renamed, OccurredAt: time.Now().UTC()},
		})
	})
	return renamed, err
}

// Snapshot implements domain.LeaderboardRepository. All three reads share one
// repeatable-read transaction.
func (s *Store) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return snap, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT user_id, first_name, last_name, gender, birthdate, email, created_at
        FROM users ORDER BY created_at, user_id`)
	if err != nil {
		return snap, err
	}
	if snap.Users, err = pgx.CollectRows(rows, scanUser); err != nil {
		return snap, err
	}

	rows, err = tx.Query(ctx, `SELECT result_id, user_name, activity, value, recorded_at FROM results ORDER BY seq`)
	if err != nil {
		return snap, err
	}
	if snap.Results, err = pgx.CollectRows(rows, scanResult); err != nil {
		return snap, err
	}

	if snap.Config, err = getActivityConfig(ctx, tx); err != nil {
		return snap, err
	}
	return snap, tx.Commit(ctx)
}

// SaveLeaderboard implements domain.LeaderboardRepository.
func (s *Store) SaveLeaderboard(ctx context.Context, board leaderboard.Leaderboard, updatedAt time.Time) error {
	return putDocument(ctx, s.pool, leaderboard.DocumentID, leaderboard.Document{Leaderboards: board}, updatedAt)
}

// LoadLeaderboard implements domain.LeaderboardRepository.
func (s *Store) LoadLeaderboard(ctx context.Context) (*domain.StoredLeaderboard, error) {
	var body []byte
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, `SELECT body, updated_at FROM documents WHERE id = $1`, leaderboard.DocumentID).Scan(&body, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var doc leaderboard.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode leaderboard document: %w", err)
	}
	return &domain.StoredLeaderboard{Leaderboard: doc.Leaderboards, UpdatedAt: updatedAt.UTC()}, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func putDocument(ctx context.Context, db execer, id string, value any, updatedAt time.Time) error {
	body, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `INSERT INTO documents (id, body, updated_at) VALUES ($1, $2, $3)
        ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		id, body, updatedAt)
	return err
}

func scanUser(row pgx.CollectableRow) (domain.User, error) {
	var u domain.User
	var gender string
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &gender, &u.Birthdate, &u.Email, &u.CreatedAt)
	u.Gender = leaderboard.Gender(gender)
	u.CreatedAt = u.CreatedAt.UTC()
	return u, err
}

func scanResult(row pgx.CollectableRow) (leaderboard.Result, error) {
	var r leaderboard.Result
	err := row.Scan(&r.ID, &r.UserName, &r.Activity, &r.Value, &r.Date)
	r.Date = r.Date.UTC()
	return r, err
}

func collectOptionalResult(rows pgx.Rows) (*leaderboard.Result, error) {
	result, err := pgx.CollectOneRow(rows, scanResult)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}
