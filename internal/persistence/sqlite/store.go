// Package sqlite provides a single-file Store for deployments without Postgres.
// It has no outbox; callers refresh through a domain.ChangeHook instead.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"example.com/performance/internal/domain"
	"example.com/performance/internal/leaderboard"
)

const activitiesDocument = "activities"

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id    TEXT PRIMARY KEY,
    first_name TEXT NOT NULL,
    last_name  TEXT NOT NULL,
    gender     TEXT NOT NULL DEFAULT '',
    birthdate  TEXT NOT NULL DEFAULT '',
    email      TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    result_id   TEXT NOT NULL UNIQUE,
    user_name   TEXT NOT NULL,
    activity    TEXT NOT NULL,
    value       REAL NOT NULL,
    recorded_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS results_user_name_idx ON results (trim(user_name));
CREATE INDEX IF NOT EXISTS results_activity_idx ON results (activity);

CREATE TABLE IF NOT EXISTS documents (
    id         TEXT PRIMARY KEY,
    body       TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`

// Store implements domain.Store on database/sql with the pure-Go sqlite driver.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// One connection keeps :memory: databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close implements domain.Store.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const userColumns = `user_id, first_name, last_name, gender, birthdate, email, created_at`

const resultColumns = `result_id, user_name, activity, value, recorded_at`

// ListUsers implements domain.UserRepository.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	return listUsers(ctx, s.db)
}

func listUsers(ctx context.Context, q querier) ([]domain.User, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUser implements domain.UserRepository.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// CreateUser implements domain.UserRepository.
func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?,?,?,?,?,?,?)`,
		user.ID, user.FirstName, user.LastName, string(user.Gender), user.Birthdate, user.Email, formatTime(user.CreatedAt))
	return err
}

// DeleteUser implements domain.UserRepository.
func (s *Store) DeleteUser(ctx context.Context, user domain.User) (int64, error) {
	var removed int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE user_id = ?`, user.ID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM results WHERE trim(user_name) = ?`, user.FullName())
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

// ListResults implements domain.ResultRepository.
func (s *Store) ListResults(ctx context.Context, filter domain.ResultFilter) ([]leaderboard.Result, error) {
	return listResults(ctx, s.db, filter)
}

func listResults(ctx context.Context, q querier, filter domain.ResultFilter) ([]leaderboard.Result, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+resultColumns+` FROM results
        WHERE (?1 = '' OR trim(user_name) = trim(?1))
          AND (?2 = '' OR activity = ?2)
        ORDER BY seq`, filter.UserName, filter.Activity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]leaderboard.Result, 0)
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetResult implements domain.ResultRepository.
func (s *Store) GetResult(ctx context.Context, id string) (*leaderboard.Result, error) {
	return getResult(ctx, s.db, id)
}

func getResult(ctx context.Context, q querier, id string) (*leaderboard.Result, error) {
	r, err := scanResult(q.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM results WHERE result_id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// CreateResult implements domain.ResultRepository.
func (s *Store) CreateResult(ctx context.Context, result leaderboard.Result) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO results (`+resultColumns+`) VALUES (?,?,?,?,?)`,
		result.ID, result.UserName, result.Activity, result.Value, formatTime(result.Date))
	return err
}

// UpdateResultValue implements domain.ResultRepository.
func (s *Store) UpdateResultValue(ctx context.Context, id string, value float64) (*leaderboard.Result, error) {
	var updated *leaderboard.Result
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE results SET value = ? WHERE result_id = ?`, value, id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return err
		}
		updated, err = getResult(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteResult implements domain.ResultRepository.
func (s *Store) DeleteResult(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE result_id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetActivityConfig implements domain.ActivityRepository.
func (s *Store) GetActivityConfig(ctx context.Context) (leaderboard.ActivityConfig, error) {
	return getActivityConfig(ctx, s.db)
}

func getActivityConfig(ctx context.Context, q querier) (leaderboard.ActivityConfig, error) {
	var cfg leaderboard.ActivityConfig
	body, _, err := getDocument(ctx, q, activitiesDocument)
	if err != nil || body == nil {
		return cfg, err
	}
	if err := json.Unmarshal(body, &cfg); err != nil {
		return cfg, fmt.Errorf("decode activity config: %w", err)
	}
	return cfg, nil
}

// SaveActivityConfig implements domain.ActivityRepository.
func (s *Store) SaveActivityConfig(ctx context.Context, cfg leaderboard.ActivityConfig) error {
	return putDocument(ctx, s.db, activitiesDocument, cfg, time.Now().UTC())
}

// RenameActivity implements domain.ActivityRepository.
func (s *Store) RenameActivity(ctx context.Context, from, to string, cfg leaderboard.ActivityConfig) (int64, error) {
	var renamed int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE results SET activity = ? WHERE activity = ?`, to, from)
		if err != nil {
			return err
		}
		if renamed, err = res.RowsAffected(); err != nil {
			return err
		}
		return putDocument(ctx, tx, activitiesDocument, cfg, time.Now().UTC())
	})
	return renamed, err
}

// Snapshot implements domain.LeaderboardRepository.
func (s *Store) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if snap.Users, err = listUsers(ctx, tx); err != nil {
			return err
		}
		if snap.Results, err = listResults(ctx, tx, domain.ResultFilter{}); err != nil {
			return err
		}
		snap.Config, err = getActivityConfig(ctx, tx)
		return err
	})
	return snap, err
}

// SaveLeaderboard implements domain.LeaderboardRepository.
func (s *Store) SaveLeaderboard(ctx context.Context, board leaderboard.Leaderboard, updatedAt time.Time) error {
	return putDocument(ctx, s.db, leaderboard.DocumentID, leaderboard.Document{Leaderboards: board}, updatedAt)
}

// LoadLeaderboard implements domain.LeaderboardRepository.
func (s *Store) LoadLeaderboard(ctx context.Context) (*domain.StoredLeaderboard, error) {
	body, updatedAt, err := getDocument(ctx, s.db, leaderboard.DocumentID)
	if err != nil || body == nil {
		return nil, err
	}
	var doc leaderboard.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode leaderboard document: %w", err)
	}
	return &domain.StoredLeaderboard{Leaderboard: doc.Leaderboards, UpdatedAt: updatedAt}, nil
}

func getDocument(ctx context.Context, q querier, id string) ([]byte, time.Time, error) {
	var body, stamp string
	err := q.QueryRowContext(ctx, `SELECT body, updated_at FROM documents WHERE id = ?`, id).Scan(&body, &stamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, err
	}
	updatedAt, err := parseTime(stamp)
	if err != nil {
		return nil, time.Time{}, err
	}
	return []byte(body), updatedAt, nil
}

func putDocument(ctx context.Context, q querier, id string, value any, updatedAt time.Time) error {
	body, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO documents (id, body, updated_at) VALUES (?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		id, string(body), formatTime(updatedAt))
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (domain.User, error) {
	var u domain.User
	var gender, created string
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &gender, &u.Birthdate, &u.Email, &created); err != nil {
		return u, err
	}
	u.Gender = leaderboard.Gender(gender)
	var err error
	u.CreatedAt, err = parseTime(created)
	return u, err
}

func scanResult(row scanner) (leaderboard.Result, error) {
	var r leaderboard.Result
	var recorded string
	if err := row.Scan(&r.ID, &r.UserName, &r.Activity, &r.Value, &recorded); err != nil {
		return r, err
	}
	var err error
	r.Date, err = parseTime(recorded)
	return r, err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: bad timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
