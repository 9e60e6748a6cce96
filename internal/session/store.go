// Package session keeps the signed-in user's tokens and display profile
// behind an injectable key/value store and announces login and logout to
// interested listeners.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

const (
	KeyToken        = "token"
	KeyRefreshToken = "refresh_token"
	KeyRole         = "role"
	KeyUserID       = "user_id"
	KeyUserProfile  = "user_profile"
)

// Store is the persistence seam for session values. Get reports ok=false for
// a key that was never set or has been cleared.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context) error
}

type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = map[string]string{}
	return nil
}

// SQLiteStore persists session values in a local SQLite file. Rows are
// namespaced by config profile so several profiles can share one file.
type SQLiteStore struct {
	db      *sql.DB
	profile string
	sb      squirrel.StatementBuilderType
}

const sessionSchema = `CREATE TABLE IF NOT EXISTS session_values (
	profile    TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (profile, key)
)`

func OpenSQLite(ctx context.Context, path, profile string) (*SQLiteStore, error) {
	if profile == "" {
		profile = "default"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(2000)")
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sessionSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init session db: %w", err)
	}
	return &SQLiteStore{
		db:      db,
		profile: profile,
		sb:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	query, args, err := s.sb.Select("value").
		From("session_values").
		Where(squirrel.Eq{"profile": s.profile, "key": key}).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build session query: %w", err)
	}
	var value string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read session %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	query, args, err := s.sb.Insert("session_values").
		Columns("profile", "key", "value", "updated_at").
		Values(s.profile, key, value, time.Now().UTC().Format(time.RFC3339)).
		Suffix("ON CONFLICT(profile, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build session insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("write session %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	query, args, err := s.sb.Delete("session_values").
		Where(squirrel.Eq{"profile": s.profile}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build session delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
