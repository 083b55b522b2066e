package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	j "github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/sitepanel/internal/apperr"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL,
	website    TEXT NOT NULL DEFAULT 'null',
	cookies    TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
`

// SQLite is a Store backed by an SQLite database file.
type SQLite struct {
	conn *sql.DB
	now  func() time.Time
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("session: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("session: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("session: apply schema: %w", err)
	}
	return &SQLite{conn: conn, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

func (s *SQLite) Create(ctx context.Context, r Record) error {
	cookies, err := j.Marshal(nonNil(r.Cookies))
	if err != nil {
		return fmt.Errorf("session: encode cookies: %w", err)
	}
	website := string(r.Website)
	if website == "" {
		website = "null"
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO sessions (id, username, website, cookies, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.Username, website, string(cookies), r.CreatedAt.UnixMilli(), r.ExpiresAt.UnixMilli())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("session: create %s: %w", r.ID, apperr.ErrConflict)
		}
		return fmt.Errorf("session: create: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id string) (*Record, error) {
	var (
		r                  Record
		website, cookies   string
		created, expiresAt int64
	)
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, username, website, cookies, created_at, expires_at
		FROM sessions WHERE id = ? AND expires_at > ?
	`, id, s.now().UnixMilli()).Scan(&r.ID, &r.Username, &website, &cookies, &created, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}
	if err := j.Unmarshal([]byte(cookies), &r.Cookies); err != nil {
		return nil, fmt.Errorf("session: decode cookies: %w", err)
	}
	r.Website = j.RawMessage(website)
	r.CreatedAt = time.UnixMilli(created)
	r.ExpiresAt = time.UnixMilli(expiresAt)
	return &r, nil
}

func (s *SQLite) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	return s.update(ctx, id, `UPDATE sessions SET expires_at = ? WHERE id = ?`, expiresAt.UnixMilli())
}

func (s *SQLite) UpdateCookies(ctx context.Context, id string, cookies []StoredCookie) error {
	raw, err := j.Marshal(nonNil(cookies))
	if err != nil {
		return fmt.Errorf("session: encode cookies: %w", err)
	}
	return s.update(ctx, id, `UPDATE sessions SET cookies = ? WHERE id = ?`, string(raw))
}

func (s *SQLite) update(ctx context.Context, id, query string, value any) error {
	res, err := s.conn.ExecContext(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("session: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session: update: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

func (s *SQLite) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("session: delete expired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("session: delete expired: %w", err)
	}
	return int(n), nil
}

func nonNil(c []StoredCookie) []StoredCookie {
	if c == nil {
		return []StoredCookie{}
	}
	return c
}
