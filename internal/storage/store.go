package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5000

// Store wraps the SQLite handle backing the client's local cache: the
// persisted session token and the starred flags for recorded clips.
type Store struct {
	db *sql.DB
}

// CachedVideo is a row in the videos table.
type CachedVideo struct {
	Filename  string
	Starred   bool
	FetchedAt time.Time
}

// NewStore initializes the SQLite database at the provided path. Call Close when done.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "seccam.db"
	}
	dsn := buildDSN(path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
		// already in a form sqlite understands
	default:
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d&_pragma=foreign_keys=ON", path, separator, defaultBusyTimeout)
}

// Migrate runs the schema creation statements.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS session (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			token TEXT NOT NULL,
			saved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS videos (
			filename TEXT PRIMARY KEY,
			starred INTEGER NOT NULL DEFAULT 0,
			fetched_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveToken replaces the persisted bearer token. The single-row upsert keeps
// the swap atomic: a concurrent reader sees either the old token or the new
// one, never a torn value.
func (s *Store) SaveToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session(id, token, saved_at) VALUES(1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET token=excluded.token, saved_at=excluded.saved_at
	`, token)
	return err
}

// LoadToken returns the persisted token, or "" when none is stored.
func (s *Store) LoadToken(ctx context.Context) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT token FROM session WHERE id = 1`)
	var token string
	if err := row.Scan(&token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return token, nil
}

// ClearToken removes the persisted token (logout or invalidation).
func (s *Store) ClearToken(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE id = 1`)
	return err
}

// CacheVideoList reconciles the videos table with the server's listing:
// unknown filenames are inserted unstarred, rows for clips the server no
// longer has are dropped, and existing star flags survive.
func (s *Store) CacheVideoList(ctx context.Context, filenames []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `CREATE TEMP TABLE IF NOT EXISTS listed(filename TEXT PRIMARY KEY)`); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM listed`); err != nil {
		return err
	}
	for _, name := range filenames {
		if _, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO listed(filename) VALUES(?)`, name); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO videos(filename) VALUES(?)`, name); err != nil {
			return err
		}
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM videos WHERE filename NOT IN (SELECT filename FROM listed)`); err != nil {
		return err
	}
	return tx.Commit()
}

// SetStarred records a clip's star flag.
func (s *Store) SetStarred(ctx context.Context, filename string, starred bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO videos(filename, starred, fetched_at) VALUES(?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(filename) DO UPDATE SET starred=excluded.starred, fetched_at=excluded.fetched_at
	`, filename, starred)
	return err
}

// DeleteVideo drops a clip from the cache after a server-side delete.
func (s *Store) DeleteVideo(ctx context.Context, filename string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM videos WHERE filename = ?`, filename)
	return err
}

// ListVideos returns the cached clips ordered by filename.
func (s *Store) ListVideos(ctx context.Context) ([]CachedVideo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT filename, starred, fetched_at FROM videos ORDER BY filename ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []CachedVideo
	for rows.Next() {
		var v CachedVideo
		if err := rows.Scan(&v.Filename, &v.Starred, &v.FetchedAt); err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// StarredVideos returns the cached star flags keyed by filename.
func (s *Store) StarredVideos(ctx context.Context) (map[string]bool, error) {
	videos, err := s.ListVideos(ctx)
	if err != nil {
		return nil, err
	}
	starred := make(map[string]bool, len(videos))
	for _, v := range videos {
		starred[v.Filename] = v.Starred
	}
	return starred, nil
}
