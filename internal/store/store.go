package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/igwarmup/internal/types"
)

// Store handles all database operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One writer keeps sqlite free of SQLITE_BUSY under concurrent invocations.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS action_keys (
		key TEXT PRIMARY KEY,
		recorded_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fetched_posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		backend TEXT NOT NULL,
		post_url TEXT NOT NULL,
		post_code TEXT,
		post_id TEXT,
		caption TEXT,
		media_url TEXT,
		media_type TEXT,
		posted_at DATETIME,
		fetched_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS action_runs (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		subject TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		kind TEXT,
		message TEXT,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fetched_posts_username ON fetched_posts(username, fetched_at);
	CREATE INDEX IF NOT EXISTS idx_action_runs_started_at ON action_runs(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Contains reports whether an action key was recorded. Together with
// Append this makes Store a ledger backend.
func (s *Store) Contains(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM action_keys WHERE key = ?)`, key).Scan(&exists)
	return exists, err
}

// Append records an action key. Recording the same key twice is a no-op.
func (s *Store) Append(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO action_keys (key, recorded_at) VALUES (?, ?)
	`, key, time.Now().UTC())
	return err
}

// SaveFetchedPost appends a newest-post result to the history
func (s *Store) SaveFetchedPost(ctx context.Context, username, backend string, p *types.ExtractedPost) error {
	if !p.Valid() {
		return errors.New("refusing to save a post without URL")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fetched_posts (username, backend, post_url, post_code, post_id,
			caption, media_url, media_type, posted_at, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, username, backend, p.PostURL, p.PostCode, p.PostID,
		p.Caption, p.MediaURL, string(p.MediaType), p.Timestamp.UTC(), time.Now().UTC())
	return err
}

// LatestFetchedPost returns the most recently fetched post for username,
// or nil when there is none.
func (s *Store) LatestFetchedPost(ctx context.Context, username string) (*FetchedPost, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, backend, post_url, post_code, post_id,
			caption, media_url, media_type, posted_at, fetched_at
		FROM fetched_posts
		WHERE username = ?
		ORDER BY fetched_at DESC, id DESC
		LIMIT 1
	`, username)

	var (
		fp        FetchedPost
		mediaType string
	)
	err := row.Scan(&fp.ID, &fp.Username, &fp.Backend, &fp.Post.PostURL, &fp.Post.PostCode, &fp.Post.PostID,
		&fp.Post.Caption, &fp.Post.MediaURL, &mediaType, &fp.Post.Timestamp, &fp.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fp.Post.MediaType = types.MediaType(mediaType)
	return &fp, nil
}

// SaveRun records one finished action invocation
func (s *Store) SaveRun(ctx context.Context, r *Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_runs (id, action, subject, success, kind, message, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Action, r.Subject, r.Success, r.Kind, r.Message, r.StartedAt.UTC(), r.Duration.Milliseconds())
	return err
}

// RecentRuns returns the newest runs first
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, subject, success, kind, message, started_at, duration_ms
		FROM action_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r  Run
			ms int64
		)
		if err := rows.Scan(&r.ID, &r.Action, &r.Subject, &r.Success, &r.Kind, &r.Message, &r.StartedAt, &ms); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
