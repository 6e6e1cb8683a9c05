package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Belphemur/SubTranslate/internal/apperrors"
)

func init() {
	Register(KindSQLite, openSQLite)
}

const sqliteSchema = `CREATE TABLE IF NOT EXISTS translations (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    created_at INTEGER NOT NULL
)`

// sqliteStore keeps translations in a single-table SQLite database. Rows
// older than the TTL read as missing and are deleted on the next write.
// Clear removes the database files; the next call recreates them.
type sqliteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
	ttl    time.Duration
	opts   Options
}

func openSQLite(opts Options) (Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("cache: sqlite store requires a path")
	}
	s := &sqliteStore{ttl: opts.TTL, opts: opts}
	if _, err := s.conn(); err != nil {
		return nil, err
	}
	return s, nil
}

// openSQLiteDB opens the database with a single connection so the pragmas
// hold for every statement and writers queue instead of failing busy.
func openSQLiteDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &apperrors.CacheIOError{Op: "mkdir", Err: err}
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return db, nil
}

// conn returns the open database, reopening it after a Clear. Callers hold s.mu
// or are the constructor.
func (s *sqliteStore) conn() (*sql.DB, error) {
	if s.closed {
		return nil, errors.New("sqlite cache is closed")
	}
	if s.db != nil {
		return s.db, nil
	}
	db, err := openSQLiteDB(s.opts.Path)
	if err != nil {
		return nil, err
	}
	s.db = db
	return db, nil
}

// cutoff is the oldest created_at still valid, or 0 without a TTL.
func (s *sqliteStore) cutoff() int64 {
	if s.ttl <= 0 {
		return 0
	}
	return time.Now().Add(-s.ttl).UnixMicro()
}

func (s *sqliteStore) Get(key string) (string, bool) {
	found := s.GetMany([]string{key})
	value, ok := found[key]
	return value, ok
}

// GetMany reads all keys in one query. Expired rows are skipped here and
// removed by the next Set.
func (s *sqliteStore) GetMany(keys []string) map[string]string {
	found := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return found
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	args := make([]any, 0, len(keys)+1)
	args = append(args, s.cutoff())
	for _, key := range keys {
		args = append(args, key)
	}
	query := `SELECT key, value FROM translations WHERE created_at >= ? AND key IN (?` +
		strings.Repeat(",?", len(keys)-1) + `)`

	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.conn()
	if err != nil {
		s.opts.logError("sqlite cache open failed", err)
		return found
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		s.opts.logError("sqlite cache lookup failed", err)
		return found
	}
	defer rows.Close()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			s.opts.logError("sqlite cache scan failed", err)
			return found
		}
		found[key] = value
	}
	if err := rows.Err(); err != nil {
		s.opts.logError("sqlite cache lookup failed", err)
	}
	return found
}

func (s *sqliteStore) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.conn()
	if err != nil {
		return &apperrors.CacheIOError{Op: "open", Err: err}
	}
	_, err = db.ExecContext(ctx,
		`INSERT OR REPLACE INTO translations (key, value, created_at) VALUES (?, ?, ?)`,
		key, value, time.Now().UnixMicro(),
	)
	if err != nil {
		return &apperrors.CacheIOError{Op: "write", Err: err}
	}
	if cutoff := s.cutoff(); cutoff > 0 {
		if _, err := db.ExecContext(ctx, `DELETE FROM translations WHERE created_at < ?`, cutoff); err != nil {
			s.opts.logError("sqlite cache expiry failed", err)
		}
	}
	return nil
}

func (s *sqliteStore) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.conn()
	if err != nil {
		s.opts.logError("sqlite cache open failed", err)
		return 0
	}
	var n int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM translations WHERE created_at >= ?`, s.cutoff()).Scan(&n)
	if err != nil {
		s.opts.logError("sqlite cache Len failed", err)
		return 0
	}
	return n
}

func (s *sqliteStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return &apperrors.CacheIOError{Op: "clear", Err: err}
		}
		s.db = nil
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(s.opts.Path + suffix); err != nil && !os.IsNotExist(err) {
			return &apperrors.CacheIOError{Op: "clear", Err: err}
		}
	}
	return nil
}

func (s *sqliteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
