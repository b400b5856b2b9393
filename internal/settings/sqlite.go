package settings

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// SQLiteBackend stores documents in a single key-value table.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) nightcrawler.db in dataDir.
// Pass ":memory:" for an in-memory database (used by tests).
func OpenSQLite(dataDir string) (*SQLiteBackend, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return nil, errors.Wrap(err, "creating data directory")
		}
		dsn = filepath.Join(dataDir, "nightcrawler.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	// One connection: ":memory:" databases are per-connection, and it avoids "database is locked".
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "setting busy timeout")
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating kv table")
	}

	return &SQLiteBackend{db: db}, nil
}

// Load implements Backend.
func (b *SQLiteBackend) Load(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := b.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading %q", key)
	}
	return []byte(value), nil
}

// Save implements Backend.
func (b *SQLiteBackend) Save(ctx context.Context, key string, data []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, string(data))
	return errors.Wrapf(err, "saving %q", key)
}

// Close implements Backend.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
