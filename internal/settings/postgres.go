package settings

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// PostgresBackend stores documents in a jsonb key-value table, for deployments
// where several sessions share one settings record.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL and ensures the settings table exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS settings_kv (
		key        TEXT PRIMARY KEY,
		value      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to create settings table")
	}

	return &PostgresBackend{pool: pool}, nil
}

// Load implements Backend.
func (b *PostgresBackend) Load(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.pool.QueryRow(ctx, `SELECT value FROM settings_kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %q", key)
	}
	return value, nil
}

// Save implements Backend.
func (b *PostgresBackend) Save(ctx context.Context, key string, data []byte) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO settings_kv (key, value, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, data)
	return errors.Wrapf(err, "failed to save %q", key)
}

// Close implements Backend.
func (b *PostgresBackend) Close() error {
	if b.pool != nil {
		b.pool.Close()
	}
	return nil
}
