package settings

import (
	"context"

	"github.com/pkg/errors"
)

// Backend is a flat key-value store holding raw JSON documents.
type Backend interface {
	// Load returns the document stored under key, or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save replaces the document stored under key.
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}

// Backend drivers accepted by Open.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open creates a backend for driver. For the file driver dsn is a directory,
// for sqlite a directory or ":memory:", for postgres a connection URL.
func Open(ctx context.Context, driver, dsn string) (Backend, error) {
	switch driver {
	case DriverFile, "":
		return NewFileBackend(dsn)
	case DriverSQLite:
		return OpenSQLite(dsn)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	default:
		return nil, errors.Errorf("unknown storage driver %q", driver)
	}
}
