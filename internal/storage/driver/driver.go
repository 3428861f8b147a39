// Package driver abstracts the session store's database dialects: SQLite
// for the default file-backed store, PostgreSQL for shared deployments.
package driver

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
)

// Dialect identifies a supported database dialect.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Driver is the dialect-neutral surface the store is written against.
type Driver interface {
	Open(dsn string) error
	Close() error

	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row

	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)

	// Migrate applies pending schema files from the embedded FS.
	Migrate(ctx context.Context, schemaFS fs.FS) error

	Dialect() Dialect
	// Placeholder renders the 1-based bind marker: $1 for Postgres, ? for SQLite.
	Placeholder(index int) string

	DB() *sql.DB
}

// New creates a driver for the dialect.
func New(dialect Dialect) (Driver, error) {
	switch dialect {
	case DialectSQLite:
		return NewSQLite(), nil
	case DialectPostgres:
		return NewPostgres(), nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}
}

// ParseDialect parses a dialect string, accepting common aliases.
func ParseDialect(s string) (Dialect, error) {
	switch s {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unknown dialect: %s", s)
	}
}
