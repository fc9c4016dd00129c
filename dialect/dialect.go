package dialect

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"strings"
)

// Dialect names for external usage.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier wraps the 2 database operations.
type ExecQuerier interface {
	// Exec executes a query that does not return records. For example, in SQL, INSERT or UPDATE.
	// It scans the result into the pointer v. For SQL drivers, it is dialect/sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows, typically a SELECT in SQL.
	// It scans the result into the pointer v. For SQL drivers, it is *dialect/sql.Rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Stmt is a live prepared statement.
type Stmt interface {
	ExecContext(ctx context.Context, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, args ...any) *sql.Row
	Close() error
	// SQL returns the statement text the statement was prepared from.
	SQL() string
}

// Preparer prepares statements for later execution.
type Preparer interface {
	Prepare(ctx context.Context, query string) (Stmt, error)
}

// Driver is the interface that wraps all necessary operations for SQL drivers.
type Driver interface {
	ExecQuerier
	Preparer
	// Tx starts and returns a new transaction.
	// The provided context is used until the transaction is committed or rolled back.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec, Query and Prepare operations in a transaction.
type Tx interface {
	ExecQuerier
	Preparer
	driver.Tx
}

// FromDriverName maps a database/sql driver name to its dialect. Unknown
// names are returned as is.
func FromDriverName(name string) string {
	switch {
	case name == "pgx" || strings.HasPrefix(name, Postgres):
		return Postgres
	case strings.HasPrefix(name, MySQL):
		return MySQL
	case strings.HasPrefix(name, SQLite):
		return SQLite
	}
	return name
}
