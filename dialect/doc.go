// Package dialect provides the database abstraction statement groups run on.
//
// This package defines the interfaces used to execute and prepare
// statements, allowing the same mutation to run against PostgreSQL, MySQL
// and SQLite.
//
// # Dialect Constants
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// FromDriverName maps database/sql driver names ("pgx", "postgres",
// "mysql", "sqlite") to these constants.
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Prepare(ctx context.Context, query string) (Stmt, error)
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// # Prepared Statements
//
// Prepare returns a Stmt bound to the driver or transaction it was created
// on. Statements must be closed by their owner; a statement group releases
// them through its session.
//
// # Sub-packages
//
//   - dialect/sql: database/sql implementation, statistics and debug drivers
//   - dialect/sql/sqlgraph: constraint violation classification
package dialect
