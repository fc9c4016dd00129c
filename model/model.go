// Package model describes the statements of a mutation: which tables take
// part, in which relative order, with which SQL and which row-count
// expectation.
package model

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// MutationType is the kind of row change a statement performs.
type MutationType int

// Mutation types.
const (
	Insert MutationType = iota
	Update
	Delete
	Upsert
)

// String returns the SQL keyword of the mutation type.
func (t MutationType) String() string {
	switch t {
	case Insert:
		return "INSERT"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	case Upsert:
		return "UPSERT"
	default:
		return fmt.Sprintf("MutationType(%d)", int(t))
	}
}

// Normalize returns the type used for ordering and identity decisions.
// Upserts are handled as updates.
func (t MutationType) Normalize() MutationType {
	if t == Upsert {
		return Update
	}
	return t
}

// ParseMutationType parses a case-insensitive mutation type name.
func ParseMutationType(s string) (MutationType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INSERT":
		return Insert, nil
	case "UPDATE":
		return Update, nil
	case "DELETE":
		return Delete, nil
	case "UPSERT", "MERGE":
		return Upsert, nil
	}
	return 0, fmt.Errorf("model: unknown mutation type %q", s)
}

// TableMapping describes one physical table of a mapping.
type TableMapping interface {
	// TableName returns the table name. It is unique within a mapping.
	TableName() string
	// RelativePosition returns the rank of the table from the root (0)
	// outward, and false if the position is unknown.
	RelativePosition() (int, bool)
	// IsOptional reports whether rows of the table may be absent, as for
	// secondary tables whose columns are all null.
	IsOptional() bool
}

// Table is the standard TableMapping. A negative Position means the
// position is unknown.
type Table struct {
	Name     string
	Position int
	Optional bool
}

// TableName implements TableMapping.
func (t Table) TableName() string { return t.Name }

// RelativePosition implements TableMapping.
func (t Table) RelativePosition() (int, bool) { return t.Position, t.Position >= 0 }

// IsOptional implements TableMapping.
func (t Table) IsOptional() bool { return t.Optional }

// Statement is a live prepared statement.
type Statement interface {
	ExecContext(ctx context.Context, args ...any) (sql.Result, error)
	Close() error
}

// GeneratedKeyStatement is a statement that captures the key generated by
// the database when it is executed.
type GeneratedKeyStatement interface {
	Statement
	// GeneratedKey returns the key captured by the last execution.
	GeneratedKey() (any, bool)
}

// StatementPreparer acquires live prepared statements.
type StatementPreparer interface {
	Prepare(ctx context.Context, sql string, callable bool) (Statement, error)
}

// Session is the single-threaded unit of work statements are prepared
// through and released back to.
type Session interface {
	StatementPreparer() StatementPreparer
	// ReleaseStatement closes a statement obtained from this session.
	ReleaseStatement(Statement) error
	Logger() *slog.Logger
}

// IdentityInsertDelegate prepares inserts into the identifier table so the
// database generated key can be read back.
type IdentityInsertDelegate interface {
	PrepareStatement(ctx context.Context, sql string, session Session) (GeneratedKeyStatement, error)
}

// Role is the fully qualified name of a mapped entity or collection,
// used in diagnostics.
type Role string

// FullPath returns the role path.
func (r Role) FullPath() string { return string(r) }

// MutationTarget supplies the metadata of the mapped type being mutated.
type MutationTarget interface {
	NavigableRole() Role
	// IdentifierTableName returns the table holding the primary key.
	IdentifierTableName() string
}

// EntityMutationTarget is a MutationTarget for entities.
type EntityMutationTarget interface {
	MutationTarget
	// IdentityInsertDelegate returns the delegate used for inserts into the
	// identifier table, or nil when identifiers are not database generated.
	IdentityInsertDelegate() IdentityInsertDelegate
	// IdentifierColumnName returns the primary key column.
	IdentifierColumnName() string
}

// EntityTarget is the standard EntityMutationTarget.
type EntityTarget struct {
	Role             Role
	IdentifierTable  string
	IdentifierColumn string
	Identity         IdentityInsertDelegate
}

// NavigableRole implements MutationTarget.
func (t *EntityTarget) NavigableRole() Role { return t.Role }

// IdentifierTableName implements MutationTarget.
func (t *EntityTarget) IdentifierTableName() string { return t.IdentifierTable }

// IdentityInsertDelegate implements EntityMutationTarget.
func (t *EntityTarget) IdentityInsertDelegate() IdentityInsertDelegate { return t.Identity }

// IdentifierColumnName implements EntityMutationTarget.
func (t *EntityTarget) IdentifierColumnName() string { return t.IdentifierColumn }

var _ EntityMutationTarget = (*EntityTarget)(nil)
