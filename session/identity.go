package session

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/syssam/stmtgroup/dialect"
	"github.com/syssam/stmtgroup/model"
)

// IdentityDelegateFor returns the identity insert strategy for a dialect.
func IdentityDelegateFor(dialectName, column string) model.IdentityInsertDelegate {
	if dialectName == dialect.Postgres {
		return &ReturningIdentity{Column: column}
	}
	return &LastInsertIDIdentity{}
}

// rowQuerier is implemented by statements able to return a row.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, args ...any) *sql.Row
}

// ReturningIdentity appends a RETURNING clause to the insert and reads the
// generated key from the returned row.
type ReturningIdentity struct {
	Column string
}

// PrepareStatement implements model.IdentityInsertDelegate.
func (d *ReturningIdentity) PrepareStatement(ctx context.Context, query string, s model.Session) (model.GeneratedKeyStatement, error) {
	stmt, err := s.StatementPreparer().Prepare(ctx, query+" RETURNING "+d.Column, false)
	if err != nil {
		return nil, err
	}
	q, ok := stmt.(rowQuerier)
	if !ok {
		err := fmt.Errorf("session: statement %T cannot return rows", stmt)
		if cerr := s.ReleaseStatement(stmt); cerr != nil {
			s.Logger().ErrorContext(ctx, "releasing statement", "error", cerr)
		}
		return nil, err
	}
	return &returningStatement{Statement: stmt, query: q}, nil
}

type returningStatement struct {
	model.Statement
	query rowQuerier
	key   any
	ok    bool
}

// ExecContext runs the insert and scans the returned key. A successful
// insert affects exactly one row.
func (s *returningStatement) ExecContext(ctx context.Context, args ...any) (sql.Result, error) {
	s.key, s.ok = nil, false
	var key any
	if err := s.query.QueryRowContext(ctx, args...).Scan(&key); err != nil {
		return nil, err
	}
	s.key, s.ok = key, true
	return driver.RowsAffected(1), nil
}

func (s *returningStatement) GeneratedKey() (any, bool) { return s.key, s.ok }

// LastInsertIDIdentity reads the generated key from the driver result, as
// MySQL and SQLite report it.
type LastInsertIDIdentity struct{}

// PrepareStatement implements model.IdentityInsertDelegate.
func (LastInsertIDIdentity) PrepareStatement(ctx context.Context, query string, s model.Session) (model.GeneratedKeyStatement, error) {
	stmt, err := s.StatementPreparer().Prepare(ctx, query, false)
	if err != nil {
		return nil, err
	}
	return &lastInsertIDStatement{Statement: stmt}, nil
}

type lastInsertIDStatement struct {
	model.Statement
	key int64
	ok  bool
}

func (s *lastInsertIDStatement) ExecContext(ctx context.Context, args ...any) (sql.Result, error) {
	s.ok = false
	res, err := s.Statement.ExecContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("session: reading generated key: %w", err)
	}
	s.key, s.ok = id, true
	return res, nil
}

func (s *lastInsertIDStatement) GeneratedKey() (any, bool) { return s.key, s.ok }

var (
	_ model.IdentityInsertDelegate = (*ReturningIdentity)(nil)
	_ model.IdentityInsertDelegate = LastInsertIDIdentity{}
	_ model.GeneratedKeyStatement  = (*returningStatement)(nil)
	_ model.GeneratedKeyStatement  = (*lastInsertIDStatement)(nil)
)
