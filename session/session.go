// Package session provides the unit of work statement groups prepare and
// release their statements through.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/syssam/stmtgroup/dialect"
	"github.com/syssam/stmtgroup/model"
)

// Session wraps a driver or transaction for one logical unit of work.
// A Session is not safe for concurrent use.
type Session struct {
	id       uuid.UUID
	conn     dialect.Preparer
	dialect  string
	logger   *slog.Logger
	preparer *StatementPreparer
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger release failures and debug output go to.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithDialect sets the dialect used to pick identity insert strategies.
// It defaults to the dialect reported by the connection, if any.
func WithDialect(name string) Option {
	return func(s *Session) { s.dialect = name }
}

// New returns a session preparing statements on conn, typically a
// dialect.Tx.
func New(conn dialect.Preparer, opts ...Option) *Session {
	s := &Session{
		id:     uuid.New(),
		conn:   conn,
		logger: slog.Default(),
	}
	if d, ok := conn.(interface{ Dialect() string }); ok {
		s.dialect = d.Dialect()
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", s.id.String())
	s.preparer = &StatementPreparer{session: s}
	return s
}

// ID returns the session identifier attached to every log record.
func (s *Session) ID() uuid.UUID { return s.id }

// Dialect returns the session dialect.
func (s *Session) Dialect() string { return s.dialect }

// Logger implements model.Session.
func (s *Session) Logger() *slog.Logger { return s.logger }

// StatementPreparer implements model.Session.
func (s *Session) StatementPreparer() model.StatementPreparer { return s.preparer }

// Prepare prepares query on the session connection.
func (s *Session) Prepare(ctx context.Context, query string) (dialect.Stmt, error) {
	stmt, err := s.conn.Prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "statement prepared", "sql", query)
	return stmt, nil
}

// ReleaseStatement implements model.Session. It closes stmt; the caller
// decides how to report a failure.
func (s *Session) ReleaseStatement(stmt model.Statement) error {
	if stmt == nil {
		return nil
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("session: closing statement: %w", err)
	}
	s.logger.Debug("statement released")
	return nil
}

// IdentityDelegate returns the identity insert strategy suited to the
// session dialect: RETURNING for Postgres, LastInsertId otherwise.
func (s *Session) IdentityDelegate(column string) model.IdentityInsertDelegate {
	return IdentityDelegateFor(s.dialect, column)
}

// StatementPreparer is the model.StatementPreparer of a Session.
type StatementPreparer struct {
	session *Session
}

// Prepare implements model.StatementPreparer. Callable statements are
// prepared as written; the dialect decides how a call is spelled.
func (p *StatementPreparer) Prepare(ctx context.Context, sql string, callable bool) (model.Statement, error) {
	if callable {
		p.session.logger.DebugContext(ctx, "preparing callable statement", "sql", sql)
	}
	return p.session.Prepare(ctx, sql)
}

var (
	_ model.Session           = (*Session)(nil)
	_ model.StatementPreparer = (*StatementPreparer)(nil)
)
