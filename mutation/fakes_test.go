package mutation

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"log/slog"

	"github.com/syssam/stmtgroup/model"
)

type fakeStmt struct {
	sql      string
	rows     int64
	key      any
	execErr  error
	closeErr error
	args     [][]any
	closed   int
}

func (s *fakeStmt) ExecContext(_ context.Context, args ...any) (sql.Result, error) {
	if s.execErr != nil {
		return nil, s.execErr
	}
	s.args = append(s.args, args)
	return driver.RowsAffected(s.rows), nil
}

func (s *fakeStmt) Close() error {
	s.closed++
	return s.closeErr
}

func (s *fakeStmt) GeneratedKey() (any, bool) { return s.key, s.key != nil }

// fakeSession prepares fakeStmts and records every call.
type fakeSession struct {
	stmts      map[string]*fakeStmt
	prepareErr map[string]error
	prepared   []string
	callable   []bool
	released   []*fakeStmt
	logs       bytes.Buffer
	logger     *slog.Logger
}

func newFakeSession() *fakeSession {
	s := &fakeSession{
		stmts:      make(map[string]*fakeStmt),
		prepareErr: make(map[string]error),
	}
	s.logger = slog.New(slog.NewTextHandler(&s.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return s
}

// stmt returns the statement prepared for query, creating it on demand.
func (s *fakeSession) stmt(query string) *fakeStmt {
	st, ok := s.stmts[query]
	if !ok {
		st = &fakeStmt{sql: query, rows: 1}
		s.stmts[query] = st
	}
	return st
}

func (s *fakeSession) StatementPreparer() model.StatementPreparer { return s }

func (s *fakeSession) Prepare(_ context.Context, query string, callable bool) (model.Statement, error) {
	if err := s.prepareErr[query]; err != nil {
		return nil, err
	}
	s.prepared = append(s.prepared, query)
	s.callable = append(s.callable, callable)
	return s.stmt(query), nil
}

func (s *fakeSession) ReleaseStatement(stmt model.Statement) error {
	st := stmt.(*fakeStmt)
	s.released = append(s.released, st)
	return st.Close()
}

func (s *fakeSession) Logger() *slog.Logger { return s.logger }

// fakeDelegate prepares identity inserts that generate key.
type fakeDelegate struct {
	key      any
	prepared []string
}

func (d *fakeDelegate) PrepareStatement(ctx context.Context, query string, s model.Session) (model.GeneratedKeyStatement, error) {
	d.prepared = append(d.prepared, query)
	fs := s.(*fakeSession)
	st := fs.stmt(query)
	st.key = d.key
	return st, nil
}

// plainTarget is a MutationTarget that is not an entity target.
type plainTarget struct{ role model.Role }

func (t plainTarget) NavigableRole() model.Role    { return t.role }
func (t plainTarget) IdentifierTableName() string { return "entities" }

const (
	insertEntity     = "INSERT INTO entities (id, name) VALUES (?, ?)"
	insertSupplement = "INSERT INTO supplements (id, data) VALUES (?, ?)"
	updateEntity     = "UPDATE entities SET name = ? WHERE id = ?"
	updateSupplement = "UPDATE supplements SET data = ? WHERE id = ?"
	deleteEntity     = "DELETE FROM entities WHERE id = ?"
	deleteSupplement = "DELETE FROM supplements WHERE id = ?"
	upsertSupplement = "INSERT INTO supplements (id, data) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET data = excluded.data"
)

var (
	entities    = model.Table{Name: "entities", Position: 0}
	supplements = model.Table{Name: "supplements", Position: 1}
)

func entityTarget(d model.IdentityInsertDelegate) *model.EntityTarget {
	t := &model.EntityTarget{
		Role:             "com.example.Entity",
		IdentifierTable:  "entities",
		IdentifierColumn: "id",
	}
	if d != nil {
		t.Identity = d
	}
	return t
}

func tables(g Group) []string {
	var names []string
	g.ForEach(func(table string, _ *Handle) {
		names = append(names, table)
	})
	return names
}
