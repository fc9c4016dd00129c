package mutation

import (
	"context"
	"errors"
	"iter"
	"slices"

	"github.com/syssam/stmtgroup"
	"github.com/syssam/stmtgroup/model"
)

// unknownPosition is the sort key of tables whose relative position the
// target cannot resolve. Such tables sort before all resolved tables,
// except in deletes: a resolved table whose position exceeds the number
// of operations gets a delete key below -1 and runs first.
const unknownPosition = -1

var errNilStatement = errors.New("mutation: preparer returned no statement")

// Group is the set of statements realizing one logical mutation.
// Implementations are owned by a single session and hold no locks.
type Group interface {
	// MutationType returns the type the group was created for.
	MutationType() model.MutationType
	// Target returns the mapped type being mutated.
	Target() model.MutationTarget
	// Size returns the number of statements, materialized or not.
	Size() int
	// ActiveCount returns the number of statements currently prepared.
	ActiveCount() int
	// ForEach calls fn for every table in execution order. It does not
	// prepare statements.
	ForEach(fn func(table string, h *Handle))
	// All returns an iterator over the tables in execution order.
	All() iter.Seq2[string, *Handle]
	// Get returns the handle of table, or nil.
	Get(table string) *Handle
	// Resolve returns the handle of table, preparing its statement if
	// the group materializes on lookup.
	Resolve(ctx context.Context, table string) (*Handle, error)
	// SingleHandle returns the only handle of a single-statement group.
	SingleHandle() (*Handle, error)
	// AnyMatches reports whether pred holds for any handle, stopping at
	// the first match.
	AnyMatches(pred func(*Handle) bool) bool
	// Release releases every prepared statement. It never fails and may
	// be called more than once.
	Release()
}

// NewGroup returns a SingleGroup for a single operation and a
// StandardGroup otherwise.
func NewGroup(typ model.MutationType, target model.MutationTarget, ops []*model.Operation, s model.Session) (Group, error) {
	if len(ops) == 1 {
		return NewSingleGroup(typ, target, ops[0], s), nil
	}
	return NewStandardGroup(typ, target, ops, s)
}

// newGroupHandle creates the handle of op, choosing the identity insert
// path for inserts into the identifier table of an entity with a database
// generated identifier.
func newGroupHandle(typ model.MutationType, target model.MutationTarget, op *model.Operation, s model.Session) *Handle {
	if typ.Normalize() == model.Insert {
		if et, ok := target.(model.EntityMutationTarget); ok {
			if d := et.IdentityInsertDelegate(); d != nil && op.TableName() == et.IdentifierTableName() {
				h := NewHandle(op, func(ctx context.Context) (model.Statement, error) {
					stmt, err := d.PrepareStatement(ctx, op.SQL(), s)
					if err != nil || stmt == nil {
						return nil, err
					}
					return stmt, nil
				})
				h.identity = true
				return h
			}
		}
	}
	return NewHandle(op, func(ctx context.Context) (model.Statement, error) {
		return s.StatementPreparer().Prepare(ctx, op.SQL(), op.Callable())
	})
}

// releaseHandle releases h and reports a failure to the session logger.
func releaseHandle(s model.Session, table string, h *Handle) {
	if err := h.Release(s); err != nil {
		s.Logger().Error("unable to release statement", "table", table, "error", err)
	}
}

type entry struct {
	table  string
	handle *Handle
}

// StandardGroup is the Group of a mutation spanning several tables.
// Statements are prepared on first use through their handle; lookups
// never prepare.
type StandardGroup struct {
	typ     model.MutationType
	target  model.MutationTarget
	ops     []*model.Operation
	session model.Session
	entries []entry
	index   map[string]int
}

// NewStandardGroup orders ops for typ and wraps each in an unresolved
// handle. It performs no I/O. Two operations on the same table are
// rejected with a DuplicateTableError.
func NewStandardGroup(typ model.MutationType, target model.MutationTarget, ops []*model.Operation, s model.Session) (*StandardGroup, error) {
	seen := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		name := op.TableName()
		if _, ok := seen[name]; ok {
			return nil, stmtgroup.NewDuplicateTableError(name)
		}
		seen[name] = struct{}{}
	}
	keys := make(map[string]int, len(ops))
	for _, op := range ops {
		keys[op.TableName()] = sortKey(typ, op, len(ops), s)
	}
	ordered := slices.Clone(ops)
	slices.SortStableFunc(ordered, func(a, b *model.Operation) int {
		return keys[a.TableName()] - keys[b.TableName()]
	})
	g := &StandardGroup{
		typ:     typ,
		target:  target,
		ops:     ops,
		session: s,
		entries: make([]entry, len(ordered)),
		index:   make(map[string]int, len(ordered)),
	}
	for i, op := range ordered {
		g.entries[i] = entry{table: op.TableName(), handle: newGroupHandle(typ, target, op, s)}
		g.index[op.TableName()] = i
	}
	return g, nil
}

// sortKey returns the position of op in execution order: ascending
// relative position for inserts and updates, descending for deletes.
func sortKey(typ model.MutationType, op *model.Operation, total int, s model.Session) int {
	pos, ok := op.Table().RelativePosition()
	if !ok {
		s.Logger().Debug("relative position of table unknown", "table", op.TableName(), "type", typ.String())
		return unknownPosition
	}
	if typ.Normalize() == model.Delete {
		return total - pos
	}
	return pos
}

// MutationType implements Group.
func (g *StandardGroup) MutationType() model.MutationType { return g.typ }

// Target implements Group.
func (g *StandardGroup) Target() model.MutationTarget { return g.target }

// Operations returns the operations in the order they were given.
func (g *StandardGroup) Operations() []*model.Operation { return slices.Clone(g.ops) }

// Size implements Group.
func (g *StandardGroup) Size() int { return len(g.ops) }

// ActiveCount implements Group.
func (g *StandardGroup) ActiveCount() int {
	n := 0
	for _, e := range g.entries {
		if e.handle.Active() {
			n++
		}
	}
	return n
}

// ForEach implements Group.
func (g *StandardGroup) ForEach(fn func(table string, h *Handle)) {
	for _, e := range g.entries {
		fn(e.table, e.handle)
	}
}

// All implements Group.
func (g *StandardGroup) All() iter.Seq2[string, *Handle] {
	return func(yield func(string, *Handle) bool) {
		for _, e := range g.entries {
			if !yield(e.table, e.handle) {
				return
			}
		}
	}
}

// Get implements Group.
func (g *StandardGroup) Get(table string) *Handle {
	i, ok := g.index[table]
	if !ok {
		return nil
	}
	return g.entries[i].handle
}

// Resolve implements Group. It is the same as Get: statements of a
// multi-table group are prepared by their handle.
func (g *StandardGroup) Resolve(_ context.Context, table string) (*Handle, error) {
	return g.Get(table), nil
}

// SingleHandle implements Group. A multi-table group never reduces to a
// single statement.
func (g *StandardGroup) SingleHandle() (*Handle, error) {
	return nil, stmtgroup.NewNotSingleStatementError(g.typ.String(), g.target.NavigableRole().FullPath())
}

// AnyMatches implements Group.
func (g *StandardGroup) AnyMatches(pred func(*Handle) bool) bool {
	return slices.ContainsFunc(g.entries, func(e entry) bool { return pred(e.handle) })
}

// Release implements Group.
func (g *StandardGroup) Release() {
	for _, e := range g.entries {
		releaseHandle(g.session, e.table, e.handle)
	}
	g.entries = nil
	clear(g.index)
}

// SingleGroup is the Group of a mutation issuing one statement. Unlike
// StandardGroup, Resolve prepares the statement.
type SingleGroup struct {
	typ      model.MutationType
	target   model.MutationTarget
	session  model.Session
	table    string
	handle   *Handle
	released bool
}

// NewSingleGroup wraps op in an unresolved handle. It performs no I/O.
func NewSingleGroup(typ model.MutationType, target model.MutationTarget, op *model.Operation, s model.Session) *SingleGroup {
	return &SingleGroup{
		typ:     typ,
		target:  target,
		session: s,
		table:   op.TableName(),
		handle:  newGroupHandle(typ, target, op, s),
	}
}

// MutationType implements Group.
func (g *SingleGroup) MutationType() model.MutationType { return g.typ }

// Target implements Group.
func (g *SingleGroup) Target() model.MutationTarget { return g.target }

// Size implements Group.
func (g *SingleGroup) Size() int { return 1 }

// ActiveCount implements Group.
func (g *SingleGroup) ActiveCount() int {
	if g.handle.Active() {
		return 1
	}
	return 0
}

// ForEach implements Group.
func (g *SingleGroup) ForEach(fn func(table string, h *Handle)) {
	if !g.released {
		fn(g.table, g.handle)
	}
}

// All implements Group.
func (g *SingleGroup) All() iter.Seq2[string, *Handle] {
	return func(yield func(string, *Handle) bool) {
		if !g.released {
			yield(g.table, g.handle)
		}
	}
}

// Get implements Group.
func (g *SingleGroup) Get(table string) *Handle {
	if g.released || table != g.table {
		return nil
	}
	return g.handle
}

// Resolve implements Group. The statement is prepared before the handle
// is returned.
func (g *SingleGroup) Resolve(ctx context.Context, table string) (*Handle, error) {
	h := g.Get(table)
	if h == nil {
		return nil, nil
	}
	if _, err := h.Resolve(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// SingleHandle implements Group.
func (g *SingleGroup) SingleHandle() (*Handle, error) {
	if g.released {
		return nil, stmtgroup.ErrHandleReleased
	}
	return g.handle, nil
}

// AnyMatches implements Group.
func (g *SingleGroup) AnyMatches(pred func(*Handle) bool) bool {
	return !g.released && pred(g.handle)
}

// Release implements Group.
func (g *SingleGroup) Release() {
	if g.released {
		return
	}
	g.released = true
	releaseHandle(g.session, g.table, g.handle)
}

var (
	_ Group = (*StandardGroup)(nil)
	_ Group = (*SingleGroup)(nil)
)
