package mutation

import (
	"context"

	"github.com/syssam/stmtgroup"
	"github.com/syssam/stmtgroup/model"
)

// Acquirer yields a live prepared statement. It is called at most once
// successfully per handle.
type Acquirer func(ctx context.Context) (model.Statement, error)

// Handle is a lazily prepared statement for one table of a mutation.
// A handle is owned by a single group and is not safe for concurrent use.
type Handle struct {
	op       *model.Operation
	acquire  Acquirer
	stmt     model.Statement
	identity bool
	released bool
}

// NewHandle returns an unresolved handle for op.
func NewHandle(op *model.Operation, acquire Acquirer) *Handle {
	return &Handle{op: op, acquire: acquire}
}

// Operation returns the operation the handle executes.
func (h *Handle) Operation() *model.Operation { return h.op }

// TableName returns the table the statement targets.
func (h *Handle) TableName() string { return h.op.TableName() }

// SQL returns the statement text.
func (h *Handle) SQL() string { return h.op.SQL() }

// Expectation returns the row-count expectation of the operation.
func (h *Handle) Expectation() model.Expectation { return h.op.Expectation() }

// UsesIdentityInsert reports whether the statement is prepared through the
// identity insert delegate of the target.
func (h *Handle) UsesIdentityInsert() bool { return h.identity }

// Active reports whether the statement has been prepared and not released.
func (h *Handle) Active() bool { return h.stmt != nil }

// Released reports whether the handle was released. Released handles are
// terminal.
func (h *Handle) Released() bool { return h.released }

// Resolve returns the prepared statement, preparing it on first call.
// A failed preparation leaves the handle unresolved.
func (h *Handle) Resolve(ctx context.Context) (model.Statement, error) {
	if h.released {
		return nil, stmtgroup.ErrHandleReleased
	}
	if h.stmt != nil {
		return h.stmt, nil
	}
	stmt, err := h.acquire(ctx)
	if err != nil {
		return nil, stmtgroup.NewAcquisitionError(h.TableName(), h.SQL(), err)
	}
	if stmt == nil {
		return nil, stmtgroup.NewAcquisitionError(h.TableName(), h.SQL(), errNilStatement)
	}
	h.stmt = stmt
	return stmt, nil
}

// Peek returns the prepared statement, or nil if the handle is unresolved.
// It never prepares.
func (h *Handle) Peek() model.Statement { return h.stmt }

// CheckOutcome applies the operation expectation to the row count
// reported by the driver.
func (h *Handle) CheckOutcome(rows int64) error {
	exp := h.Expectation()
	if exp == nil || exp.Satisfied(rows) {
		return nil
	}
	return stmtgroup.NewOutcomeMismatchError(h.TableName(), h.SQL(), exp.String(), rows)
}

// Release returns the prepared statement to the session for closing.
// It is safe on unresolved handles and on repeated calls, and leaves the
// handle terminal.
func (h *Handle) Release(s model.Session) error {
	h.released = true
	stmt := h.stmt
	if stmt == nil {
		return nil
	}
	h.stmt = nil
	return s.ReleaseStatement(stmt)
}
