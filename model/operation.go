package model

import (
	"fmt"
	"slices"
)

// Expectation classifies the row counts a statement may report.
type Expectation interface {
	// Satisfied reports whether rows affected is acceptable.
	Satisfied(rows int64) bool
	// String describes the expectation, e.g. "exactly 1 row".
	String() string
}

type (
	noneExpectation     struct{}
	rowCountExpectation struct{ n int64 }
	atLeastExpectation  struct{ n int64 }
)

// Standard expectations.
var (
	// ExpectNone accepts any row count.
	ExpectNone Expectation = noneExpectation{}
	// ExpectOne requires exactly one affected row.
	ExpectOne Expectation = rowCountExpectation{n: 1}
	// ExpectAtLeastOne requires one or more affected rows.
	ExpectAtLeastOne Expectation = atLeastExpectation{n: 1}
)

// ExpectRowCount requires exactly n affected rows.
func ExpectRowCount(n int64) Expectation { return rowCountExpectation{n: n} }

func (noneExpectation) Satisfied(int64) bool { return true }
func (noneExpectation) String() string       { return "any number of rows" }

func (e rowCountExpectation) Satisfied(rows int64) bool { return rows == e.n }
func (e rowCountExpectation) String() string {
	if e.n == 1 {
		return "exactly 1 row"
	}
	return fmt.Sprintf("exactly %d rows", e.n)
}

func (e atLeastExpectation) Satisfied(rows int64) bool { return rows >= e.n }
func (e atLeastExpectation) String() string {
	if e.n == 1 {
		return "at least 1 row"
	}
	return fmt.Sprintf("at least %d rows", e.n)
}

// Values holds the column values of the row being mutated.
type Values map[string]any

// ParameterBinder produces the argument of one positional parameter.
type ParameterBinder interface {
	BindValue(Values) (any, error)
}

// ColumnBinder binds the value of a column. Missing columns bind NULL.
type ColumnBinder struct {
	Column string
	// Value names the entry of Values the column binds from, when it
	// differs from the column, as for a join column bound from the
	// identifier.
	Value string
	// Key marks key columns. Key values do not count when deciding whether
	// an optional row carries any data.
	Key bool
}

func (b ColumnBinder) valueName() string {
	if b.Value != "" {
		return b.Value
	}
	return b.Column
}

// BindValue implements ParameterBinder.
func (b ColumnBinder) BindValue(v Values) (any, error) {
	return v[b.valueName()], nil
}

// BinderFunc adapts a function to ParameterBinder.
type BinderFunc func(Values) (any, error)

// BindValue implements ParameterBinder.
func (f BinderFunc) BindValue(v Values) (any, error) { return f(v) }

// Operation describes one SQL statement issued against one table.
// Operations are immutable once built.
type Operation struct {
	table        TableMapping
	mutationType MutationType
	sql          string
	callable     bool
	binders      []ParameterBinder
	expectation  Expectation
}

// OperationOption configures an Operation.
type OperationOption func(*Operation)

// WithCallable marks the statement as a stored procedure call.
func WithCallable() OperationOption {
	return func(o *Operation) { o.callable = true }
}

// WithBinders sets the parameter binders, one per positional parameter.
func WithBinders(binders ...ParameterBinder) OperationOption {
	return func(o *Operation) { o.binders = slices.Clone(binders) }
}

// WithExpectation overrides the row-count expectation.
func WithExpectation(e Expectation) OperationOption {
	return func(o *Operation) { o.expectation = e }
}

// NewOperation returns an operation of the given type against table.
// The expectation defaults to ExpectOne, or ExpectNone for upserts since
// their row count varies by database.
func NewOperation(table TableMapping, typ MutationType, sql string, opts ...OperationOption) *Operation {
	o := &Operation{
		table:        table,
		mutationType: typ,
		sql:          sql,
		expectation:  ExpectOne,
	}
	if typ == Upsert {
		o.expectation = ExpectNone
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Table returns the table the statement targets.
func (o *Operation) Table() TableMapping { return o.table }

// TableName is shorthand for Table().TableName().
func (o *Operation) TableName() string { return o.table.TableName() }

// MutationType returns the declared mutation type.
func (o *Operation) MutationType() MutationType { return o.mutationType }

// SQL returns the parameterized statement text.
func (o *Operation) SQL() string { return o.sql }

// Callable reports whether the statement is a procedure call.
func (o *Operation) Callable() bool { return o.callable }

// Binders returns the parameter binders in parameter order.
func (o *Operation) Binders() []ParameterBinder { return slices.Clone(o.binders) }

// Expectation returns the row-count expectation.
func (o *Operation) Expectation() Expectation { return o.expectation }

// Bind computes the statement arguments for a row.
func (o *Operation) Bind(v Values) ([]any, error) {
	args := make([]any, len(o.binders))
	for i, b := range o.binders {
		arg, err := b.BindValue(v)
		if err != nil {
			return nil, fmt.Errorf("model: binding parameter %d of %s: %w", i+1, o.TableName(), err)
		}
		args[i] = arg
	}
	return args, nil
}

// CarriesData reports whether any non-key column bound by the operation
// has a non-nil value. Binders other than ColumnBinder always count as data.
func (o *Operation) CarriesData(v Values) bool {
	for _, b := range o.binders {
		cb, ok := b.(ColumnBinder)
		if !ok {
			return true
		}
		if !cb.Key && v[cb.valueName()] != nil {
			return true
		}
	}
	return false
}
