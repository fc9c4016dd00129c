package stmtgroup

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for the statement group lifecycle.
var (
	// ErrAcquisition is returned when the session refuses to prepare a statement.
	ErrAcquisition = errors.New("stmtgroup: statement acquisition failed")

	// ErrNotSingleStatement is returned when a multi-table group is asked
	// for its single statement.
	ErrNotSingleStatement = errors.New("stmtgroup: group contains more than one statement")

	// ErrOutcomeMismatch is returned when the row count reported by the
	// driver violates the operation's expectation.
	ErrOutcomeMismatch = errors.New("stmtgroup: unexpected row count")

	// ErrDuplicateTable is returned when a group is built with two
	// operations against the same table.
	ErrDuplicateTable = errors.New("stmtgroup: duplicate table in mutation")

	// ErrHandleReleased is returned when a released statement handle is resolved again.
	ErrHandleReleased = errors.New("stmtgroup: statement handle already released")
)

// AcquisitionError wraps a failure to prepare the statement of one table.
type AcquisitionError struct {
	Table string
	SQL   string
	Err   error
}

// Error returns the error string.
func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("stmtgroup: preparing statement for table %q: %v", e.Table, e.Err)
}

// Unwrap returns the underlying error.
func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches AcquisitionError.
func (e *AcquisitionError) Is(err error) bool {
	return err == ErrAcquisition
}

// NewAcquisitionError returns a new AcquisitionError.
func NewAcquisitionError(table, sql string, err error) *AcquisitionError {
	return &AcquisitionError{Table: table, SQL: sql, Err: err}
}

// IsAcquisitionError returns true if the error is an AcquisitionError.
func IsAcquisitionError(err error) bool {
	if err == nil {
		return false
	}
	var e *AcquisitionError
	return errors.As(err, &e)
}

// NotSingleStatementError is returned by groups that cannot be reduced to
// one statement.
type NotSingleStatementError struct {
	MutationType string
	Role         string
}

// Error returns the error string.
func (e *NotSingleStatementError) Error() string {
	return fmt.Sprintf("stmtgroup: statement group contained more than one statement - %s : %s", e.MutationType, e.Role)
}

// Is reports whether the target error matches NotSingleStatementError.
func (e *NotSingleStatementError) Is(err error) bool {
	return err == ErrNotSingleStatement
}

// NewNotSingleStatementError returns a new NotSingleStatementError.
func NewNotSingleStatementError(mutationType, role string) *NotSingleStatementError {
	return &NotSingleStatementError{MutationType: mutationType, Role: role}
}

// IsNotSingleStatement returns true if the error is a NotSingleStatementError.
func IsNotSingleStatement(err error) bool {
	if err == nil {
		return false
	}
	var e *NotSingleStatementError
	return errors.As(err, &e)
}

// OutcomeMismatchError reports a row count that violates an expectation.
// It typically signals a stale entity state.
type OutcomeMismatchError struct {
	Table    string
	SQL      string
	Expected string // Expectation description, e.g. "exactly 1 row".
	Actual   int64
}

// Error returns the error string.
func (e *OutcomeMismatchError) Error() string {
	return fmt.Sprintf("stmtgroup: table %q: expected %s affected, got %d [%s]", e.Table, e.Expected, e.Actual, e.SQL)
}

// Is reports whether the target error matches OutcomeMismatchError.
func (e *OutcomeMismatchError) Is(err error) bool {
	return err == ErrOutcomeMismatch
}

// NewOutcomeMismatchError returns a new OutcomeMismatchError.
func NewOutcomeMismatchError(table, sql, expected string, actual int64) *OutcomeMismatchError {
	return &OutcomeMismatchError{Table: table, SQL: sql, Expected: expected, Actual: actual}
}

// IsOutcomeMismatch returns true if the error is an OutcomeMismatchError.
func IsOutcomeMismatch(err error) bool {
	if err == nil {
		return false
	}
	var e *OutcomeMismatchError
	return errors.As(err, &e)
}

// DuplicateTableError is returned when a group receives two operations
// for the same table.
type DuplicateTableError struct {
	Table string
}

// Error returns the error string.
func (e *DuplicateTableError) Error() string {
	return fmt.Sprintf("stmtgroup: table %q appears more than once in mutation", e.Table)
}

// Is reports whether the target error matches DuplicateTableError.
func (e *DuplicateTableError) Is(err error) bool {
	return err == ErrDuplicateTable
}

// NewDuplicateTableError returns a new DuplicateTableError.
func NewDuplicateTableError(table string) *DuplicateTableError {
	return &DuplicateTableError{Table: table}
}

// IsDuplicateTable returns true if the error is a DuplicateTableError.
func IsDuplicateTable(err error) bool {
	if err == nil {
		return false
	}
	var e *DuplicateTableError
	return errors.As(err, &e)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("stmtgroup: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// MutationError wraps a failure of one statement of a logical mutation.
type MutationError struct {
	Entity string // Navigable role of the mutated entity
	Op     string // INSERT, UPDATE or DELETE
	Table  string // Table whose statement failed, if known
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("stmtgroup: %s %s (table %s): %v", e.Op, e.Entity, e.Table, e.Err)
	}
	return fmt.Sprintf("stmtgroup: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewMutationError returns a new MutationError.
func NewMutationError(entity, op, table string, err error) *MutationError {
	return &MutationError{Entity: entity, Op: op, Table: table, Err: err}
}

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MutationError
	return errors.As(err, &e)
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "stmtgroup: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("stmtgroup: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
