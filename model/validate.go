package model

import (
	"fmt"
	"strings"
)

// ValidationError describes a problem with the operations of a mutation.
type ValidationError struct {
	Table   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s: %s", e.Table, e.Message)
	}
	return e.Message
}

// ValidationResult holds the results of operation validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Err returns the first error, or nil.
func (r *ValidationResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("Validation passed")
	}
	return sb.String()
}

func (r *ValidationResult) addError(table, format string, args ...any) {
	r.Errors = append(r.Errors, &ValidationError{Table: table, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) addWarning(table, format string, args ...any) {
	r.Warnings = append(r.Warnings, &ValidationError{Table: table, Message: fmt.Sprintf(format, args...)})
}

// ValidateOperations checks the operations of one logical mutation of
// type typ. Duplicate tables, empty statements and operations of a
// different kind are errors. Unknown or colliding relative positions are
// warnings: the group tolerates them but their order is only as stable as
// the input order.
func ValidateOperations(typ MutationType, ops []*Operation) *ValidationResult {
	result := &ValidationResult{}
	seen := make(map[string]struct{}, len(ops))
	positions := make(map[int]string, len(ops))
	for i, op := range ops {
		if op == nil || op.Table() == nil {
			result.addError("", "operation %d has no table", i)
			continue
		}
		name := op.TableName()
		if name == "" {
			result.addError("", "operation %d has an empty table name", i)
		}
		if _, ok := seen[name]; ok {
			result.addError(name, "table appears more than once")
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(op.SQL()) == "" {
			result.addError(name, "empty SQL")
		}
		if op.MutationType().Normalize() != typ.Normalize() {
			result.addError(name, "%s operation in %s mutation", op.MutationType(), typ)
		}
		pos, ok := op.Table().RelativePosition()
		if !ok {
			result.addWarning(name, "relative position unknown")
			continue
		}
		if other, ok := positions[pos]; ok {
			result.addWarning(name, "relative position %d shared with %s", pos, other)
		}
		positions[pos] = name
	}
	return result
}
