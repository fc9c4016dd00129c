package mutation

import (
	"context"
	"fmt"
	"maps"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/syssam/stmtgroup"
	"github.com/syssam/stmtgroup/dialect/sql/sqlgraph"
	"github.com/syssam/stmtgroup/model"
)

const tracerName = "github.com/syssam/stmtgroup/mutation"

// Result describes an executed mutation.
type Result struct {
	// Values holds the row values the statements were bound from,
	// including a generated identifier.
	Values model.Values
	// Executed lists the tables whose statement ran, in execution order.
	Executed []string
	// Skipped lists optional tables left out of an insert for lack of data.
	Skipped []string
	// RowsAffected maps each executed table to its reported row count.
	RowsAffected map[string]int64
	// GeneratedKey is the key captured by an identity insert, if any.
	GeneratedKey any
}

// Executor drives the statements of a group for one row.
type Executor struct {
	session model.Session
	tracer  trace.Tracer
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithTracerProvider sets the provider executor spans are created from.
// It defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) ExecutorOption {
	return func(e *Executor) { e.tracer = tp.Tracer(tracerName) }
}

// NewExecutor returns an executor running groups of session s.
func NewExecutor(s model.Session, opts ...ExecutorOption) *Executor {
	e := &Executor{session: s}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	return e
}

// Execute binds values to the statements of g and runs them in group
// order, stopping at the first failure. Optional tables without data are
// skipped on insert. A key generated by an identity insert is stored
// under the identifier column before the next statement is bound. The
// group is released when Execute returns.
func (e *Executor) Execute(ctx context.Context, g Group, values model.Values) (_ *Result, err error) {
	defer g.Release()
	typ := g.MutationType()
	entity := g.Target().NavigableRole().FullPath()
	ctx, span := e.tracer.Start(ctx, "stmtgroup.execute", trace.WithAttributes(
		attribute.String("stmtgroup.mutation_type", typ.String()),
		attribute.String("stmtgroup.entity", entity),
		attribute.Int("stmtgroup.size", g.Size()),
	))
	defer func() {
		recordSpanError(span, err)
		span.End()
	}()

	res := &Result{
		Values:       maps.Clone(values),
		RowsAffected: make(map[string]int64, g.Size()),
	}
	if res.Values == nil {
		res.Values = model.Values{}
	}
	for table, h := range g.All() {
		op := h.Operation()
		if typ.Normalize() == model.Insert && op.Table().IsOptional() && !op.CarriesData(res.Values) {
			e.session.Logger().DebugContext(ctx, "skipping optional table without data", "table", table)
			res.Skipped = append(res.Skipped, table)
			continue
		}
		if err := e.execute(ctx, g, table, h, res); err != nil {
			return nil, stmtgroup.NewMutationError(entity, typ.String(), table, err)
		}
	}
	return res, nil
}

func (e *Executor) execute(ctx context.Context, g Group, table string, h *Handle, res *Result) (err error) {
	ctx, span := e.tracer.Start(ctx, "stmtgroup.statement", trace.WithAttributes(
		attribute.String("db.sql.table", table),
		attribute.Bool("stmtgroup.identity_insert", h.UsesIdentityInsert()),
	))
	defer func() {
		recordSpanError(span, err)
		span.End()
	}()

	args, err := h.Operation().Bind(res.Values)
	if err != nil {
		return err
	}
	if _, err := g.Resolve(ctx, table); err != nil {
		return err
	}
	stmt, err := h.Resolve(ctx)
	if err != nil {
		return err
	}
	r, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		if sqlgraph.IsConstraintError(err) {
			return stmtgroup.NewConstraintError(err.Error(), err)
		}
		return err
	}
	rows, err := r.RowsAffected()
	if err != nil {
		return fmt.Errorf("mutation: reading affected rows: %w", err)
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", rows))
	res.RowsAffected[table] = rows
	if err := h.CheckOutcome(rows); err != nil {
		return err
	}
	if h.UsesIdentityInsert() {
		e.captureKey(g, stmt, res)
	}
	res.Executed = append(res.Executed, table)
	e.session.Logger().DebugContext(ctx, "statement executed", "table", table, "rows", rows)
	return nil
}

func (e *Executor) captureKey(g Group, stmt model.Statement, res *Result) {
	gk, ok := stmt.(model.GeneratedKeyStatement)
	if !ok {
		return
	}
	key, ok := gk.GeneratedKey()
	if !ok {
		return
	}
	res.GeneratedKey = key
	if et, ok := g.Target().(model.EntityMutationTarget); ok && et.IdentifierColumnName() != "" {
		res.Values[et.IdentifierColumnName()] = key
	}
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
