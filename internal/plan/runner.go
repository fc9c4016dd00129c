package plan

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/syssam/stmtgroup"
	"github.com/syssam/stmtgroup/builder"
	"github.com/syssam/stmtgroup/dialect"
	"github.com/syssam/stmtgroup/internal/logging"
	"github.com/syssam/stmtgroup/model"
	"github.com/syssam/stmtgroup/mutation"
	"github.com/syssam/stmtgroup/session"
)

// Runner applies plans against a database.
type Runner struct {
	driver   dialect.Driver
	dialect  string
	logger   *slog.Logger
	execOpts []mutation.ExecutorOption
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger of the sessions the runner opens. It
// defaults to the logger carried by the context given to Apply.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithExecutorOptions sets the options of the mutation executor.
func WithExecutorOptions(opts ...mutation.ExecutorOption) RunnerOption {
	return func(r *Runner) { r.execOpts = append(r.execOpts, opts...) }
}

// NewRunner returns a runner applying plans through drv.
func NewRunner(drv dialect.Driver, dialectName string, opts ...RunnerOption) *Runner {
	r := &Runner{driver: drv, dialect: dialect.FromDriverName(dialectName)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply runs the mutations of p in order in a single transaction. A key
// generated by an insert is bound into later mutations that do not set
// the identifier column themselves. Any failure rolls the transaction
// back.
func (r *Runner) Apply(ctx context.Context, p *Plan) ([]*mutation.Result, error) {
	logger := r.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	tx, err := r.driver.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("plan: starting transaction: %w", err)
	}
	s := session.New(tx, session.WithDialect(r.dialect), session.WithLogger(logger))
	target := p.Target(s.IdentityDelegate(p.Identifier.Column))
	exec := mutation.NewExecutor(s, r.execOpts...)
	b := builder.New(r.dialect)

	var (
		results []*mutation.Result
		lastKey any
	)
	for i, m := range p.Mutations {
		values := model.Values(maps.Clone(m.Values))
		if values == nil {
			values = model.Values{}
		}
		if _, ok := values[p.Identifier.Column]; !ok && lastKey != nil {
			values[p.Identifier.Column] = lastKey
		}
		res, err := r.apply(ctx, s, b, exec, target, p, m, values)
		if err != nil {
			err = fmt.Errorf("plan: mutation %d (%s): %w", i+1, m.Type, err)
			if rerr := tx.Rollback(); rerr != nil {
				return nil, stmtgroup.NewAggregateError(err, fmt.Errorf("plan: rollback: %w", rerr))
			}
			return nil, err
		}
		if res.GeneratedKey != nil {
			lastKey = res.GeneratedKey
		}
		results = append(results, res)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("plan: commit: %w", err)
	}
	return results, nil
}

func (r *Runner) apply(ctx context.Context, s *session.Session, b *builder.Builder, exec *mutation.Executor, target model.MutationTarget, p *Plan, m Mutation, values model.Values) (*mutation.Result, error) {
	typ, err := model.ParseMutationType(m.Type)
	if err != nil {
		return nil, err
	}
	tables := p.BuilderTables()
	if typ == model.Update {
		// Tables holding only key columns have nothing to update.
		updatable := tables[:0]
		for _, t := range tables {
			if len(t.Columns) > 0 {
				updatable = append(updatable, t)
			}
		}
		tables = updatable
	}
	ops, err := b.Operations(typ, tables)
	if err != nil {
		return nil, err
	}
	result := model.ValidateOperations(typ, ops)
	if result.HasWarnings() {
		s.Logger().WarnContext(ctx, "mutation plan warnings", "entity", p.Entity, "type", typ.String(), "result", result.String())
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	g, err := mutation.NewGroup(typ, target, ops, s)
	if err != nil {
		return nil, err
	}
	return exec.Execute(ctx, g, values)
}
