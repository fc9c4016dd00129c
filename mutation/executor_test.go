package mutation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/syssam/stmtgroup"
	"github.com/syssam/stmtgroup/model"
)

func newRecorder(t *testing.T) (*tracetest.SpanRecorder, ExecutorOption) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	tp.RegisterSpanProcessor(recorder)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return recorder, WithTracerProvider(tp)
}

func findSpans(spans []sdktrace.ReadOnlySpan, name string) []sdktrace.ReadOnlySpan {
	var found []sdktrace.ReadOnlySpan
	for _, span := range spans {
		if span.Name() == name {
			found = append(found, span)
		}
	}
	return found
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func insertOps() []*model.Operation {
	return []*model.Operation{
		model.NewOperation(supplements, model.Insert, insertSupplement, model.WithBinders(
			model.ColumnBinder{Column: "id", Key: true},
			model.ColumnBinder{Column: "data"},
		)),
		model.NewOperation(entities, model.Insert, insertEntity, model.WithBinders(
			model.ColumnBinder{Column: "id", Key: true},
			model.ColumnBinder{Column: "name"},
		)),
	}
}

func TestExecutor_InsertWithIdentity(t *testing.T) {
	ctx := context.Background()
	recorder, opt := newRecorder(t)
	s := newFakeSession()
	d := &fakeDelegate{key: int64(42)}

	g, err := NewStandardGroup(model.Insert, entityTarget(d), insertOps(), s)
	require.NoError(t, err)
	values := model.Values{"name": "first", "data": "extra"}
	res, err := NewExecutor(s, opt).Execute(ctx, g, values)
	require.NoError(t, err)

	assert.Equal(t, []string{"entities", "supplements"}, res.Executed)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, int64(42), res.GeneratedKey)
	assert.Equal(t, int64(42), res.Values["id"])
	assert.NotContains(t, values, "id", "caller values are not modified")
	assert.Equal(t, map[string]int64{"entities": 1, "supplements": 1}, res.RowsAffected)

	assert.Equal(t, [][]any{{nil, "first"}}, s.stmt(insertEntity).args)
	assert.Equal(t, [][]any{{int64(42), "extra"}}, s.stmt(insertSupplement).args)
	assert.Len(t, s.released, 2)
	assert.Equal(t, 0, g.ActiveCount())

	spans := recorder.Ended()
	require.Len(t, findSpans(spans, "stmtgroup.execute"), 1)
	stmtSpans := findSpans(spans, "stmtgroup.statement")
	require.Len(t, stmtSpans, 2)
	table, ok := spanAttr(stmtSpans[0], "db.sql.table")
	require.True(t, ok)
	assert.Equal(t, "entities", table.AsString())
	identity, ok := spanAttr(stmtSpans[0], "stmtgroup.identity_insert")
	require.True(t, ok)
	assert.True(t, identity.AsBool())
	rows, ok := spanAttr(stmtSpans[1], "db.rows_affected")
	require.True(t, ok)
	assert.Equal(t, int64(1), rows.AsInt64())
}

func TestExecutor_SkipsOptionalTable(t *testing.T) {
	s := newFakeSession()
	optional := model.Table{Name: "supplements", Position: 1, Optional: true}
	ops := []*model.Operation{
		model.NewOperation(entities, model.Insert, insertEntity, model.WithBinders(
			model.ColumnBinder{Column: "id", Key: true},
			model.ColumnBinder{Column: "name"},
		)),
		model.NewOperation(optional, model.Insert, insertSupplement, model.WithBinders(
			model.ColumnBinder{Column: "id", Key: true},
			model.ColumnBinder{Column: "data"},
		)),
	}
	g, err := NewStandardGroup(model.Insert, entityTarget(nil), ops, s)
	require.NoError(t, err)

	res, err := NewExecutor(s).Execute(context.Background(), g, model.Values{"id": 1, "name": "only"})
	require.NoError(t, err)
	assert.Equal(t, []string{"entities"}, res.Executed)
	assert.Equal(t, []string{"supplements"}, res.Skipped)
	assert.Nil(t, res.GeneratedKey)
	assert.Equal(t, []string{insertEntity}, s.prepared, "skipped tables are never prepared")
	assert.Contains(t, s.logs.String(), "skipping optional table without data")
}

func TestExecutor_PartialUpdate(t *testing.T) {
	s := newFakeSession()
	ops := []*model.Operation{
		model.NewOperation(supplements, model.Update, updateSupplement, model.WithBinders(
			model.ColumnBinder{Column: "data"},
			model.ColumnBinder{Column: "id", Key: true},
		)),
	}
	g, err := NewGroup(model.Update, entityTarget(nil), ops, s)
	require.NoError(t, err)

	res, err := NewExecutor(s).Execute(context.Background(), g, model.Values{"id": 3, "data": "changed"})
	require.NoError(t, err)
	assert.Equal(t, []string{"supplements"}, res.Executed)
	assert.Equal(t, [][]any{{"changed", 3}}, s.stmt(updateSupplement).args)
	assert.Len(t, s.released, 1)
}

func TestExecutor_Failures(t *testing.T) {
	updateOps := func() []*model.Operation {
		return []*model.Operation{
			model.NewOperation(entities, model.Update, updateEntity, model.WithBinders(
				model.ColumnBinder{Column: "name"},
				model.ColumnBinder{Column: "id", Key: true},
			)),
			model.NewOperation(supplements, model.Update, updateSupplement, model.WithBinders(
				model.ColumnBinder{Column: "data"},
				model.ColumnBinder{Column: "id", Key: true},
			)),
		}
	}
	tests := []struct {
		name     string
		setup    func(*fakeSession)
		ops      func() []*model.Operation
		check    func(*testing.T, error)
		released int
	}{
		{
			name:  "stale row",
			setup: func(s *fakeSession) { s.stmt(updateEntity).rows = 0 },
			ops:   updateOps,
			check: func(t *testing.T, err error) {
				assert.True(t, stmtgroup.IsOutcomeMismatch(err))
			},
			released: 1,
		},
		{
			name:  "acquisition",
			setup: func(s *fakeSession) { s.prepareErr[updateSupplement] = errors.New("no such table: supplements") },
			ops:   updateOps,
			check: func(t *testing.T, err error) {
				assert.True(t, stmtgroup.IsAcquisitionError(err))
			},
			released: 1,
		},
		{
			name:  "constraint",
			setup: func(s *fakeSession) { s.stmt(updateEntity).execErr = errors.New("UNIQUE constraint failed: entities.name") },
			ops:   updateOps,
			check: func(t *testing.T, err error) {
				assert.True(t, stmtgroup.IsConstraintError(err))
			},
			released: 1,
		},
		{
			name:  "binding",
			setup: func(*fakeSession) {},
			ops: func() []*model.Operation {
				return []*model.Operation{
					model.NewOperation(entities, model.Update, updateEntity, model.WithBinders(
						model.BinderFunc(func(model.Values) (any, error) { return nil, errors.New("unsupported type") }),
					)),
				}
			},
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "binding parameter 1 of entities")
			},
			released: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder, opt := newRecorder(t)
			s := newFakeSession()
			tt.setup(s)
			g, err := NewGroup(model.Update, entityTarget(nil), tt.ops(), s)
			require.NoError(t, err)

			res, err := NewExecutor(s, opt).Execute(context.Background(), g, model.Values{"id": 1, "name": "n", "data": "d"})
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, stmtgroup.IsMutationError(err))
			var me *stmtgroup.MutationError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, "com.example.Entity", me.Entity)
			assert.Equal(t, "UPDATE", me.Op)
			tt.check(t, err)

			assert.Len(t, s.released, tt.released)
			assert.Equal(t, 0, g.ActiveCount())

			spans := findSpans(recorder.Ended(), "stmtgroup.execute")
			require.Len(t, spans, 1)
			assert.Equal(t, codes.Error, spans[0].Status().Code)
		})
	}
}
