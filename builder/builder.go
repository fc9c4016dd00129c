// Package builder renders the statements of an entity mapping into
// operations a statement group can execute.
package builder

import (
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/syssam/stmtgroup/dialect"
	"github.com/syssam/stmtgroup/model"
)

// Table describes one physical table of an entity mapping.
type Table struct {
	Name string
	// Position is the rank of the table from the root (0) outward.
	// A negative value means unknown.
	Position int
	// Optional tables may have no row for an entity.
	Optional bool
	// Key lists the key columns, in parameter order.
	Key []string
	// KeyValues maps key columns to the value they bind from when the
	// names differ, e.g. entity_id to id for a secondary table joined on
	// the identifier. A generated identifier is written back under its
	// own column name only, so join columns with another name need an
	// entry here.
	KeyValues map[string]string
	// Columns lists the non-key columns, in parameter order.
	Columns []string
	// Generated reports whether the database generates the key on insert.
	Generated bool
}

// Mapping returns the model.TableMapping of the table.
func (t Table) Mapping() model.Table {
	return model.Table{Name: t.Name, Position: t.Position, Optional: t.Optional}
}

func (t Table) keyBinder(column string) model.ColumnBinder {
	return model.ColumnBinder{Column: column, Value: t.KeyValues[column], Key: true}
}

func (t Table) validate(needKey bool) error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("builder: table name is empty")
	}
	if needKey && len(t.Key) == 0 {
		return fmt.Errorf("builder: table %s has no key columns", t.Name)
	}
	return nil
}

// Builder renders operations for a dialect.
type Builder struct {
	dialect string
	format  sq.PlaceholderFormat
}

// New returns a builder for the named dialect. Postgres statements use
// numbered placeholders, all others use question marks.
func New(dialectName string) *Builder {
	b := &Builder{dialect: dialect.FromDriverName(dialectName), format: sq.Question}
	if b.dialect == dialect.Postgres {
		b.format = sq.Dollar
	}
	return b
}

// Dialect returns the dialect the builder renders for.
func (b *Builder) Dialect() string { return b.dialect }

// Operations renders one operation of type typ per table.
func (b *Builder) Operations(typ model.MutationType, tables []Table) ([]*model.Operation, error) {
	ops := make([]*model.Operation, 0, len(tables))
	for _, t := range tables {
		op, err := b.Operation(typ, t)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// Operation renders the operation of type typ for t.
func (b *Builder) Operation(typ model.MutationType, t Table) (*model.Operation, error) {
	switch typ {
	case model.Insert:
		return b.Insert(t)
	case model.Update:
		return b.Update(t)
	case model.Delete:
		return b.Delete(t)
	case model.Upsert:
		return b.Upsert(t)
	default:
		return nil, fmt.Errorf("builder: unsupported mutation type %s", typ)
	}
}

// Insert renders an insert of one row into t. Generated keys are left
// out of the column list.
func (b *Builder) Insert(t Table) (*model.Operation, error) {
	if err := t.validate(false); err != nil {
		return nil, err
	}
	cols, binders := b.insertColumns(t)
	if len(cols) == 0 {
		return model.NewOperation(t.Mapping(), model.Insert, b.emptyInsert(t.Name)), nil
	}
	query, _, err := sq.Insert(t.Name).
		Columns(cols...).
		Values(make([]any, len(cols))...).
		PlaceholderFormat(b.format).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("builder: insert into %s: %w", t.Name, err)
	}
	return model.NewOperation(t.Mapping(), model.Insert, query, model.WithBinders(binders...)), nil
}

func (b *Builder) insertColumns(t Table) ([]string, []model.ParameterBinder) {
	var (
		cols    []string
		binders []model.ParameterBinder
	)
	if !t.Generated {
		for _, k := range t.Key {
			cols = append(cols, k)
			binders = append(binders, t.keyBinder(k))
		}
	}
	for _, c := range t.Columns {
		cols = append(cols, c)
		binders = append(binders, model.ColumnBinder{Column: c})
	}
	return cols, binders
}

func (b *Builder) emptyInsert(table string) string {
	if b.dialect == dialect.MySQL {
		return "INSERT INTO " + table + " () VALUES ()"
	}
	return "INSERT INTO " + table + " DEFAULT VALUES"
}

// Update renders an update of the non-key columns of t by key.
func (b *Builder) Update(t Table) (*model.Operation, error) {
	if err := t.validate(true); err != nil {
		return nil, err
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("builder: table %s has no columns to update", t.Name)
	}
	update := sq.Update(t.Name)
	binders := make([]model.ParameterBinder, 0, len(t.Columns)+len(t.Key))
	for _, c := range t.Columns {
		update = update.Set(c, nil)
		binders = append(binders, model.ColumnBinder{Column: c})
	}
	update, binders = whereKey(update, t, binders)
	query, _, err := update.PlaceholderFormat(b.format).ToSql()
	if err != nil {
		return nil, fmt.Errorf("builder: update %s: %w", t.Name, err)
	}
	return model.NewOperation(t.Mapping(), model.Update, query, model.WithBinders(binders...)), nil
}

// Delete renders a delete of one row of t by key. Rows of optional tables
// may be missing, so their deletes accept any row count.
func (b *Builder) Delete(t Table) (*model.Operation, error) {
	if err := t.validate(true); err != nil {
		return nil, err
	}
	del := sq.Delete(t.Name)
	binders := make([]model.ParameterBinder, 0, len(t.Key))
	for _, k := range t.Key {
		del = del.Where(k+" = ?", nil)
		binders = append(binders, t.keyBinder(k))
	}
	query, _, err := del.PlaceholderFormat(b.format).ToSql()
	if err != nil {
		return nil, fmt.Errorf("builder: delete from %s: %w", t.Name, err)
	}
	opts := []model.OperationOption{model.WithBinders(binders...)}
	if t.Optional {
		opts = append(opts, model.WithExpectation(model.ExpectNone))
	}
	return model.NewOperation(t.Mapping(), model.Delete, query, opts...), nil
}

// Upsert renders an insert of one row into t that updates the non-key
// columns when a row with the same key exists.
func (b *Builder) Upsert(t Table) (*model.Operation, error) {
	if err := t.validate(true); err != nil {
		return nil, err
	}
	cols := append(append([]string{}, t.Key...), t.Columns...)
	binders := make([]model.ParameterBinder, 0, len(cols))
	for _, k := range t.Key {
		binders = append(binders, t.keyBinder(k))
	}
	for _, c := range t.Columns {
		binders = append(binders, model.ColumnBinder{Column: c})
	}
	query, _, err := sq.Insert(t.Name).
		Columns(cols...).
		Values(make([]any, len(cols))...).
		Suffix(b.conflictClause(t)).
		PlaceholderFormat(b.format).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("builder: upsert into %s: %w", t.Name, err)
	}
	return model.NewOperation(t.Mapping(), model.Upsert, query, model.WithBinders(binders...)), nil
}

func (b *Builder) conflictClause(t Table) string {
	sets := make([]string, len(t.Columns))
	if b.dialect == dialect.MySQL {
		for i, c := range t.Columns {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		}
		if len(sets) == 0 {
			sets = []string{t.Key[0] + " = " + t.Key[0]}
		}
		return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	target := "ON CONFLICT (" + strings.Join(t.Key, ", ") + ")"
	if len(sets) == 0 {
		return target + " DO NOTHING"
	}
	for i, c := range t.Columns {
		sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
	}
	return target + " DO UPDATE SET " + strings.Join(sets, ", ")
}

func whereKey(update sq.UpdateBuilder, t Table, binders []model.ParameterBinder) (sq.UpdateBuilder, []model.ParameterBinder) {
	for _, k := range t.Key {
		update = update.Where(k+" = ?", nil)
		binders = append(binders, t.keyBinder(k))
	}
	return update, binders
}
