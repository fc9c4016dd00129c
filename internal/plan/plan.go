// Package plan reads mutation plans: an entity mapping and the row
// changes to apply to it.
package plan

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/syssam/stmtgroup/builder"
	"github.com/syssam/stmtgroup/model"
)

// Plan is a mapped entity and the mutations to apply to it, in order.
type Plan struct {
	Entity     string     `yaml:"entity"`
	Identifier Identifier `yaml:"identifier"`
	Tables     []Table    `yaml:"tables"`
	Mutations  []Mutation `yaml:"mutations"`
}

// Identifier names the table and column holding the primary key.
type Identifier struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
	// Generated reports whether the database generates the key.
	Generated bool `yaml:"generated"`
}

// Table is one physical table of the entity.
type Table struct {
	Name string `yaml:"name"`
	// Position is the rank from the root table; unknown when absent.
	Position *int     `yaml:"position"`
	Optional bool     `yaml:"optional"`
	Key      []string `yaml:"key"`
	Columns  []string `yaml:"columns"`
	// KeyValues binds key columns from differently named values, e.g.
	// {entity_id: id} for a table joined on the identifier.
	KeyValues map[string]string `yaml:"key_values"`
}

// Mutation is one row change.
type Mutation struct {
	Type   string         `yaml:"type"`
	Values map[string]any `yaml:"values"`
}

// Load reads and validates the plan at path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML plan. Unknown fields are rejected.
func Parse(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var p Plan
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("plan: decoding: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the plan is complete and refers to its own tables.
func (p *Plan) Validate() error {
	var errs []error
	if p.Entity == "" {
		errs = append(errs, errors.New("plan: entity is required"))
	}
	if len(p.Tables) == 0 {
		errs = append(errs, errors.New("plan: at least one table is required"))
	}
	found := false
	for _, t := range p.Tables {
		if t.Name == p.Identifier.Table {
			found = true
		}
		for col := range t.KeyValues {
			if !slices.Contains(t.Key, col) {
				errs = append(errs, fmt.Errorf("plan: table %s: key_values column %q is not a key column", t.Name, col))
			}
		}
	}
	if !found {
		errs = append(errs, fmt.Errorf("plan: identifier table %q is not among the tables", p.Identifier.Table))
	}
	if p.Identifier.Column == "" {
		errs = append(errs, errors.New("plan: identifier column is required"))
	}
	for i, m := range p.Mutations {
		if _, err := model.ParseMutationType(m.Type); err != nil {
			errs = append(errs, fmt.Errorf("plan: mutation %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

// BuilderTables returns the tables in declared order. The key of the
// identifier table is marked generated when the database generates it.
func (p *Plan) BuilderTables() []builder.Table {
	tables := make([]builder.Table, len(p.Tables))
	for i, t := range p.Tables {
		pos := -1
		if t.Position != nil {
			pos = *t.Position
		}
		tables[i] = builder.Table{
			Name:      t.Name,
			Position:  pos,
			Optional:  t.Optional,
			Key:       t.Key,
			KeyValues: t.KeyValues,
			Columns:   t.Columns,
			Generated: p.Identifier.Generated && t.Name == p.Identifier.Table,
		}
	}
	return tables
}

// Target returns the mutation target of the entity. The identity insert
// delegate is attached only when the database generates the key.
func (p *Plan) Target(identity model.IdentityInsertDelegate) *model.EntityTarget {
	t := &model.EntityTarget{
		Role:             model.Role(p.Entity),
		IdentifierTable:  p.Identifier.Table,
		IdentifierColumn: p.Identifier.Column,
	}
	if p.Identifier.Generated {
		t.Identity = identity
	}
	return t
}
