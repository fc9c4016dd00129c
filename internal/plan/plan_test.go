package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/stmtgroup/builder"
	"github.com/syssam/stmtgroup/model"
	"github.com/syssam/stmtgroup/session"
)

const entityPlan = `
entity: com.example.Entity
identifier:
  table: entities
  column: id
  generated: true
tables:
  - name: supplements
    position: 1
    optional: true
    key: [id]
    columns: [data]
  - name: entities
    position: 0
    key: [id]
    columns: [name]
mutations:
  - type: insert
    values:
      name: first
      data: extra
  - type: update
    values:
      name: renamed
      data: changed
  - type: upsert
    values:
      name: merged
      data: merged
  - type: delete
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(entityPlan))
	require.NoError(t, err)
	assert.Equal(t, "com.example.Entity", p.Entity)
	assert.Equal(t, Identifier{Table: "entities", Column: "id", Generated: true}, p.Identifier)
	require.Len(t, p.Mutations, 4)
	assert.Equal(t, "first", p.Mutations[0].Values["name"])
	assert.Nil(t, p.Mutations[3].Values)

	assert.Equal(t, []builder.Table{
		{Name: "supplements", Position: 1, Optional: true, Key: []string{"id"}, Columns: []string{"data"}},
		{Name: "entities", Position: 0, Key: []string{"id"}, Columns: []string{"name"}, Generated: true},
	}, p.BuilderTables())
}

func TestParse_UnknownPosition(t *testing.T) {
	p, err := Parse([]byte(`
entity: com.example.Tag
identifier: {table: tags, column: id}
tables:
  - {name: tags, key: [id], columns: [label]}
`))
	require.NoError(t, err)
	tables := p.BuilderTables()
	require.Len(t, tables, 1)
	assert.Equal(t, -1, tables[0].Position)
	assert.False(t, tables[0].Generated)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "unknown field",
			in:   "entity: x\nidentifier: {table: t, column: id}\ntables: [{name: t, pk: [id]}]\n",
			want: []string{"field pk not found"},
		},
		{
			name: "incomplete",
			in:   "identifier: {table: missing}\n",
			want: []string{"entity is required", "at least one table", `identifier table "missing"`, "identifier column is required"},
		},
		{
			name: "key_values outside key",
			in:   "entity: x\nidentifier: {table: t, column: id}\ntables: [{name: t, key: [id], key_values: {other_id: id}}]\n",
			want: []string{`key_values column "other_id" is not a key column`},
		},
		{
			name: "bad mutation type",
			in:   "entity: x\nidentifier: {table: t, column: id}\ntables: [{name: t, key: [id]}]\nmutations: [{type: truncate}]\n",
			want: []string{"mutation 1", `unknown mutation type "truncate"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.in))
			require.Error(t, err)
			for _, want := range tt.want {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(entityPlan), 0o600))
	p, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, p.Tables, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestTarget(t *testing.T) {
	p, err := Parse([]byte(entityPlan))
	require.NoError(t, err)
	delegate := session.IdentityDelegateFor("sqlite", "id")

	target := p.Target(delegate)
	assert.Equal(t, model.Role("com.example.Entity"), target.NavigableRole())
	assert.Equal(t, "entities", target.IdentifierTableName())
	assert.Equal(t, "id", target.IdentifierColumnName())
	assert.NotNil(t, target.IdentityInsertDelegate())

	p.Identifier.Generated = false
	assert.Nil(t, p.Target(delegate).IdentityInsertDelegate())
}
