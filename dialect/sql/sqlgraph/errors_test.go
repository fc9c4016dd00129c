package sqlgraph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueConstraintError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"pq", &pq.Error{Code: "23505"}, true},
		{"pq_other_code", &pq.Error{Code: "23503"}, false},
		{"pgx", &pgconn.PgError{Code: "23505"}, true},
		{"mysql", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true},
		{"mysql_other", &mysql.MySQLError{Number: 1452}, false},
		{"sqlite", errors.New("constraint failed: UNIQUE constraint failed: entities.id (2067)"), true},
		{"sqlite_primary_key", errors.New("PRIMARY KEY constraint failed"), true},
		{"wrapped", fmt.Errorf("dialect/sql: exec: %w", &pgconn.PgError{Code: "23505"}), true},
		{"other", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueConstraintError(tt.err))
		})
	}
}

func TestIsForeignKeyConstraintError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"pq", &pq.Error{Code: "23503"}, true},
		{"pgx", &pgconn.PgError{Code: "23503"}, true},
		{"mysql_parent", &mysql.MySQLError{Number: 1451}, true},
		{"mysql_child", &mysql.MySQLError{Number: 1452}, true},
		{"sqlite", errors.New("FOREIGN KEY constraint failed"), true},
		{"unique", &pq.Error{Code: "23505"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsForeignKeyConstraintError(tt.err))
		})
	}
}

func TestIsCheckAndNotNullConstraintError(t *testing.T) {
	assert.True(t, IsCheckConstraintError(&pgconn.PgError{Code: "23514"}))
	assert.True(t, IsCheckConstraintError(&mysql.MySQLError{Number: 3819}))
	assert.True(t, IsCheckConstraintError(errors.New("CHECK constraint failed: positive")))
	assert.False(t, IsCheckConstraintError(nil))

	assert.True(t, IsNotNullConstraintError(&pq.Error{Code: "23502"}))
	assert.True(t, IsNotNullConstraintError(&mysql.MySQLError{Number: 1048}))
	assert.True(t, IsNotNullConstraintError(errors.New("NOT NULL constraint failed: entities.name")))
	assert.False(t, IsNotNullConstraintError(errors.New("disk full")))
}

func TestIsConstraintError(t *testing.T) {
	assert.True(t, IsConstraintError(&pq.Error{Code: "23505"}))
	assert.True(t, IsConstraintError(&mysql.MySQLError{Number: 1452}))
	assert.True(t, IsConstraintError(errors.New("NOT NULL constraint failed: supplements.id")))
	assert.False(t, IsConstraintError(errors.New("database is locked")))
	assert.False(t, IsConstraintError(nil))
}
