package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/throttleq/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: uniqueViolationCode}, store.ErrDuplicate},
		{"check violation", &pgconn.PgError{Code: checkViolationCode, ConstraintName: "journals_record_count_check"}, store.ErrInvalidEntity},
		{"not null violation", &pgconn.PgError{Code: notNullViolationCode, ColumnName: "payload"}, store.ErrInvalidEntity},
		{"bad json", &pgconn.PgError{Code: invalidTextRepresentationCode}, store.ErrInvalidEntity},
		{"missing table", fmt.Errorf("query: %w", &pgconn.PgError{Code: undefinedTableCode}), ErrSchemaMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapError(tt.err)
			assert.ErrorIs(t, mapped, tt.expected)
		})
	}

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, MapError(nil))
	})

	t.Run("unmapped errors pass through", func(t *testing.T) {
		original := errors.New("connection refused")
		assert.Same(t, original, MapError(original))

		pgErr := &pgconn.PgError{Code: "57014"}
		assert.Equal(t, error(pgErr), MapError(pgErr))
	})
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: uniqueViolationCode}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: uniqueViolationCode})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: checkViolationCode}))
	assert.False(t, IsUniqueViolation(errors.New("plain")))
}

func TestMaskURL(t *testing.T) {
	assert.Equal(t, "postgres://app:xxxxx@db:5432/queue", MaskURL("postgres://app:secret@db:5432/queue"))
	assert.Equal(t, "postgres://db:5432/queue", MaskURL("postgres://db:5432/queue"))
	assert.Equal(t, "not a url %%", MaskURL("not a url %%"))
}

func TestSlogGooseLogger(t *testing.T) {
	l := &slogGooseLogger{logger: discardLogger()}
	assert.NotPanics(t, func() {
		l.Printf("OK   %s (%s)\n", "00001_create_journal_tables.sql", "12ms")
		l.Fatalf("failed: %v", errors.New("boom"))
	})
}
