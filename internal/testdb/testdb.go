//go:build integration

package testdb

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/throttleq/internal/ciutil"
	"github.com/phrazzld/throttleq/internal/platform/postgres"
	"github.com/phrazzld/throttleq/internal/redact"
)

// TestTimeout bounds connection and migration in Open.
const TestTimeout = 30 * time.Second

// URL returns the test database URL, skipping the test when there is none.
func URL(t *testing.T) string {
	t.Helper()
	dsn := ciutil.TestDatabaseURL(nil)
	if dsn == "" {
		if ciutil.IsCI() {
			t.Fatalf("no test database configured in CI: set %s", ciutil.EnvTestDatabaseURL)
		}
		t.Skipf("no test database configured: set %s to run", ciutil.EnvTestDatabaseURL)
	}
	return dsn
}

// Open connects to the test database, applies migrations and closes the
// connection when the test ends.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	dsn := URL(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	db, err := postgres.Open(ctx, dsn, postgres.PoolConfig{MaxOpenConns: 4}, logger)
	if err != nil {
		t.Fatalf("failed to connect to test database: %s", redact.Error(err))
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := postgres.Migrate(ctx, db, logger); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// JournalName returns a journal name unique to this test and removes the
// journal's rows when the test ends.
func JournalName(t *testing.T, db *sql.DB) string {
	t.Helper()
	name := "test-" + uuid.NewString()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
		defer cancel()
		_, _ = db.ExecContext(ctx, `DELETE FROM journal_records WHERE journal = $1`, name)
		_, _ = db.ExecContext(ctx, `DELETE FROM journals WHERE name = $1`, name)
	})
	return name
}
