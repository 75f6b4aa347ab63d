//go:build integration

// Package testdb connects integration tests to a real PostgreSQL database.
//
// The database URL comes from THROTTLEQ_TEST_DB_URL, DATABASE_URL or
// THROTTLEQ_DATABASE_URL, in that order. Tests are skipped when none is set,
// except in CI where a missing database fails the run. Open applies the
// journal migrations before returning.
package testdb
