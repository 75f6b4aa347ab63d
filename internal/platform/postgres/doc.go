// Package postgres provides the PostgreSQL journal backend.
//
// JournalStore implements store.JournalStore and task.Journal on top of a
// database/sql pool opened with the pgx driver. Open connects and verifies
// the connection, Migrate applies the embedded goose migrations, and MapError
// translates PostgreSQL error codes into the store package's sentinel errors.
package postgres
