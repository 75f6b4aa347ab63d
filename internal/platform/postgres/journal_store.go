package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/phrazzld/throttleq/internal/platform/logger"
	"github.com/phrazzld/throttleq/internal/store"
)

const (
	insertRecordQuery = `
		INSERT INTO journal_records (journal, payload, created_at)
		VALUES ($1, $2, $3)
	`

	touchJournalQuery = `
		INSERT INTO journals (name, record_count, created_at, updated_at)
		VALUES ($1, 1, $2, $2)
		ON CONFLICT (name) DO UPDATE
		SET record_count = journals.record_count + 1, updated_at = EXCLUDED.updated_at
	`

	loadRecordsQuery = `
		SELECT payload
		FROM journal_records
		WHERE journal = $1
		ORDER BY id
	`

	journalStatsQuery = `
		SELECT record_count, updated_at
		FROM journals
		WHERE name = $1
	`

	deleteRecordsQuery = `DELETE FROM journal_records WHERE journal = $1`
	deleteJournalQuery = `DELETE FROM journals WHERE name = $1`
)

// JournalStore keeps a named journal in PostgreSQL.
// It implements store.JournalStore and task.Journal.
type JournalStore struct {
	db     store.TxBeginner
	name   string
	logger *slog.Logger
	now    func() time.Time
}

var _ store.JournalStore = (*JournalStore)(nil)

// NewJournalStore creates a JournalStore for the journal called name.
func NewJournalStore(db store.TxBeginner, name string, logger *slog.Logger) *JournalStore {
	return &JournalStore{
		db:     db,
		name:   name,
		logger: logger.With("component", "journal_store", "journal", name),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Path describes where records are kept.
func (s *JournalStore) Path() string {
	return "postgres:journal/" + s.name
}

// Append inserts record and bumps the journal's counters in one transaction.
func (s *JournalStore) Append(ctx context.Context, record any) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return store.NewStoreError("journal", "append", "failed to encode record", err)
	}

	now := s.now()
	ctx = logger.WithLogger(ctx, s.logger)
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertRecordQuery, s.name, payload, now); err != nil {
			return MapError(err)
		}
		if _, err := tx.ExecContext(ctx, touchJournalQuery, s.name, now); err != nil {
			return MapError(err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to append journal record", "error", err)
		return store.NewStoreError("journal", "append", "failed to insert record", err)
	}
	return nil
}

// Load returns the journal's records in append order.
func (s *JournalStore) Load(ctx context.Context) ([]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, loadRecordsQuery, s.name)
	if err != nil {
		return nil, store.NewStoreError("journal", "load", "failed to query records", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var records []json.RawMessage
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, store.NewStoreError("journal", "load", "failed to scan record", err)
		}
		records = append(records, json.RawMessage(payload))
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("journal", "load", "failed to iterate records", MapError(err))
	}

	s.logger.Debug("loaded journal records", "records", len(records))
	return records, nil
}

// Stats reports the journal's record count and last write. A journal that
// was never written to has zero stats.
func (s *JournalStore) Stats(ctx context.Context) (store.JournalStats, error) {
	stats := store.JournalStats{Name: s.name}

	err := s.db.QueryRowContext(ctx, journalStatsQuery, s.name).Scan(&stats.Records, &stats.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return stats, nil
	}
	if err != nil {
		return store.JournalStats{}, store.NewStoreError("journal", "stats", "failed to query journal", MapError(err))
	}
	return stats, nil
}

// Reset deletes every record of the journal.
func (s *JournalStore) Reset(ctx context.Context) error {
	ctx = logger.WithLogger(ctx, s.logger)
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteRecordsQuery, s.name); err != nil {
			return MapError(err)
		}
		if _, err := tx.ExecContext(ctx, deleteJournalQuery, s.name); err != nil {
			return MapError(err)
		}
		return nil
	})
	if err != nil {
		return store.NewStoreError("journal", "reset", "failed to delete records", err)
	}

	s.logger.Info("journal reset")
	return nil
}
