package store

import (
	"context"
	"encoding/json"
	"time"
)

// JournalStats summarises a journal.
type JournalStats struct {
	// Name identifies the journal: a file path or a database journal name
	Name string `json:"name"`

	// Records is the number of records appended so far
	Records int64 `json:"records"`

	// UpdatedAt is when the last record was appended; zero if never
	UpdatedAt time.Time `json:"updated_at"`
}

// JournalStore is a named, append-only log of task results.
type JournalStore interface {
	// Append durably records a single result
	Append(ctx context.Context, record any) error

	// Load returns every record in append order
	Load(ctx context.Context) ([]json.RawMessage, error)

	// Stats reports the journal's size and last write
	Stats(ctx context.Context) (JournalStats, error)

	// Reset discards every record
	Reset(ctx context.Context) error
}
