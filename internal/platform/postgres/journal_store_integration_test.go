//go:build integration

package postgres_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/phrazzld/throttleq/internal/platform/postgres"
	"github.com/phrazzld/throttleq/internal/task"
	"github.com/phrazzld/throttleq/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalStore_Integration(t *testing.T) {
	db := testdb.Open(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s := postgres.NewJournalStore(db, testdb.JournalName(t, db), logger)

	require.NoError(t, s.Append(ctx, map[string]int{"n": 1}))
	require.NoError(t, s.Append(ctx, map[string]int{"n": 2}))

	records, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.JSONEq(t, `{"n":1}`, string(records[0]))
	assert.JSONEq(t, `{"n":2}`, string(records[1]))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Records)
	assert.False(t, stats.UpdatedAt.IsZero())

	require.NoError(t, s.Reset(ctx))
	records, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestJournalStore_QueueResumes(t *testing.T) {
	db := testdb.Open(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	name := testdb.JournalName(t, db)

	cfg := task.DefaultQueueConfig()
	cfg.WaitBetweenRequests = 0

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	first, err := task.NewTaskQueue(cfg, logger, task.WithJournal(postgres.NewJournalStore(db, name, logger)))
	require.NoError(t, err)
	for _, v := range []string{"a", "b"} {
		_, err := first.Add(func(ctx context.Context) (any, error) { return v, nil })
		require.NoError(t, err)
	}
	_, err = first.IsDone(ctx)
	require.NoError(t, err)
	first.Close()

	second, err := task.NewTaskQueue(cfg, logger, task.WithJournal(postgres.NewJournalStore(db, name, logger)))
	require.NoError(t, err)
	defer second.Close()

	resumed := second.Resumed()
	require.Len(t, resumed, 2)
	assert.JSONEq(t, `"a"`, string(resumed[0]))
	assert.JSONEq(t, `"b"`, string(resumed[1]))
}
