package journal_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/phrazzld/throttleq/internal/journal"
	"github.com/phrazzld/throttleq/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	Cursor  string   `json:"cursor"`
	Entries []string `json:"entries"`
}

func TestOpen(t *testing.T) {
	t.Run("temp file when no path is given", func(t *testing.T) {
		j, err := journal.Open("")
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = j.Close()
			_ = os.Remove(j.Path())
		})

		assert.Equal(t, os.TempDir(), filepath.Dir(j.Path()))
		assert.True(t, strings.HasPrefix(filepath.Base(j.Path()), journal.FilePrefix))

		records, err := j.Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := journal.Open(filepath.Join(t.TempDir(), "nope", "journal.jsonl"))
		assert.Error(t, err)
	})
}

func TestFileJournal_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	ctx := context.Background()

	j, err := journal.Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Append(ctx, page{Cursor: "a", Entries: []string{"1", "2"}}))
	require.NoError(t, j.Append(ctx, page{Cursor: "b", Entries: []string{"3"}}))
	require.NoError(t, j.Close())

	// reopening resumes from the same file
	reopened, err := journal.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	records, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	pages, err := journal.Decode[page](records)
	require.NoError(t, err)
	assert.Equal(t, []page{
		{Cursor: "a", Entries: []string{"1", "2"}},
		{Cursor: "b", Entries: []string{"3"}},
	}, pages)

	require.NoError(t, reopened.Append(ctx, page{Cursor: "c"}))
	records, err = reopened.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestFileJournal_Load(t *testing.T) {
	t.Run("ignores blank lines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "journal.jsonl")
		require.NoError(t, os.WriteFile(path, []byte("{\"n\":1}\n\n{\"n\":2}\n"), 0o600))

		j, err := journal.Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = j.Close() })

		records, err := j.Load(context.Background())
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("corrupt line in the middle", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "journal.jsonl")
		require.NoError(t, os.WriteFile(path, []byte("{\"n\":1}\n{\"n\":\n{\"n\":3}\n"), 0o600))

		j, err := journal.Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = j.Close() })

		_, err = j.Load(context.Background())
		assert.ErrorIs(t, err, journal.ErrCorruptRecord)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("torn last line is dropped", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "journal.jsonl")
		require.NoError(t, os.WriteFile(path, []byte("{\"n\":1}\n{\"n\":2}\n{\"n\":"), 0o600))

		log, logBuf := logger.GetTestLogger(t)
		j, err := journal.Open(path, journal.WithLogger(log))
		require.NoError(t, err)
		t.Cleanup(func() { _ = j.Close() })
		logger.AssertLogContains(t, logBuf, "dropped incomplete journal record")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "{\"n\":1}\n{\"n\":2}\n", string(data))

		ctx := context.Background()
		records, err := j.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, records, 2)

		require.NoError(t, j.Append(ctx, map[string]int{"n": 3}))
		records, err = j.Load(ctx)
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.JSONEq(t, `{"n":3}`, string(records[2]))
	})

	t.Run("complete last record without newline is kept", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "journal.jsonl")
		require.NoError(t, os.WriteFile(path, []byte("{\"n\":1}"), 0o600))

		j, err := journal.Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = j.Close() })

		ctx := context.Background()
		require.NoError(t, j.Append(ctx, map[string]int{"n": 2}))

		records, err := j.Load(ctx)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.JSONEq(t, `{"n":1}`, string(records[0]))
		assert.JSONEq(t, `{"n":2}`, string(records[1]))
	})
}

func TestFileJournal_Append(t *testing.T) {
	t.Run("concurrent writers keep lines intact", func(t *testing.T) {
		j, err := journal.Open(filepath.Join(t.TempDir(), "journal.jsonl"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = j.Close() })

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, j.Append(context.Background(), map[string]int{"n": i}))
			}()
		}
		wg.Wait()

		records, err := j.Load(context.Background())
		require.NoError(t, err)
		assert.Len(t, records, 20)
	})

	t.Run("unencodable record", func(t *testing.T) {
		j, err := journal.Open(filepath.Join(t.TempDir(), "journal.jsonl"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = j.Close() })

		err = j.Append(context.Background(), make(chan int))
		assert.Error(t, err)
	})

	t.Run("after close", func(t *testing.T) {
		j, err := journal.Open(filepath.Join(t.TempDir(), "journal.jsonl"))
		require.NoError(t, err)
		require.NoError(t, j.Close())
		require.NoError(t, j.Close())

		err = j.Append(context.Background(), 1)
		assert.ErrorIs(t, err, journal.ErrClosed)
	})
}

func TestDecode(t *testing.T) {
	_, err := journal.Decode[page]([]json.RawMessage{json.RawMessage(`"not a page"`)})
	assert.Error(t, err)
}

func TestFileJournal_StatsAndReset(t *testing.T) {
	ctx := context.Background()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	stats, err := j.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, j.Path(), stats.Name)
	assert.Zero(t, stats.Records)
	assert.True(t, stats.UpdatedAt.IsZero())

	require.NoError(t, j.Append(ctx, 1))
	require.NoError(t, j.Append(ctx, 2))

	stats, err = j.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Records)
	assert.False(t, stats.UpdatedAt.IsZero())

	require.NoError(t, j.Reset(ctx))
	records, err := j.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	// appends after a reset start a fresh log
	require.NoError(t, j.Append(ctx, 3))
	records, err = j.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "3", string(records[0]))
}
