package journal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/throttleq/internal/store"
)

// FilePrefix is the name prefix of journals created in the temp directory.
const FilePrefix = "throttleq-journal-"

var (
	// ErrCorruptRecord is returned by Load when a line is not valid JSON.
	ErrCorruptRecord = errors.New("corrupt journal record")

	// ErrClosed is returned when appending to a closed journal.
	ErrClosed = errors.New("journal is closed")
)

// FileJournal appends records to a JSON-lines file.
// It implements store.JournalStore and task.Journal.
type FileJournal struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	file   *os.File
	closed bool
}

var _ store.JournalStore = (*FileJournal)(nil)

// Option configures a FileJournal.
type Option func(*FileJournal)

// WithLogger sets the logger used to report repaired records.
func WithLogger(logger *slog.Logger) Option {
	return func(j *FileJournal) {
		j.logger = logger
	}
}

// Open opens the journal at path, creating it if needed. An empty path
// creates a fresh journal file in the system temp directory.
//
// A last line left incomplete by an interrupted Append is cut off so the
// next record starts on a fresh line.
func Open(path string, opts ...Option) (*FileJournal, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), FilePrefix+uuid.NewString()+".jsonl")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	j := &FileJournal{path: path, file: f, logger: slog.Default()}
	for _, opt := range opts {
		opt(j)
	}
	j.logger = j.logger.With("component", "journal", "path", path)

	if err := j.repairTail(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return j, nil
}

// repairTail makes sure the file ends on a record boundary. A complete
// record missing only its newline is terminated; a partial record is
// truncated away.
func (j *FileJournal) repairTail() error {
	info, err := j.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat journal %s: %w", j.path, err)
	}
	size := info.Size()
	if size == 0 {
		return nil
	}

	start, err := lastLineStart(j.file, size)
	if err != nil {
		return fmt.Errorf("failed to read journal %s: %w", j.path, err)
	}
	if start == size {
		return nil
	}

	tail := make([]byte, size-start)
	if _, err := j.file.ReadAt(tail, start); err != nil {
		return fmt.Errorf("failed to read journal %s: %w", j.path, err)
	}
	trimmed := bytes.TrimSpace(tail)

	switch {
	case len(trimmed) > 0 && json.Valid(trimmed):
		if _, err := j.file.Write([]byte{'\n'}); err != nil {
			return fmt.Errorf("failed to terminate journal %s: %w", j.path, err)
		}
	default:
		if err := j.file.Truncate(start); err != nil {
			return fmt.Errorf("failed to truncate journal %s: %w", j.path, err)
		}
		if len(trimmed) > 0 {
			j.logger.Warn("dropped incomplete journal record",
				"offset", start,
				"bytes", len(tail))
		}
	}
	return j.file.Sync()
}

// lastLineStart returns the offset just past the last newline in the first
// size bytes of r, or 0 when there is none.
func lastLineStart(r io.ReaderAt, size int64) (int64, error) {
	const chunk = 4096
	buf := make([]byte, chunk)
	end := size
	for end > 0 {
		off := end - chunk
		if off < 0 {
			off = 0
		}
		n := int(end - off)
		if _, err := r.ReadAt(buf[:n], off); err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if i := bytes.LastIndexByte(buf[:n], '\n'); i >= 0 {
			return off + int64(i) + 1, nil
		}
		end = off
	}
	return 0, nil
}

// Path returns the location of the journal file.
func (j *FileJournal) Path() string {
	return j.path
}

// Load reads every record in the journal in the order they were appended.
// Blank lines are ignored, as is an incomplete last line from a write still
// in progress. A malformed line anywhere else is ErrCorruptRecord.
func (j *FileJournal) Load(ctx context.Context) ([]json.RawMessage, error) {
	f, err := os.Open(j.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal %s: %w", j.path, err)
	}
	defer func() { _ = f.Close() }()

	return j.readRecords(ctx, f)
}

func (j *FileJournal) readRecords(ctx context.Context, r io.Reader) ([]json.RawMessage, error) {
	var records []json.RawMessage
	br := bufio.NewReaderSize(r, 64*1024)

	line := 0
	for {
		data, readErr := br.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("failed to scan journal: %w", readErr)
		}
		last := errors.Is(readErr, io.EOF)

		if len(data) > 0 {
			line++
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			raw := bytes.TrimSpace(data)
			switch {
			case len(raw) == 0:
			case json.Valid(raw):
				records = append(records, json.RawMessage(bytes.Clone(raw)))
			case last:
				j.logger.Warn("ignoring incomplete journal record", "line", line)
			default:
				return nil, fmt.Errorf("%w at line %d", ErrCorruptRecord, line)
			}
		}
		if last {
			return records, nil
		}
	}
}

// Append encodes record as JSON and writes it as a single line, syncing
// the file before returning.
func (j *FileJournal) Append(ctx context.Context, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode journal record: %w", err)
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	if _, err := j.file.Write(data); err != nil {
		return fmt.Errorf("failed to write journal %s: %w", j.path, err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal %s: %w", j.path, err)
	}
	return nil
}

// Stats counts the journal's records and reports the file's last
// modification time.
func (j *FileJournal) Stats(ctx context.Context) (store.JournalStats, error) {
	records, err := j.Load(ctx)
	if err != nil {
		return store.JournalStats{}, err
	}
	stats := store.JournalStats{Name: j.path, Records: int64(len(records))}
	if len(records) > 0 {
		info, err := os.Stat(j.path)
		if err != nil {
			return store.JournalStats{}, fmt.Errorf("failed to stat journal %s: %w", j.path, err)
		}
		stats.UpdatedAt = info.ModTime().UTC()
	}
	return stats, nil
}

// Reset truncates the journal file.
func (j *FileJournal) Reset(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	if err := j.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate journal %s: %w", j.path, err)
	}
	return j.file.Sync()
}

// Close releases the file. The journal file itself is kept.
func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.file.Close()
}

// Decode unmarshals raw records into values of type T.
func Decode[T any](records []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(records))
	for i, raw := range records {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to decode journal record %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
