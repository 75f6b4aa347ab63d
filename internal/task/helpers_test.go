package task

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/throttleq/internal/events"
	"github.com/stretchr/testify/require"
)

// testConfig returns a fast configuration for tests.
func testConfig() QueueConfig {
	cfg := DefaultQueueConfig()
	cfg.WaitBetweenRequests = 0
	return cfg
}

func newTestQueue(t *testing.T, cfg QueueConfig, opts ...Option) *TaskQueue {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q, err := NewTaskQueue(cfg, logger, opts...)
	require.NoError(t, err)
	t.Cleanup(q.Close)
	return q
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// value returns an operation that yields v after d.
func value(v any, d time.Duration) Operation {
	return func(ctx context.Context) (any, error) {
		if d > 0 {
			time.Sleep(d)
		}
		return v, nil
	}
}

type recordedEvent struct {
	kind events.Kind
	name string
}

// eventRecorder collects every event emitted by a queue.
type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func recordEvents(q *TaskQueue) *eventRecorder {
	r := &eventRecorder{}
	q.On(events.All, func(rec events.Record[*Handle]) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, recordedEvent{kind: rec.Kind, name: rec.Subject.Name()})
		return nil
	})
	return r
}

func (r *eventRecorder) kindsFor(name string) []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []events.Kind
	for _, e := range r.events {
		if e.name == name {
			kinds = append(kinds, e.kind)
		}
	}
	return kinds
}

func (r *eventRecorder) count(kind events.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

// memoryJournal is an in-memory Journal.
type memoryJournal struct {
	mu        sync.Mutex
	records   []json.RawMessage
	appendErr error
}

func (j *memoryJournal) Load(ctx context.Context) ([]json.RawMessage, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]json.RawMessage(nil), j.records...), nil
}

func (j *memoryJournal) Append(ctx context.Context, record any) error {
	if j.appendErr != nil {
		return j.appendErr
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, data)
	return nil
}

type failingLoadJournal struct{}

func (failingLoadJournal) Load(ctx context.Context) ([]json.RawMessage, error) {
	return nil, errors.New("disk on fire")
}

func (failingLoadJournal) Append(ctx context.Context, record any) error {
	return nil
}

type locatingJournal struct {
	memoryJournal
}

func (j *locatingJournal) Path() string {
	return "/tmp/results.jsonl"
}
