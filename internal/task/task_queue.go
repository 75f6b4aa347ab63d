package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/phrazzld/throttleq/internal/events"
	platformlogger "github.com/phrazzld/throttleq/internal/platform/logger"
)

// entry pairs a handle with the operation it stands for.
type entry struct {
	handle *Handle
	op     Operation
}

// TaskQueue runs submitted operations with bounded concurrency.
// All methods are safe for concurrent use.
type TaskQueue struct {
	// config is copied at construction and never changes
	config QueueConfig

	// logger for structured logging
	logger *slog.Logger

	// bus dispatches lifecycle events to listeners
	bus *events.Bus[*Handle]

	// journal, if set, receives every successful result
	journal Journal

	// resumed holds the journal records found at construction
	resumed []json.RawMessage

	// errHandler receives listener and journal failures; may be nil
	errHandler func(h *Handle, err error)

	// mu guards everything below
	mu       sync.Mutex
	queued   []*entry
	pending  []*entry
	complete []*entry
	failed   []*entry
	names    []*Handle
	gate     blockGate
	draining bool
	closed   bool

	// settleSeq numbers settlements in outcome-ledger order
	settleSeq uint64

	// emitMu guards emitSeq, the next settlement allowed to dispatch
	emitMu   sync.Mutex
	emitCond *sync.Cond
	emitSeq  uint64

	// wake and settled are 1-buffered signals to the driver
	wake    chan struct{}
	settled chan struct{}

	// ctx stops the driver on Close
	ctx    context.Context
	cancel context.CancelFunc

	// opCtx is handed to operations and is never cancelled
	opCtx context.Context

	driverDone chan struct{}
	now        func() time.Time
}

// Option configures a TaskQueue.
type Option func(*TaskQueue)

// WithJournal makes the queue load prior results from j and append every
// new successful result to it.
func WithJournal(j Journal) Option {
	return func(q *TaskQueue) {
		q.journal = j
	}
}

// WithErrorHandler sets a function that receives listener failures and
// journal write failures, together with the task they concern.
func WithErrorHandler(handler func(h *Handle, err error)) Option {
	return func(q *TaskQueue) {
		q.errHandler = handler
	}
}

// NewTaskQueue validates cfg and creates a queue with its driver goroutine.
// Callers must Close the queue to stop the driver.
func NewTaskQueue(cfg QueueConfig, logger *slog.Logger, opts ...Option) (*TaskQueue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	q := &TaskQueue{
		config:     cfg,
		logger:     logger.With("component", "task_queue"),
		wake:       make(chan struct{}, 1),
		settled:    make(chan struct{}, 1),
		driverDone: make(chan struct{}),
		now:        time.Now,
	}
	q.emitCond = sync.NewCond(&q.emitMu)
	for _, opt := range opts {
		opt(q)
	}

	q.bus = events.NewBus[*Handle](logger, func(rec events.Record[*Handle], err error) {
		q.reportError(rec.Subject, err)
	})
	q.opCtx = platformlogger.WithLogger(context.Background(), q.logger)

	if q.journal != nil {
		records, err := q.journal.Load(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to load journal: %w", err)
		}
		q.resumed = records
		q.logger.Info("loaded journal", "records", len(records))
	}

	q.ctx, q.cancel = context.WithCancel(context.Background())
	go q.run()

	q.logger.Debug("task queue created",
		"max_concurrent", cfg.MaxConcurrent,
		"retry", cfg.Retry,
		"max_retries", cfg.MaxRetries,
		"wait_between_requests", cfg.WaitBetweenRequests,
		"auto_start", cfg.AutoStart)
	return q, nil
}

// Add submits an operation and returns its handle immediately.
// The operation never runs on the caller's goroutine.
func (q *TaskQueue) Add(op Operation, opts ...AddOption) (*Handle, error) {
	if op == nil {
		return nil, ErrNilOperation
	}

	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}
	h := newHandle(o.name)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	q.queued = append(q.queued, &entry{handle: h, op: op})
	if o.name != "" {
		q.names = append(q.names, h)
	}
	wake := q.config.AutoStart || q.draining
	queueLen := len(q.queued)
	q.mu.Unlock()

	q.logger.Debug("task queued",
		"task_id", h.id,
		"name", h.name,
		"queue_len", queueLen)
	q.bus.Emit(events.KindQueued, h)
	close(h.announced)

	if wake {
		signal(q.wake)
	}
	return h, nil
}

// On registers a listener for an event kind, or for every kind with
// events.All. Unknown kinds are logged and ignored. It returns the queue so
// registrations can be chained.
//
// Listeners run synchronously on the goroutine that caused the event.
// Complete and failed events are delivered one at a time in the order the
// tasks entered the outcome ledger, so a listener for them must not wait on
// another task's settlement event.
func (q *TaskQueue) On(kind events.Kind, listener events.Listener[*Handle]) *TaskQueue {
	if err := q.bus.Subscribe(kind, listener); err != nil {
		q.logger.Warn("ignoring event listener", "kind", kind, "error", err)
	}
	return q
}

// Start wakes the driver. It is only needed when AutoStart is false, and
// calling it while the queue is already draining has no further effect.
func (q *TaskQueue) Start() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.draining = true
	q.mu.Unlock()

	signal(q.wake)
	return nil
}

// Process starts the queue and waits for it to finish, returning the
// results of every completed task.
func (q *TaskQueue) Process(ctx context.Context) ([]any, error) {
	if err := q.Start(); err != nil {
		return nil, err
	}
	return q.IsDone(ctx)
}

// Resumed returns the records the journal held when the queue was created.
func (q *TaskQueue) Resumed() []json.RawMessage {
	return q.resumed
}

// Close stops the driver and rejects further submissions. Operations that
// are already running are left to finish and still settle their handles.
// An active block is released so nothing waits on it forever.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	wasBlocked := q.gate.blocked
	if wasBlocked {
		q.disarmTimerLocked()
		close(q.gate.release)
		q.gate.blocked = false
		q.gate.release = nil
	}
	q.mu.Unlock()

	q.cancel()
	<-q.driverDone

	q.logger.Info("task queue closed",
		"complete", q.NumberComplete(),
		"failed", q.NumberFailed(),
		"abandoned", q.NumberQueued(),
		"released_block", wasBlocked)
}

// move transfers e between state lists. The caller must hold q.mu.
// A missing entry is an internal bookkeeping error and panics.
func (q *TaskQueue) move(e *entry, from, to State) {
	src := q.list(from)
	idx := slices.Index(*src, e)
	if idx < 0 {
		err := &StateViolationError{
			TaskID: e.handle.id,
			Name:   e.handle.name,
			From:   from,
			To:     to,
		}
		q.logger.Error("task state violation", "error", err, "task_id", e.handle.id)
		panic(err)
	}
	*src = slices.Delete(*src, idx, idx+1)

	dst := q.list(to)
	*dst = append(*dst, e)
	e.handle.setState(to)
}

func (q *TaskQueue) list(s State) *[]*entry {
	switch s {
	case StateQueued:
		return &q.queued
	case StatePending:
		return &q.pending
	case StateComplete:
		return &q.complete
	case StateFailed:
		return &q.failed
	default:
		panic(fmt.Sprintf("unknown task state %q", s))
	}
}

func (q *TaskQueue) reportError(h *Handle, err error) {
	if q.errHandler != nil {
		q.errHandler(h, err)
	}
}

// signal performs a non-blocking send on a 1-buffered channel.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
