package task

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Operation is a unit of asynchronous work. The context it receives is owned
// by the queue, carries the queue's logger and is never cancelled by it.
type Operation func(ctx context.Context) (any, error)

// State represents where a task is in its lifecycle.
type State string

// Possible task states. Transitions only move forward:
// queued -> pending -> complete | failed.
const (
	StateQueued   State = "queued"
	StatePending  State = "pending"
	StateComplete State = "complete"
	StateFailed   State = "failed"
)

// States lists every state in lifecycle order.
var States = []State{StateQueued, StatePending, StateComplete, StateFailed}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsTerminal returns true if this state is final.
func (s State) IsTerminal() bool {
	return s == StateComplete || s == StateFailed
}

// ParseState converts a string into a State. The empty string is accepted
// and means "every state" wherever a state filter is expected.
func ParseState(s string) (State, bool) {
	if s == "" {
		return "", true
	}
	for _, st := range States {
		if State(s) == st {
			return st, true
		}
	}
	return "", false
}

// Journal is an append-only store of successful task results.
type Journal interface {
	// Load returns every record previously appended, in append order
	Load(ctx context.Context) ([]json.RawMessage, error)

	// Append durably records a single result
	Append(ctx context.Context, record any) error
}

// Locator is implemented by journals that can report where they store
// records, so failures can point at the partial results.
type Locator interface {
	Path() string
}

// Handle identifies a submitted task and exposes its outcome.
// It is a read-only view; only the queue settles it.
type Handle struct {
	id        uuid.UUID
	name      string
	done      chan struct{}
	announced chan struct{}

	mu       sync.Mutex
	state    State
	attempts int
	settled  bool
	result   any
	err      error
}

func newHandle(name string) *Handle {
	return &Handle{
		id:        uuid.New(),
		name:      name,
		done:      make(chan struct{}),
		announced: make(chan struct{}),
		state:     StateQueued,
	}
}

// ID returns the task's unique identifier.
func (h *Handle) ID() uuid.UUID {
	return h.id
}

// Name returns the name given at submission, or "".
func (h *Handle) Name() string {
	return h.name
}

// Done returns a channel that is closed once the task has settled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// State returns the task's current state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Attempts returns how many times the operation has been invoked.
func (h *Handle) Attempts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts
}

// Result returns the operation's result without blocking.
// It returns ErrNotSettled while the task is still queued or pending.
func (h *Handle) Result() (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.settled {
		return nil, ErrNotSettled
	}
	return h.result, h.err
}

// Wait blocks until the task settles or ctx is done.
func (h *Handle) Wait(ctx context.Context) (any, error) {
	select {
	case <-h.done:
		return h.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *Handle) nextAttempt() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts++
	return h.attempts
}

// settle records the outcome and releases waiters. Only the first call counts.
func (h *Handle) settle(result any, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.settled {
		return
	}
	h.settled = true
	h.result = result
	h.err = err
	close(h.done)
}

// AddOption customises a single submission.
type AddOption func(*addOptions)

type addOptions struct {
	name string
}

// WithName attaches a human-readable name to the task. Names need not be unique.
func WithName(name string) AddOption {
	return func(o *addOptions) {
		o.name = name
	}
}
