package events

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"
)

// ErrorReporter receives listener failures. It is called on the emitting
// goroutine after the failure has been logged.
type ErrorReporter[T any] func(rec Record[T], err error)

// Bus stores listeners per event kind and dispatches records to them.
// All methods are safe for concurrent use.
type Bus[T any] struct {
	listeners map[Kind][]Listener[T]
	mu        sync.RWMutex
	logger    *slog.Logger
	reporter  ErrorReporter[T]
	now       func() time.Time
}

// NewBus creates an empty bus. The reporter may be nil.
func NewBus[T any](logger *slog.Logger, reporter ErrorReporter[T]) *Bus[T] {
	listeners := make(map[Kind][]Listener[T], len(Kinds))
	for _, k := range Kinds {
		listeners[k] = nil
	}

	return &Bus[T]{
		listeners: listeners,
		logger:    logger.With("component", "event_bus"),
		reporter:  reporter,
		now:       time.Now,
	}
}

// Subscribe registers a listener for kind. All registers the listener once
// for every concrete kind.
func (b *Bus[T]) Subscribe(kind Kind, listener Listener[T]) error {
	if listener == nil {
		return fmt.Errorf("nil listener for event kind %q", kind)
	}

	parsed, err := ParseKind(string(kind))
	if err != nil {
		return err
	}
	kinds := []Kind{parsed}
	if parsed == All {
		kinds = Kinds
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range kinds {
		b.listeners[k] = append(b.listeners[k], listener)
	}
	b.logger.Debug("registered event listener", "kind", kind, "kinds", len(kinds))
	return nil
}

// ListenerCount returns the number of listeners registered for kind.
func (b *Bus[T]) ListenerCount(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[kind])
}

// Emit delivers a record of the given kind to every listener registered for
// it, in registration order.
func (b *Bus[T]) Emit(kind Kind, subject T) {
	b.mu.RLock()
	listeners := make([]Listener[T], len(b.listeners[kind]))
	copy(listeners, b.listeners[kind])
	b.mu.RUnlock()

	if len(listeners) == 0 {
		return
	}

	rec := Record[T]{Kind: kind, Subject: subject, At: b.now()}
	for i, listener := range listeners {
		if err := b.call(listener, rec); err != nil {
			b.logger.Error("event listener failed",
				"error", err,
				"listener_index", i,
				"kind", kind)
			if b.reporter != nil {
				b.reporter(rec, err)
			}
		}
	}
}

// call runs a single listener, turning a panic into an error.
func (b *Bus[T]) call(listener Listener[T], rec Record[T]) (err error) {
	var pc panics.Catcher
	pc.Try(func() {
		err = listener(rec)
	})
	if r := pc.Recovered(); r != nil {
		return fmt.Errorf("listener panicked: %w", r.AsError())
	}
	return err
}
