package events

import (
	"fmt"
	"time"
)

// Kind identifies a lifecycle event.
type Kind string

// Lifecycle event kinds.
const (
	// KindQueued fires when a task is added to the admission list.
	KindQueued Kind = "queued"

	// KindStart fires when a task is admitted and its operation begins.
	KindStart Kind = "start"

	// KindComplete fires when a task's operation finished successfully.
	KindComplete Kind = "complete"

	// KindFailed fires once per task, after all retries are exhausted.
	KindFailed Kind = "failed"

	// KindBlocked fires for each running task when the queue gets blocked.
	KindBlocked Kind = "blocked"

	// KindUnblocked fires for each running task when the queue gets unblocked.
	KindUnblocked Kind = "unblocked"

	// All subscribes a listener to every kind.
	All Kind = "all"
)

// Kinds lists every concrete event kind in lifecycle order.
var Kinds = []Kind{
	KindQueued,
	KindStart,
	KindComplete,
	KindFailed,
	KindBlocked,
	KindUnblocked,
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Valid reports whether k is a concrete event kind (All is not).
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind converts a string into a Kind, accepting "all".
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if k == All || k.Valid() {
		return k, nil
	}
	return "", fmt.Errorf("unknown event kind %q", s)
}

// Record is a single event delivered to listeners.
type Record[T any] struct {
	// Kind is the event that happened
	Kind Kind

	// Subject is the thing the event happened to (usually a task handle)
	Subject T

	// At is when the event was emitted
	At time.Time
}

// Listener receives event records. A returned error is reported but never
// stops delivery to other listeners.
type Listener[T any] func(rec Record[T]) error
