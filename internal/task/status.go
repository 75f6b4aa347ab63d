package task

import (
	"context"
)

// Total returns the number of tasks ever submitted.
func (q *TaskQueue) Total() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queued) + len(q.pending) + len(q.complete) + len(q.failed)
}

// NumberQueued returns the number of tasks waiting for admission.
func (q *TaskQueue) NumberQueued() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queued)
}

// NumberPending returns the number of running tasks.
func (q *TaskQueue) NumberPending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// NumberComplete returns the number of tasks that succeeded.
func (q *TaskQueue) NumberComplete() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.complete)
}

// NumberFailed returns the number of tasks that failed for good.
func (q *TaskQueue) NumberFailed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.failed)
}

// Handles returns the handles in the given state, in list order.
// The empty state returns every handle, grouped by state in lifecycle order.
func (q *TaskQueue) Handles(state State) []*Handle {
	q.mu.Lock()
	defer q.mu.Unlock()

	if state == "" {
		all := make([]*Handle, 0, len(q.queued)+len(q.pending)+len(q.complete)+len(q.failed))
		for _, s := range States {
			all = append(all, handlesOf(*q.list(s))...)
		}
		return all
	}
	return handlesOf(*q.list(state))
}

// Name returns the name h was submitted with, or "" if it has none or does
// not belong to this queue.
func (q *TaskQueue) Name(h *Handle) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, named := range q.names {
		if named == h {
			return named.name
		}
	}
	return ""
}

// Lookup returns the first task submitted with the given name.
func (q *TaskQueue) Lookup(name string) (*Handle, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, named := range q.names {
		if named.name == name {
			return named, true
		}
	}
	return nil, false
}

// IsRunning reports whether the driver is currently draining the queue.
func (q *TaskQueue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// IsDone waits until no task is queued or running and returns the results
// of every completed task in completion order. Tasks submitted while waiting,
// including by running operations, are waited for too.
func (q *TaskQueue) IsDone(ctx context.Context) ([]any, error) {
	for {
		q.mu.Lock()
		if len(q.queued) == 0 && len(q.pending) == 0 {
			results := make([]any, 0, len(q.complete))
			for _, e := range q.complete {
				r, _ := e.handle.Result()
				results = append(results, r)
			}
			q.mu.Unlock()
			return results, nil
		}
		waiting := append(handlesOf(q.queued), handlesOf(q.pending)...)
		q.mu.Unlock()

		for _, h := range waiting {
			select {
			case <-h.Done():
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
}

func handlesOf(entries []*entry) []*Handle {
	handles := make([]*Handle, len(entries))
	for i, e := range entries {
		handles[i] = e.handle
	}
	return handles
}
