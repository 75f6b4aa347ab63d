package task

import (
	"time"

	"github.com/phrazzld/throttleq/internal/events"
)

// run is the driver goroutine. It sleeps until woken, then drains.
func (q *TaskQueue) run() {
	defer close(q.driverDone)

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-q.wake:
		}
		q.drain()
	}
}

// drain admits queued tasks until the queue is empty and nothing is running.
// It returns early only when the queue is closed.
func (q *TaskQueue) drain() {
	q.mu.Lock()
	q.draining = true
	q.mu.Unlock()
	q.logger.Debug("driver draining")

	for {
		q.mu.Lock()
		if len(q.queued) == 0 {
			if len(q.pending) == 0 {
				// Checked under the lock so a concurrent Add either lands
				// before this point or sees draining == false and wakes us.
				q.draining = false
				q.mu.Unlock()
				q.logger.Debug("driver idle")
				return
			}
			q.mu.Unlock()

			select {
			case <-q.settled:
			case <-q.wake:
			case <-q.ctx.Done():
				return
			}
			continue
		}

		if q.gate.blocked {
			release := q.gate.release
			q.mu.Unlock()

			select {
			case <-release:
			case <-q.ctx.Done():
				return
			}
			continue
		}
		q.mu.Unlock()

		if !q.sleep(q.config.WaitBetweenRequests) {
			return
		}

		if full := q.admitNext(); full {
			select {
			case <-q.settled:
			case <-q.ctx.Done():
				return
			}
		}
	}
}

// admitNext moves the head of the admission list into the execution tracker
// and starts it. It reports whether the tracker was full.
func (q *TaskQueue) admitNext() (full bool) {
	q.mu.Lock()
	if q.gate.blocked || len(q.queued) == 0 {
		q.mu.Unlock()
		return false
	}
	if len(q.pending) >= q.config.MaxConcurrent {
		q.mu.Unlock()
		return true
	}

	e := q.queued[0]
	q.move(e, StateQueued, StatePending)
	running := len(q.pending)
	q.mu.Unlock()

	// queued must be observed before start
	<-e.handle.announced

	q.logger.Debug("task started",
		"task_id", e.handle.id,
		"name", e.handle.name,
		"running", running)
	q.bus.Emit(events.KindStart, e.handle)

	go q.execute(e)
	return false
}

// sleep pauses for d, returning false if the queue was closed meanwhile.
func (q *TaskQueue) sleep(d time.Duration) bool {
	if d <= 0 {
		return true
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-q.ctx.Done():
		return false
	}
}
