package task

import (
	"time"

	"github.com/phrazzld/throttleq/internal/events"
)

// blockGate suspends admission of new tasks. When blocked is false there is
// no armed timer and endTime is zero.
type blockGate struct {
	blocked bool
	endTime time.Time
	release chan struct{}
	timer   *time.Timer

	// generation identifies the current timer; stale timers are ignored
	generation uint64
}

// BlockQueue stops the queue from admitting new tasks. Running tasks are not
// affected. A positive d releases the block automatically after d; zero
// blocks until UnblockQueue. Blocking an already blocked queue only replaces
// its deadline. The returned channel is closed when the block is released.
// On a closed queue the returned channel is already closed.
func (q *TaskQueue) BlockQueue(d time.Duration) <-chan struct{} {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		released := make(chan struct{})
		close(released)
		return released
	}
	if q.gate.blocked {
		if d > 0 {
			q.armTimerLocked(d)
		} else {
			q.disarmTimerLocked()
		}
		release, endTime := q.gate.release, q.gate.endTime
		q.mu.Unlock()

		q.logger.Info("queue block extended", "duration", d, "until", endTime)
		return release
	}

	q.gate.blocked = true
	q.gate.release = make(chan struct{})
	if d > 0 {
		q.armTimerLocked(d)
	}
	release, endTime := q.gate.release, q.gate.endTime
	running := handlesOf(q.pending)
	q.mu.Unlock()

	q.logger.Info("queue blocked", "duration", d, "until", endTime, "running", len(running))
	for _, h := range running {
		q.bus.Emit(events.KindBlocked, h)
	}
	return release
}

// UnblockQueue releases a block. It returns ErrNotBlocked if the queue is
// not blocked.
func (q *TaskQueue) UnblockQueue() error {
	return q.releaseGate(0)
}

// BlockStatus reports whether the queue is blocked and, for a timed block,
// when it will be released.
func (q *TaskQueue) BlockStatus() (bool, time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.gate.blocked, q.gate.endTime
}

// releaseGate opens the gate. A non-zero gen only releases the gate if it
// still belongs to the timer that was armed with it.
func (q *TaskQueue) releaseGate(gen uint64) error {
	q.mu.Lock()
	if !q.gate.blocked {
		q.mu.Unlock()
		return ErrNotBlocked
	}
	if gen != 0 && gen != q.gate.generation {
		q.mu.Unlock()
		return nil
	}

	q.disarmTimerLocked()
	close(q.gate.release)
	q.gate.blocked = false
	q.gate.release = nil
	running := handlesOf(q.pending)
	q.mu.Unlock()

	q.logger.Info("queue unblocked", "timer", gen != 0, "running", len(running))
	for _, h := range running {
		q.bus.Emit(events.KindUnblocked, h)
	}
	return nil
}

func (q *TaskQueue) armTimerLocked(d time.Duration) {
	q.disarmTimerLocked()
	gen := q.gate.generation
	q.gate.endTime = q.now().Add(d)
	q.gate.timer = time.AfterFunc(d, func() {
		_ = q.releaseGate(gen)
	})
}

func (q *TaskQueue) disarmTimerLocked() {
	if q.gate.timer != nil {
		q.gate.timer.Stop()
		q.gate.timer = nil
	}
	q.gate.generation++
	q.gate.endTime = time.Time{}
}
