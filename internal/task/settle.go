package task

import (
	"context"
	"fmt"
	"time"

	"github.com/phrazzld/throttleq/internal/events"
	"github.com/sethvargo/go-retry"
	"github.com/sourcegraph/conc/panics"
)

// execute runs an admitted task to settlement.
func (q *TaskQueue) execute(e *entry) {
	defer signal(q.settled)

	result, err := q.attempt(e)
	if err != nil {
		q.fail(e, err)
		return
	}
	q.succeed(e, result)
}

// attempt invokes the operation, retrying in place while retries remain.
// The task keeps its execution slot across attempts.
func (q *TaskQueue) attempt(e *entry) (any, error) {
	if !q.config.Retry || q.config.MaxRetries == 0 {
		return q.invoke(q.opCtx, e)
	}

	delay := q.config.RetryDelay
	backoff := retry.WithMaxRetries(uint64(q.config.MaxRetries),
		retry.BackoffFunc(func() (time.Duration, bool) {
			return delay, false
		}))

	var result any
	var lastErr error
	err := retry.Do(q.opCtx, backoff, func(ctx context.Context) error {
		r, err := q.invoke(ctx, e)
		if err != nil {
			lastErr = err
			q.logger.Warn("task attempt failed",
				"task_id", e.handle.id,
				"name", e.handle.name,
				"attempt", e.handle.Attempts(),
				"error", err)
			return retry.RetryableError(err)
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, lastErr
	}
	return result, nil
}

// invoke runs the operation once, converting a panic into an error.
func (q *TaskQueue) invoke(ctx context.Context, e *entry) (result any, err error) {
	e.handle.nextAttempt()

	var pc panics.Catcher
	pc.Try(func() {
		result, err = e.op(ctx)
	})
	if r := pc.Recovered(); r != nil {
		return nil, fmt.Errorf("operation panicked: %w", r.AsError())
	}
	return result, err
}

func (q *TaskQueue) succeed(e *entry, result any) {
	if q.journal != nil {
		if err := q.journal.Append(q.opCtx, result); err != nil {
			werr := fmt.Errorf("%w: task %s: %w", ErrJournalWrite, e.handle.id, err)
			q.logger.Error("failed to journal task result",
				"task_id", e.handle.id,
				"name", e.handle.name,
				"error", err)
			q.reportError(e.handle, werr)
		}
	}

	q.mu.Lock()
	q.move(e, StatePending, StateComplete)
	e.handle.settle(result, nil)
	seq := q.nextSettleSeqLocked()
	q.mu.Unlock()

	q.logger.Debug("task completed",
		"task_id", e.handle.id,
		"name", e.handle.name,
		"attempts", e.handle.Attempts())
	q.emitSettled(seq, events.KindComplete, e.handle)
}

func (q *TaskQueue) fail(e *entry, err error) {
	opErr := &OperationError{
		TaskID:   e.handle.id,
		Name:     e.handle.name,
		Attempts: e.handle.Attempts(),
		Err:      err,
	}
	if loc, ok := q.journal.(Locator); ok {
		opErr.Journal = loc.Path()
	}

	q.mu.Lock()
	q.move(e, StatePending, StateFailed)
	e.handle.settle(nil, opErr)
	seq := q.nextSettleSeqLocked()
	q.mu.Unlock()

	q.logger.Error("task failed",
		"task_id", e.handle.id,
		"name", e.handle.name,
		"attempts", opErr.Attempts,
		"error", err)
	q.emitSettled(seq, events.KindFailed, e.handle)
}

// nextSettleSeqLocked hands out the dispatch ticket for a settlement. The
// caller must hold q.mu.
func (q *TaskQueue) nextSettleSeqLocked() uint64 {
	seq := q.settleSeq
	q.settleSeq++
	return seq
}

// emitSettled dispatches a settlement event once every earlier settlement
// has been dispatched.
func (q *TaskQueue) emitSettled(seq uint64, kind events.Kind, h *Handle) {
	q.emitMu.Lock()
	for q.emitSeq != seq {
		q.emitCond.Wait()
	}
	q.emitMu.Unlock()

	q.bus.Emit(kind, h)

	q.emitMu.Lock()
	q.emitSeq++
	q.emitCond.Broadcast()
	q.emitMu.Unlock()
}
