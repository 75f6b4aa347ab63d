// Package task implements a bounded-concurrency task queue.
//
// A TaskQueue accepts asynchronous operations, admits them in strict FIFO
// order while fewer than MaxConcurrent are running, and records each one's
// outcome. Admission can be paused with BlockQueue (optionally for a fixed
// duration) and resumed with UnblockQueue without affecting operations that
// are already running. Failed operations can be retried in place a bounded
// number of times, an optional delay throttles consecutive admissions, and
// every lifecycle transition is published on an event bus.
//
// When built with a Journal, every successful result is appended to it as
// soon as the operation completes, and the records of a previous run are
// loaded at construction so callers can resume where they left off.
//
// Usage:
//
//	q, err := task.NewTaskQueue(task.DefaultQueueConfig(), logger)
//	if err != nil {
//	    return err
//	}
//	defer q.Close()
//
//	q.On(events.KindComplete, func(rec events.Record[*task.Handle]) error {
//	    logger.Info("done", "name", rec.Subject.Name())
//	    return nil
//	})
//
//	h, _ := q.Add(fetchPage, task.WithName("page 1"))
//	results, err := q.IsDone(ctx)
package task
