// Package progress renders a live view of a task queue to a terminal: a
// completion bar, the tasks currently running, the block gate and the
// queued, fetched and failed counts.
package progress
