// Package events provides the lifecycle event vocabulary and a synchronous,
// kind-keyed event bus used by the task queue.
//
// Listeners subscribe to a single Kind or to All, which is expanded into one
// registration per kind at subscribe time. Dispatch happens on the emitting
// goroutine, in registration order. A listener that returns an error or panics
// is isolated from the others: the failure is logged and handed to the bus's
// error reporter, and delivery continues with the next listener.
//
// The primary components are:
// - Kind: the lifecycle event kinds (queued, start, complete, failed, blocked, unblocked)
// - Record: a (Kind, Subject) pair handed to listeners
// - Bus: per-kind listener registration and dispatch
package events
