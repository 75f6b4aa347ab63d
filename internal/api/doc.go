// Package api exposes the task queue's admin HTTP endpoints.
//
// Operators can inspect queue counts and task states, pause admission with a
// block (optionally timed), release it again, and look at the result journal.
// Every route under /api/queue requires a bearer token issued by the auth
// service.
package api
