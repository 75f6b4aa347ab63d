// Package fetch pages through a cursor-based HTTP listing endpoint using a
// task queue: one task per page, each page queueing the next. Rate limit
// responses block the queue for the server's Retry-After period, and a run
// over a journal that already holds pages resumes after the last one.
package fetch
