// Package journal provides an append-only file journal for task results.
//
// Each record is stored as one JSON document per line. A journal opened on an
// existing file loads its records first, so a restarted job can skip the work
// it already finished. The file journal satisfies task.Journal.
package journal
