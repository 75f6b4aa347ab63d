// Package store defines the persistence contracts for task journals.
//
// The interfaces and record types here keep the queue and its collaborators
// independent of the database that backs a journal. The PostgreSQL
// implementation lives in internal/platform/postgres.
package store
