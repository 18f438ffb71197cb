// Package jobs persists the externally visible status of media jobs in SQLite.
//
// Each job identity owns one row that moves idle → processing → ready|failed.
// Writes after the processing transition are keyed by run id so a superseded
// run cannot overwrite the record of a newer one, and terminal rows are never
// rewritten except by a fresh MarkProcessing. The database is opened with WAL
// and a busy timeout; writes additionally retry on SQLITE_BUSY.
package jobs
