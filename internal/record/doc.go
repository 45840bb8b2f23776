// Package record persists per-segment processing state and the durable
// outbound job queue in SQLite.
//
// The Store is the single source of truth for pipeline state. A record's
// status is its only control field; guarded updates (compare-and-swap on
// status) serialize racing transitions on the same record, and
// EnqueueAndTransition makes a dispatch atomic with its status flip so a
// record can never claim an in-flight stage that has no job behind it.
//
// Queue entries carry course and segment identifiers as first-class columns,
// which lets hygiene purge by key instead of pattern-matching serialized
// payloads. The database is working state, not an archive; schema changes
// bump schemaVersion and require clearing the database.
package record
