// Package queue persists spotted messages in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, and the status transitions that make up the publishing state
// machine. Status writes are guarded: a transition the state machine does not
// allow is rejected at the database level, so no code path can move a message
// into POSTED without a media identifier or reach FAILED from anywhere but
// APPROVED.
//
// Treat this package as the single source of truth for message semantics;
// when you add new statuses or columns, update schema.sql and bump
// schemaVersion.
package queue
