// Package queue persists card assets, batches, processing jobs, and the
// reference roster, and exposes the job-store and transactional primitives the
// pipeline stages rely on.
//
// Two storage modes share one schema: SQLite (default, single host) and
// Postgres (shared store for multiple daemons). Job claiming is a single
// compare-and-swap UPDATE ... RETURNING so two workers never claim the same
// QUEUED job; Postgres additionally uses FOR UPDATE SKIP LOCKED. Stage
// handlers mutate assets and batches only through WithinTx so the persist,
// transition, and enqueue-next sequence is all-or-nothing.
//
// Schema changes bump schemaVersion in schema.go and edit both schema files.
package queue
