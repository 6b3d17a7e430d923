// Package db defines the blob engine contract that sits underneath every lsdb document database.
//
// A document database is persisted as a single JSON object stored under the database name,
// so all the engines have to provide is a durable (or not) mapping from string keys to byte slices.
// The KVDB interface captures that mapping together with:
//   - Feature discovery through capability flags (SupportsFeature)
//   - Portable snapshots (Save, Load) used by the raft state machine and for backups
//   - A monotonic logical write index used by replicated stores to ignore stale writes
//
// Engines:
//   - engines/memdb: sharded in-memory map, the default for tests and ephemeral servers
//   - engines/sqlitedb: a single-table SQLite database
//   - engines/filedb: one file per key, each write replacing the file atomically
//
// The testing package contains RunKVDBTests, the conformance suite every engine runs.
package db
