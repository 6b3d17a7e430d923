// Package sqlitedb provides a durable db.KVDB engine backed by SQLite (github.com/mattn/go-sqlite3).
//
// All entries live in one table keyed by the entry key. The write index of every entry is stored
// alongside the value so stale writes can be rejected inside the UPSERT statement, and the engine's
// index is recovered from MAX(idx) on open.
//
// The database is opened in WAL mode with a single connection.
package sqlitedb
