// Package util provides helpers shared by the db.KVDB engines.
//
// The package contains:
//   - functions: seeded FNV-1a hashing, shard selection and byte copying
//   - snapshot: the engine-independent binary snapshot format used by Save and Load
//
// Because all engines write the same snapshot format, a snapshot taken from one engine
// can be restored into any other (e.g. moving a memory shard onto SQLite).
package util
