// Package memdb provides an in-memory implementation of the db.KVDB interface.
//
// Keys are spread over a fixed number of shards (one per CPU by default) using a seeded
// FNV-1a hash, each shard being a lock-free xsync.MapOf. Values are copied on the way in and
// on the way out, so callers can never alias the stored bytes.
//
// Every entry remembers the write index it was written at. Writes carrying a smaller index than
// the stored entry are ignored, which lets a replicated state machine re-apply old log entries safely.
//
// Usage:
//
//	engine := memdb.NewMemDB(nil) // one shard per CPU
//	_ = engine.Set("inventory", []byte(`{"items":[]}`), 1)
//	value, ok, _ := engine.Get("inventory")
//
// Save and Load use the snapshot format from the util package.
package memdb
