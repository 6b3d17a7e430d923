// Package lstore implements a single node store.IStore on top of any db.KVDB engine.
//
// The store owns the engine's write index: every write takes the next value of an atomic counter,
// seeded from the engine's own index so durable engines (sqlitedb, filedb) keep ordering across restarts.
// Before executing an operation the store checks the engine's feature flags and returns a
// store.Error with RetCUnsupportedOperation instead of calling into an engine that cannot serve it.
// Engine failures are reported as RetCInternalError.
//
// Usage Example:
//
//	kv := lstore.NewLocalStore(func() db.KVDB { return memdb.NewMemDB(nil) })
//	handle, err := docdb.Open(kv, "app")
//
// For replicated deployments use the dstore package, which offers the same interface on raft.
package lstore
