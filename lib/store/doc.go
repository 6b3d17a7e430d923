// Package store defines IStore, the key-value contract a document database is persisted through.
//
// A document database never talks to an engine directly. It reads its snapshot with Get once at open
// and writes it back with Set after every mutation, so any IStore works as a backend:
//
//   - lstore: a local store directly on top of a db.KVDB engine
//   - dstore: a raft replicated store built on Dragonboat, every node holding a db.KVDB replica
//   - rpc/client: a remote store reached through the lsdb RPC server
//
// Errors are reported as *Error values carrying a RetCode, so callers can tell an unsupported
// operation from an internal engine failure.
package store
