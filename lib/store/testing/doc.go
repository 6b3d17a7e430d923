// Package testing provides RunIStoreTests, the contract suite shared by all store.IStore implementations
// (local, raft replicated and remote).
package testing
