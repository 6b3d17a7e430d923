// Package dstore implements store.IStore on a Dragonboat raft shard, so a document database
// can be replicated across several lsdb servers.
//
// Components:
//
//   - Store: proposes writes (Set, SetIfUnset, Delete) with SyncPropose and serves reads through
//     SyncRead. GetDBInfo uses StaleRead since it is informational only.
//   - State machine: a Dragonboat IConcurrentStateMachine owning a db.KVDB replica. The raft log
//     index is used as the engine's write index, so re-applied entries never overwrite newer data.
//   - internal: the binary Command format written to the raft log.
//
// Because a document database is stored as one snapshot per database name, every mutation of a
// document database is a single Set command carrying the new snapshot.
//
// Retries: ErrSystemBusy is retried up to five times with a delay of timeout/10 before the
// operation fails with RetCInternalError.
//
// Snapshots use the engine's Save and Load, any engine with FeatureSave|FeatureLoad can back a replica.
//
// Example:
//
//	nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	if err != nil { ... }
//
//	err = nh.StartConcurrentReplica(
//	    members,
//	    false,
//	    dstore.CreateStateMachineFactory(func() db.KVDB { return memdb.NewMemDB(nil) }),
//	    shardConfig)
//	if err != nil { ... }
//
//	kv := dstore.NewDistributedStore(nh, shardID, 5*time.Second)
//	handle, err := docdb.Open(kv, "app")
package dstore
