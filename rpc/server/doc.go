// Package server implements the lsdb RPC server. Every shard pairs a store.IStore with an
// adapter that turns request messages into calls on the service the shard exposes.
//
// Shard types:
//
//   - kv: plain key-value access (NewIStoreServerAdapter)
//   - lockmgr: named locks on top of the store (NewLockManagerServerAdapter)
//   - docdb: document databases, one per database name in a request (NewDocDBServerAdapter)
//
// Every shard runs on an engine. memory, sqlite and file keep the data on this node, raft
// replicates it with dragonboat across the configured cluster members. Document databases
// on raft shards are written by several servers, so they serialize mutations with a lock
// and reload the stored state before each request.
//
// Usage Example:
//
//	shards, _ := common.ParseShards("100=kv,200=lockmgr,300=docdb(sqlite)")
//	config := common.ServerConfig{
//		Shards:        shards,
//		DataDir:       "/var/lib/lsdb",
//		TimeoutSecond: 5,
//		Transport:     common.ServerTransportConfig{Endpoint: ":8080"},
//	}
//
//	s := server.NewRPCServer(config, http.NewHttpServerTransport(), serializer.NewJSONSerializer())
//	if err := s.Serve(); err != nil {
//		log.Fatal(err)
//	}
//
// Request counts, errors and latencies are recorded per shard and message type with
// VictoriaMetrics. The http transport serves them at /metrics.
package server
