// Package rpc makes the lsdb stores available over the network.
//
// The package is organized into several subpackages:
//
//   - common: the Message protocol, the document payload, configuration and logging.
//
//   - transport: pluggable network layers (HTTP, TCP, Unix sockets).
//
//   - serializer: Message encodings (JSON, GOB, Binary).
//
//   - client: RPC clients implementing store.IStore, lockmgr.ILockManager and docdb.IDatabase.
//
//   - server: the RPC server routing requests to the shards and their adapters.
//
// A request travels as follows: the client builds a common.Message, the serializer turns it
// into bytes, the transport delivers them to the server together with the target shard id,
// and the shard's adapter answers with a response message on the same way back.
//
// Client and server have to agree on transport and serializer.
package rpc
