// Package transport defines the client and server contracts that move serialized RPC
// messages between processes. Requests are routed by shard ID, the transports never look
// into the payload.
//
// Implementations live in the subpackages http, tcp and unix. tcp and unix share the framed
// connection handling of package base.
package transport
