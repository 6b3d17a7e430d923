// Package base implements the framed, multiplexed RPC transport shared by the tcp and unix
// transports. Protocol specific parts (dialing, listening, socket options) are injected through
// IClientConnector and IServerConnector.
//
// Frame format (big endian):
//
//	shardID (8 bytes) | requestID (8 bytes) | length (4 bytes) | payload
//
// Client:
//
//   - ConnectionsPerEndpoint connections per endpoint, requests are spread round-robin.
//   - Requests on one connection are pipelined, responses are matched by request ID.
//   - Failed requests are retried with exponential backoff. A broken connection fails its
//     pending requests and is re-established in the background.
//
// Server:
//
//   - One goroutine reads each connection, requests are handled by up to WorkersPerConn
//     workers per connection, responses may therefore arrive out of order.
//   - Request buffers are pooled.
package base
