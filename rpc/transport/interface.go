package transport

import (
	"github.com/roberthgnz/lsdb/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc answers one serialized request addressed to shardId.
// It is called concurrently by the transports and must always return a response.
type ServerHandleFunc func(shardId uint64, req []byte) (resp []byte)

// IRPCServerTransport accepts requests from the network and passes them to the registered handler
type IRPCServerTransport interface {
	// Name identifies the transport ("http", "tcp", "unix")
	Name() string
	// RegisterHandler sets the handler, it has to be called before Listen
	RegisterHandler(handler ServerHandleFunc)
	// Listen serves config.Transport.Endpoint and blocks until the listener fails
	Listen(config common.ServerConfig) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport delivers serialized requests to a server. Implementations are safe for concurrent use.
type IRPCClientTransport interface {
	// Name identifies the transport ("http", "tcp", "unix")
	Name() string
	// Connect prepares the transport for config.Transport.Endpoints, a connected transport is reset
	Connect(config common.ClientConfig) error
	// Send delivers req to shard shardId and waits for the response, retrying per config
	Send(shardId uint64, req []byte) (resp []byte, err error)
	// Close releases all connections
	Close() error
}
