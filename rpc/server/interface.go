package server

import (
	"github.com/roberthgnz/lsdb/lib/store"
	"github.com/roberthgnz/lsdb/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters.
// It translates a request into calls on the shard's store and builds the response.
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response.
	// Errors are reported in the response, never returned.
	Handle(req *common.Message, store store.IStore) (resp *common.Message)
}
