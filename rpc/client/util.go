package client

import (
	"fmt"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/roberthgnz/lsdb/rpc/common"
	"github.com/roberthgnz/lsdb/rpc/serializer"
	"github.com/roberthgnz/lsdb/rpc/transport"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter stores all data needed by an RPC client.
// Used by the RPC store, lock manager and database clients with composition pattern.
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// connect connects the transport and builds the shared client state
func connect(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (rpcClientAdapter, error) {
	if err := transport.Connect(config); err != nil {
		return rpcClientAdapter{}, err
	}
	return rpcClientAdapter{
		shardId:    shardId,
		config:     config,
		transport:  transport,
		serializer: serializer,
	}, nil
}

// invoke sends req and returns the response.
// Error responses become errors, document errors are returned as the typed errors of package docdb.
// A response of another type than the request is an error as well.
func (a *rpcClientAdapter) invoke(req *common.Message) (*common.Message, error) {
	reqBytes, err := a.serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	respBytes, err := a.transport.Send(a.shardId, reqBytes)
	if err != nil {
		return nil, err
	}

	resp := &common.Message{}
	if err := a.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("RPC client - failed to deserialize response: %w", err)
	}

	if resp.MsgType == common.MsgTError {
		return nil, fmt.Errorf("RPC client - Error: %s", resp.Err)
	}
	if resp.Err != "" {
		if req.MsgType.IsDocOperation() {
			return nil, common.DecodeError(resp.Err)
		}
		return nil, fmt.Errorf("RPC client - Error: %s", resp.Err)
	}

	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("RPC client - Unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}
	return resp, nil
}

// Close closes the underlying transport
func (a *rpcClientAdapter) Close() error {
	return a.transport.Close()
}
