package client

import (
	"time"

	"github.com/roberthgnz/lsdb/lib/lockmgr"
	"github.com/roberthgnz/lsdb/rpc/common"
	"github.com/roberthgnz/lsdb/rpc/serializer"
	"github.com/roberthgnz/lsdb/rpc/transport"
)

// NewRPCLockMgr connects transport and returns a lockmgr.ILockManager served by shard shardId
func NewRPCLockMgr(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (lockmgr.ILockManager, error) {
	adapter, err := connect(shardId, config, transport, serializer)
	if err != nil {
		return nil, err
	}
	return &rpcLockMgr{adapter}, nil
}

type rpcLockMgr struct {
	rpcClientAdapter
}

func (i *rpcLockMgr) AcquireLock(key string, lease time.Duration) (bool, []byte, error) {
	resp, err := i.invoke(common.NewAcquireRequest(key, lease))
	if err != nil {
		return false, nil, err
	}
	return resp.Ok, resp.Value, nil
}

func (i *rpcLockMgr) ReleaseLock(key string, ownerID []byte) (bool, error) {
	resp, err := i.invoke(common.NewReleaseRequest(key, ownerID))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}
