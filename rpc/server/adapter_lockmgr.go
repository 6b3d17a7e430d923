package server

import (
	"fmt"

	"github.com/roberthgnz/lsdb/lib/lockmgr"
	"github.com/roberthgnz/lsdb/lib/store"
	"github.com/roberthgnz/lsdb/rpc/common"
)

func NewLockManagerServerAdapter() IRPCServerAdapter {
	return &lockMgrServerAdapter{}
}

type lockMgrServerAdapter struct{}

func (adapter *lockMgrServerAdapter) Handle(req *common.Message, store store.IStore) *common.Message {
	if store == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	locks := lockmgr.NewLockManager(store)

	switch req.MsgType {
	case common.MsgTLCKAcquire:
		ok, ownerID, err := locks.AcquireLock(req.Key, req.Lease())
		return common.NewOkResponse(req.MsgType, ok, ownerID, err)
	case common.MsgTLCKRelease:
		ok, err := locks.ReleaseLock(req.Key, req.Value)
		return common.NewOkResponse(req.MsgType, ok, nil, err)
	default:
		return common.NewErrorResponse(fmt.Sprintf("RPC LockManagerAdapter - Unsupported message type: %s", req.MsgType))
	}
}
