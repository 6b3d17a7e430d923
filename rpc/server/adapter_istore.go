package server

import (
	"fmt"

	"github.com/roberthgnz/lsdb/lib/store"
	"github.com/roberthgnz/lsdb/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, store store.IStore) *common.Message {
	if store == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	switch req.MsgType {
	case common.MsgTKVSet:
		return common.NewResponse(req.MsgType, store.Set(req.Key, req.Value))
	case common.MsgTKVSetIfUnset:
		return common.NewResponse(req.MsgType, store.SetIfUnset(req.Key, req.Value))
	case common.MsgTKVSetEIfUnset:
		return common.NewResponse(req.MsgType, store.SetEIfUnset(req.Key, req.Value, req.Lease()))
	case common.MsgTKVDelete:
		return common.NewResponse(req.MsgType, store.Delete(req.Key))
	case common.MsgTKVGet:
		val, ok, err := store.Get(req.Key)
		return common.NewValueResponse(req.MsgType, val, ok, err)
	case common.MsgTKVHas:
		ok, err := store.Has(req.Key)
		return common.NewValueResponse(req.MsgType, nil, ok, err)
	case common.MsgTKVKeys:
		keys, err := store.Keys()
		return common.NewKeysResponse(keys, err)
	default:
		return common.NewErrorResponse(fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType))
	}
}
