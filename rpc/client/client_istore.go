package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roberthgnz/lsdb/lib/db"
	"github.com/roberthgnz/lsdb/lib/store"
	"github.com/roberthgnz/lsdb/rpc/common"
	"github.com/roberthgnz/lsdb/rpc/serializer"
	"github.com/roberthgnz/lsdb/rpc/transport"
)

// NewRPCStore connects transport and returns a store.IStore served by shard shardId
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {
	adapter, err := connect(shardId, config, transport, serializer)
	if err != nil {
		return nil, err
	}
	return &rpcStore{adapter}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Set(key string, value []byte) error {
	_, err := i.invoke(common.NewSetRequest(key, value))
	return err
}

func (i *rpcStore) SetIfUnset(key string, value []byte) error {
	_, err := i.invoke(common.NewSetIfUnsetRequest(key, value))
	return err
}

func (i *rpcStore) SetEIfUnset(key string, value []byte, lease time.Duration) error {
	_, err := i.invoke(common.NewSetEIfUnsetRequest(key, value, lease))
	return err
}

func (i *rpcStore) Delete(key string) error {
	_, err := i.invoke(common.NewDeleteRequest(key))
	return err
}

func (i *rpcStore) Get(key string) ([]byte, bool, error) {
	resp, err := i.invoke(common.NewGetRequest(key))
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

func (i *rpcStore) Has(key string) (bool, error) {
	resp, err := i.invoke(common.NewHasRequest(key))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) Keys() ([]string, error) {
	resp, err := i.invoke(common.NewKeysRequest())
	if err != nil {
		return nil, err
	}
	var keys []string
	if len(resp.Payload) > 0 {
		if err := json.Unmarshal(resp.Payload, &keys); err != nil {
			return nil, fmt.Errorf("RPC client - malformed key list: %w", err)
		}
	}
	return keys, nil
}

// GetDBInfo is not implemented for rpc
func (i *rpcStore) GetDBInfo() (db.DatabaseInfo, error) {
	return db.DatabaseInfo{}, fmt.Errorf("the GetDBInfo() method is not implemented in the rpc client adapter")
}
