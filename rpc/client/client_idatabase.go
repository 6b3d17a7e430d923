package client

import (
	"github.com/roberthgnz/lsdb/lib/docdb"
	"github.com/roberthgnz/lsdb/rpc/common"
	"github.com/roberthgnz/lsdb/rpc/serializer"
	"github.com/roberthgnz/lsdb/rpc/transport"
)

// NewRPCDatabase connects transport and returns the document database name served by shard shardId.
// The database is created on the server by the first request.
func NewRPCDatabase(
	shardId uint64,
	name string,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (docdb.IDatabase, error) {
	adapter, err := connect(shardId, config, transport, serializer)
	if err != nil {
		return nil, err
	}
	return &rpcDatabase{rpcClientAdapter: adapter, name: name}, nil
}

type rpcDatabase struct {
	rpcClientAdapter
	name string
}

// call sends the document operation t and decodes the response payload
func (i *rpcDatabase) call(t common.MessageType, collection string, payload *common.DocPayload) (*common.DocPayload, bool, error) {
	req, err := common.NewDocRequest(t, i.name, collection, payload)
	if err != nil {
		return nil, false, err
	}
	resp, err := i.invoke(req)
	if err != nil {
		return nil, false, err
	}
	result, err := resp.DecodePayload()
	if err != nil {
		return nil, false, err
	}
	return result, resp.Ok, nil
}

// validWhere fails fast on filters the server would reject
func validWhere(where docdb.Where) error {
	_, err := docdb.CompileWhere(where)
	return err
}

func orEmpty(docs []docdb.Document) []docdb.Document {
	if docs == nil {
		return []docdb.Document{}
	}
	return docs
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the docdb package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcDatabase) Name() string {
	return i.name
}

func (i *rpcDatabase) DeclareCollections(names any, replace bool) error {
	if _, err := docdb.ParseCollectionNames(names); err != nil {
		return err
	}
	_, _, err := i.call(common.MsgTDOCDeclare, "", &common.DocPayload{Names: names, Replace: replace})
	return err
}

func (i *rpcDatabase) Count(collection string) (int, error) {
	result, _, err := i.call(common.MsgTDOCCount, collection, nil)
	if err != nil {
		return 0, err
	}
	return result.Count, nil
}

func (i *rpcDatabase) Find(collection string, opts docdb.FindOptions) ([]docdb.Document, error) {
	if err := validWhere(opts.Where); err != nil {
		return nil, err
	}
	result, _, err := i.call(common.MsgTDOCFind, collection, &common.DocPayload{Find: &opts})
	if err != nil {
		return nil, err
	}
	return orEmpty(result.Documents), nil
}

func (i *rpcDatabase) FindOne(collection string, where docdb.Where) (docdb.Document, bool, error) {
	if err := validWhere(where); err != nil {
		return nil, false, err
	}
	result, ok, err := i.call(common.MsgTDOCFindOne, collection, &common.DocPayload{Where: where})
	if err != nil || !ok {
		return nil, false, err
	}
	return result.Document, true, nil
}

func (i *rpcDatabase) Insert(collection string, doc docdb.Document) (docdb.Document, error) {
	result, _, err := i.call(common.MsgTDOCInsert, collection, &common.DocPayload{Document: doc})
	if err != nil {
		return nil, err
	}
	return result.Document, nil
}

func (i *rpcDatabase) InsertMany(collection string, docs []docdb.Document) ([]docdb.Document, error) {
	result, _, err := i.call(common.MsgTDOCInsertMany, collection, &common.DocPayload{Documents: docs})
	if err != nil {
		return nil, err
	}
	return orEmpty(result.Documents), nil
}

func (i *rpcDatabase) Update(collection string, m docdb.Match, patch docdb.Document) (docdb.Document, bool, error) {
	result, ok, err := i.call(common.MsgTDOCUpdate, collection, &common.DocPayload{Match: &m, Document: patch})
	if err != nil || !ok {
		return nil, false, err
	}
	return result.Document, true, nil
}

func (i *rpcDatabase) Remove(collection string, where docdb.Where) ([]docdb.Document, error) {
	if err := validWhere(where); err != nil {
		return nil, err
	}
	result, _, err := i.call(common.MsgTDOCRemove, collection, &common.DocPayload{Where: where})
	if err != nil {
		return nil, err
	}
	return orEmpty(result.Documents), nil
}

func (i *rpcDatabase) All(collection string) ([]docdb.Document, error) {
	result, _, err := i.call(common.MsgTDOCAll, collection, nil)
	if err != nil {
		return nil, err
	}
	return orEmpty(result.Documents), nil
}

func (i *rpcDatabase) Snapshot() (map[string][]docdb.Document, error) {
	result, _, err := i.call(common.MsgTDOCSnapshot, "", nil)
	if err != nil {
		return nil, err
	}
	snapshot := make(map[string][]docdb.Document, len(result.Collections))
	for name, docs := range result.Collections {
		snapshot[name] = orEmpty(docs)
	}
	return snapshot, nil
}
