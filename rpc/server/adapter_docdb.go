package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/roberthgnz/lsdb/lib/docdb"
	"github.com/roberthgnz/lsdb/lib/lockmgr"
	"github.com/roberthgnz/lsdb/lib/store"
	"github.com/roberthgnz/lsdb/rpc/common"
)

// NewDocDBServerAdapter creates an adapter serving document databases stored in the shard's store.
//
// Databases are opened on first use and kept in memory, requests for the same database are
// serialized. If shared is set, other servers write to the same store (raft shards): reads
// reload the database first and mutations hold the database lock (waiting at most lockTimeout).
func NewDocDBServerAdapter(shared bool, lockTimeout time.Duration) IRPCServerAdapter {
	return &docDBServerAdapter{
		shared:      shared,
		lockTimeout: lockTimeout,
		databases:   xsync.NewMapOf[string, *openDatabase](),
	}
}

type docDBServerAdapter struct {
	shared      bool
	lockTimeout time.Duration
	databases   *xsync.MapOf[string, *openDatabase]
}

// openDatabase guards one database handle, docdb.Database is not safe for concurrent use
type openDatabase struct {
	mu sync.Mutex
	db *docdb.Database
}

func (a *docDBServerAdapter) Handle(req *common.Message, s store.IStore) *common.Message {
	if s == nil {
		return common.NewErrorResponse("handler: store is nil")
	}
	if !req.MsgType.IsDocOperation() {
		return common.NewErrorResponse(fmt.Sprintf("RPC DocDBAdapter - Unsupported message type: %s", req.MsgType))
	}
	if req.Database == "" {
		return common.NewDocResponse(req.MsgType, nil, false, &docdb.ValidationError{Msg: "database name must not be empty"})
	}

	payload, err := req.DecodePayload()
	if err != nil {
		return common.NewDocResponse(req.MsgType, nil, false, &docdb.ValidationError{Msg: fmt.Sprintf("malformed payload: %v", err)})
	}

	entry, _ := a.databases.LoadOrCompute(req.Database, func() *openDatabase {
		return &openDatabase{}
	})
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.db == nil {
		var opts []docdb.Option
		if a.shared {
			opts = append(opts, docdb.WithLocker(lockmgr.NewLockManager(s), a.lockTimeout))
		}
		d, err := docdb.Open(s, req.Database, opts...)
		if err != nil {
			return common.NewDocResponse(req.MsgType, nil, false, err)
		}
		entry.db = d
	} else if a.shared && !isMutation(req.MsgType) {
		if err := entry.db.Reload(); err != nil {
			return common.NewDocResponse(req.MsgType, nil, false, err)
		}
	}

	result, ok, err := dispatchDoc(entry.db, req, payload)
	return common.NewDocResponse(req.MsgType, result, ok, err)
}

func isMutation(t common.MessageType) bool {
	switch t {
	case common.MsgTDOCDeclare, common.MsgTDOCInsert, common.MsgTDOCInsertMany, common.MsgTDOCUpdate, common.MsgTDOCRemove:
		return true
	}
	return false
}

// dispatchDoc runs the document operation of req against d
func dispatchDoc(d docdb.IDatabase, req *common.Message, p *common.DocPayload) (*common.DocPayload, bool, error) {
	coll := req.Collection

	switch req.MsgType {
	case common.MsgTDOCDeclare:
		return nil, false, d.DeclareCollections(p.Names, p.Replace)

	case common.MsgTDOCCount:
		n, err := d.Count(coll)
		return &common.DocPayload{Count: n}, false, err

	case common.MsgTDOCFind:
		var opts docdb.FindOptions
		if p.Find != nil {
			opts = *p.Find
		}
		docs, err := d.Find(coll, opts)
		return &common.DocPayload{Documents: docs}, false, err

	case common.MsgTDOCFindOne:
		doc, ok, err := d.FindOne(coll, p.Where)
		return &common.DocPayload{Document: doc}, ok, err

	case common.MsgTDOCInsert:
		doc, err := d.Insert(coll, p.Document)
		return &common.DocPayload{Document: doc}, false, err

	case common.MsgTDOCInsertMany:
		docs, err := d.InsertMany(coll, p.Documents)
		return &common.DocPayload{Documents: docs}, false, err

	case common.MsgTDOCUpdate:
		if p.Match == nil {
			return nil, false, &docdb.ValidationError{Msg: "update requires a match"}
		}
		before, ok, err := d.Update(coll, *p.Match, p.Document)
		return &common.DocPayload{Document: before}, ok, err

	case common.MsgTDOCRemove:
		docs, err := d.Remove(coll, p.Where)
		return &common.DocPayload{Documents: docs}, false, err

	case common.MsgTDOCAll:
		docs, err := d.All(coll)
		return &common.DocPayload{Documents: docs}, false, err

	case common.MsgTDOCSnapshot:
		snapshot, err := d.Snapshot()
		return &common.DocPayload{Collections: snapshot}, false, err
	}
	return nil, false, fmt.Errorf("unsupported document operation %s", req.MsgType)
}
