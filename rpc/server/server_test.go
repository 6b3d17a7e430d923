package server

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/roberthgnz/lsdb/lib/db"
	"github.com/roberthgnz/lsdb/lib/db/engines/memdb"
	"github.com/roberthgnz/lsdb/lib/docdb"
	"github.com/roberthgnz/lsdb/lib/lockmgr"
	"github.com/roberthgnz/lsdb/lib/store/lstore"
	"github.com/roberthgnz/lsdb/rpc/client"
	"github.com/roberthgnz/lsdb/rpc/common"
	"github.com/roberthgnz/lsdb/rpc/serializer"
	"github.com/roberthgnz/lsdb/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// captureTransport only records the handler, requests are injected by loopbackTransport
type captureTransport struct {
	handler transport.ServerHandleFunc
}

func (c *captureTransport) Name() string { return "capture" }

func (c *captureTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	c.handler = handler
}

func (c *captureTransport) Listen(common.ServerConfig) error {
	return nil
}

// loopbackTransport delivers requests straight to a server handler
type loopbackTransport struct {
	handler transport.ServerHandleFunc
}

func (l *loopbackTransport) Name() string                      { return "loopback" }
func (l *loopbackTransport) Connect(common.ClientConfig) error { return nil }
func (l *loopbackTransport) Close() error                      { return nil }

func (l *loopbackTransport) Send(shardId uint64, req []byte) ([]byte, error) {
	return l.handler(shardId, req), nil
}

func startServer(t *testing.T, ser serializer.IRPCSerializer, shards ...string) *loopbackTransport {
	t.Helper()
	parsed, err := common.ParseShards(strings.Join(shards, ","))
	require.NoError(t, err)

	capture := &captureTransport{}
	srv := NewRPCServer(common.ServerConfig{
		Shards:        parsed,
		DataDir:       t.TempDir(),
		TimeoutSecond: 2,
		LogLevel:      "error",
	}, capture, ser)
	require.NoError(t, srv.init())
	t.Cleanup(srv.Close)

	require.NotNil(t, capture.handler)
	return &loopbackTransport{handler: capture.handler}
}

var serializers = map[string]func() serializer.IRPCSerializer{
	"json":   serializer.NewJSONSerializer,
	"gob":    serializer.NewGOBSerializer,
	"binary": serializer.NewBinarySerializer,
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestDocumentDatabaseOverRPC(t *testing.T) {
	for name, newSerializer := range serializers {
		for _, engine := range []string{"memory", "sqlite", "file"} {
			t.Run(fmt.Sprintf("%s/%s", name, engine), func(t *testing.T) {
				ser := newSerializer()
				lb := startServer(t, ser, fmt.Sprintf("300=docdb(%s)", engine))

				shop, err := client.NewRPCDatabase(300, "shop", common.ClientConfig{}, lb, ser)
				require.NoError(t, err)
				assert.Equal(t, "shop", shop.Name())

				require.NoError(t, shop.DeclareCollections([]string{"articles", "users"}, false))

				inserted, err := shop.InsertMany("articles", []docdb.Document{
					{"name": "Cola", "category": "Drinks", "price": 2.5},
					{"name": "Chips", "category": "Snacks", "price": 1.5},
					{"name": "Water", "category": "Drinks", "price": 1},
				})
				require.NoError(t, err)
				require.Len(t, inserted, 3)
				for _, doc := range inserted {
					assert.NotEmpty(t, doc.ID())
				}

				n, err := shop.Count("articles")
				require.NoError(t, err)
				assert.Equal(t, 3, n)

				drinks, err := shop.Find("articles", docdb.FindOptions{
					Where: docdb.Where{docdb.Eq("category", "Drinks")},
					Sort:  &docdb.Sort{Field: "price", Order: docdb.Asc},
				})
				require.NoError(t, err)
				var names []any
				for _, doc := range drinks {
					names = append(names, doc["name"])
				}
				if diff := cmp.Diff([]any{"Water", "Cola"}, names); diff != "" {
					t.Errorf("Find mismatch (-want +got):\n%s", diff)
				}

				doc, ok, err := shop.FindOne("articles", docdb.Where{docdb.Gt("price", 2)})
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, "Cola", doc["name"])

				_, ok, err = shop.FindOne("articles", docdb.Where{docdb.Eq("name", "Beer")})
				require.NoError(t, err)
				assert.False(t, ok)

				before, ok, err := shop.Update("articles", docdb.Match{Field: "name", Value: "Chips"}, docdb.Document{"price": 2})
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, 1.5, before["price"])

				removed, err := shop.Remove("articles", docdb.Where{docdb.Eq("category", "Drinks")})
				require.NoError(t, err)
				assert.Len(t, removed, 2)

				all, err := shop.All("articles")
				require.NoError(t, err)
				require.Len(t, all, 1)
				assert.Equal(t, float64(2), all[0]["price"])

				users, err := shop.All("users")
				require.NoError(t, err)
				assert.NotNil(t, users)
				assert.Empty(t, users)

				snapshot, err := shop.Snapshot()
				require.NoError(t, err)
				assert.Len(t, snapshot, 2)
				assert.Len(t, snapshot["articles"], 1)
				assert.NotNil(t, snapshot["users"])
			})
		}
	}
}

func TestDocumentErrorsKeepTheirType(t *testing.T) {
	ser := serializer.NewJSONSerializer()
	lb := startServer(t, ser, "300=docdb")

	shop, err := client.NewRPCDatabase(300, "shop", common.ClientConfig{}, lb, ser)
	require.NoError(t, err)
	require.NoError(t, shop.DeclareCollections("articles", false))

	t.Run("unknown collection", func(t *testing.T) {
		_, err := shop.All("orders")
		var cerr *docdb.UnknownCollectionError
		require.True(t, errors.As(err, &cerr), "got %v", err)
		assert.Equal(t, "orders", cerr.Collection)
	})

	t.Run("validation", func(t *testing.T) {
		err := shop.DeclareCollections([]any{"a", 1}, false)
		var verr *docdb.ValidationError
		require.True(t, errors.As(err, &verr), "got %v", err)
		assert.Equal(t, docdb.MsgNotAllStrings, verr.Msg)
	})

	t.Run("invalid sort", func(t *testing.T) {
		_, err := shop.Find("articles", docdb.FindOptions{Sort: &docdb.Sort{Field: "price", Order: "up"}})
		var verr *docdb.ValidationError
		assert.True(t, errors.As(err, &verr), "got %v", err)
	})

	t.Run("unsupported operator", func(t *testing.T) {
		_, err := shop.Find("articles", docdb.FindOptions{
			Where: docdb.Where{{Field: "price", Op: "$regex", Value: "x"}},
		})
		var uerr *docdb.UnsupportedOperatorError
		require.True(t, errors.As(err, &uerr), "got %v", err)
		assert.Equal(t, docdb.Operator("$regex"), uerr.Op)
	})
}

func TestDatabasesAreIsolated(t *testing.T) {
	ser := serializer.NewGOBSerializer()
	lb := startServer(t, ser, "300=docdb")

	a, err := client.NewRPCDatabase(300, "a", common.ClientConfig{}, lb, ser)
	require.NoError(t, err)
	b, err := client.NewRPCDatabase(300, "b", common.ClientConfig{}, lb, ser)
	require.NoError(t, err)

	require.NoError(t, a.DeclareCollections("items", false))
	_, err = a.Insert("items", docdb.Document{"x": 1})
	require.NoError(t, err)

	_, err = b.Count("items")
	var cerr *docdb.UnknownCollectionError
	assert.True(t, errors.As(err, &cerr), "got %v", err)
}

func TestKVAndLocksOverRPC(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	lb := startServer(t, ser, "100=kv", "200=lockmgr(sqlite)")

	kv, err := client.NewRPCStore(100, common.ClientConfig{}, lb, ser)
	require.NoError(t, err)

	require.NoError(t, kv.Set("a", []byte("1")))
	require.NoError(t, kv.SetIfUnset("a", []byte("2")))
	require.NoError(t, kv.Set("b", []byte{}))

	value, ok, err := kv.Get("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), value)

	has, err := kv.Has("b")
	require.NoError(t, err)
	assert.True(t, has)

	keys, err := kv.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	require.NoError(t, kv.Delete("a"))
	_, ok, err = kv.Get("a")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = kv.GetDBInfo()
	assert.Error(t, err)

	require.NoError(t, kv.SetEIfUnset("lease", []byte("first"), 30*time.Millisecond))
	require.NoError(t, kv.SetEIfUnset("lease", []byte("second"), time.Minute))
	val, _, err := kv.Get("lease")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), val)

	time.Sleep(60 * time.Millisecond)
	_, ok, err = kv.Get("lease")
	require.NoError(t, err)
	assert.False(t, ok, "entry is hidden once its lease is over")
	require.NoError(t, kv.SetEIfUnset("lease", []byte("second"), time.Minute))
	val, _, err = kv.Get("lease")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), val)

	locks, err := client.NewRPCLockMgr(200, common.ClientConfig{}, lb, ser)
	require.NoError(t, err)

	ok, owner, err := locks.AcquireLock("job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, owner)

	ok, _, err = locks.AcquireLock("job", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = locks.ReleaseLock("job", []byte("someone else"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = locks.ReleaseLock("job", owner)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnknownShardAndMismatchedRequests(t *testing.T) {
	ser := serializer.NewJSONSerializer()
	lb := startServer(t, ser, "100=kv", "300=docdb")

	missing, err := client.NewRPCStore(999, common.ClientConfig{}, lb, ser)
	require.NoError(t, err)
	_, _, err = missing.Get("a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shard 999 not found")

	// a kv client talking to the docdb shard
	wrong, err := client.NewRPCStore(300, common.ClientConfig{}, lb, ser)
	require.NoError(t, err)
	_, _, err = wrong.Get("a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unsupported message type")

	resp := &common.Message{}
	require.NoError(t, ser.Deserialize(lb.handler(100, []byte("not json")), resp))
	assert.Equal(t, common.MsgTError, resp.MsgType)
}

func TestShardConfigErrors(t *testing.T) {
	_, err := newAdapter(common.ServerShard{ShardID: 1, Type: "queue", Engine: common.EngineMemory}, 0)
	assert.Error(t, err)

	srv := NewRPCServer(common.ServerConfig{}, &captureTransport{}, serializer.NewJSONSerializer())
	_, err = srv.openStore(common.ServerShard{ShardID: 1, Type: common.ShardTypeKV, Engine: common.EngineRaft})
	assert.Error(t, err, "raft shards need a node host")
}

func TestSharedDocDBAdapters(t *testing.T) {
	// two servers on one replicated store
	s := lstore.NewLocalStore(func() db.KVDB { return memdb.NewMemDB(nil) })
	first := NewDocDBServerAdapter(true, 200*time.Millisecond)
	second := NewDocDBServerAdapter(true, 200*time.Millisecond)

	call := func(adapter IRPCServerAdapter, mt common.MessageType, payload *common.DocPayload) (*common.Message, *common.DocPayload) {
		t.Helper()
		req, err := common.NewDocRequest(mt, "shop", "items", payload)
		require.NoError(t, err)
		resp := adapter.Handle(req, s)
		require.Empty(t, resp.Err, "%s failed", mt)
		out, err := resp.DecodePayload()
		require.NoError(t, err)
		return resp, out
	}

	call(first, common.MsgTDOCDeclare, &common.DocPayload{Names: []string{"items"}})
	call(second, common.MsgTDOCInsert, &common.DocPayload{Document: docdb.Document{"src": "second"}})
	call(first, common.MsgTDOCInsert, &common.DocPayload{Document: docdb.Document{"src": "first"}})

	for name, adapter := range map[string]IRPCServerAdapter{"first": first, "second": second} {
		_, out := call(adapter, common.MsgTDOCCount, nil)
		assert.Equal(t, 2, out.Count, "%s adapter misses a write", name)
	}

	// a lock held elsewhere makes mutations fail instead of overwriting
	locks := lockmgr.NewLockManager(s)
	ok, owner, err := locks.AcquireLock("lsdb/lock/shop", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	req, err := common.NewDocRequest(common.MsgTDOCInsert, "shop", "items", &common.DocPayload{Document: docdb.Document{"src": "blocked"}})
	require.NoError(t, err)
	resp := second.Handle(req, s)
	assert.Contains(t, resp.Err, "failed to lock database")

	_, out := call(first, common.MsgTDOCCount, nil)
	assert.Equal(t, 2, out.Count)

	ok, err = locks.ReleaseLock("lsdb/lock/shop", owner)
	require.NoError(t, err)
	require.True(t, ok)
	call(second, common.MsgTDOCInsert, &common.DocPayload{Document: docdb.Document{"src": "after"}})
	_, out = call(first, common.MsgTDOCCount, nil)
	assert.Equal(t, 3, out.Count)

	req, err = common.NewDocRequest(common.MsgTDOCCount, "lsdb/lock/shop", "items", nil)
	require.NoError(t, err)
	var verr *docdb.ValidationError
	assert.True(t, errors.As(common.DecodeError(first.Handle(req, s).Err), &verr), "reserved database names are rejected")
}
