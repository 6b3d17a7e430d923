package server

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/roberthgnz/lsdb/lib/db"
	"github.com/roberthgnz/lsdb/lib/db/engines/filedb"
	"github.com/roberthgnz/lsdb/lib/db/engines/memdb"
	"github.com/roberthgnz/lsdb/lib/db/engines/sqlitedb"
	"github.com/roberthgnz/lsdb/lib/store"
	"github.com/roberthgnz/lsdb/lib/store/dstore"
	"github.com/roberthgnz/lsdb/lib/store/lstore"
	"github.com/roberthgnz/lsdb/rpc/common"
	"github.com/roberthgnz/lsdb/rpc/serializer"
	"github.com/roberthgnz/lsdb/rpc/transport"
)

var Logger = logger.GetLogger("rpc")

// serverShard is a struct that represents a shard in the RPC server
// It contains the store it encapsulates and the adapter
// that handles requests for the store
type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// RPCServer routes requests received by a transport to the adapters of its shards
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]
	nodeHost   *dragonboat.NodeHost
	engines    []db.KVDB
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
	}
}

// handle decodes a request, lets the shard's adapter answer it and encodes the response
func (s *RPCServer) handle(shardId uint64, req []byte) []byte {
	start := time.Now()

	var respMsg *common.Message
	var msg common.Message
	shard, ok := s.shards.Load(shardId)
	if !ok {
		respMsg = common.NewErrorResponse(fmt.Sprintf("shard %d not found", shardId))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		respMsg = shard.Adapter.Handle(&msg, shard.Store)
	}

	observeRequest(shardId, msg.MsgType, respMsg, time.Since(start))

	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// observeRequest records count, errors and latency per shard and message type
func observeRequest(shardId uint64, t common.MessageType, resp *common.Message, took time.Duration) {
	labels := fmt.Sprintf(`{shard="%d",type="%s"}`, shardId, t)
	metrics.GetOrCreateCounter("lsdb_rpc_requests_total" + labels).Inc()
	metrics.GetOrCreateHistogram("lsdb_rpc_request_duration_seconds" + labels).Update(took.Seconds())
	if resp.Err != "" {
		metrics.GetOrCreateCounter("lsdb_rpc_errors_total" + labels).Inc()
	}
}

// openStore creates the store of one shard on the configured engine
func (s *RPCServer) openStore(shard common.ServerShard) (store.IStore, error) {
	var engine db.KVDB
	var err error

	switch shard.Engine {
	case common.EngineMemory:
		return lstore.NewLocalStore(func() db.KVDB { return memdb.NewMemDB(nil) }), nil
	case common.EngineSQLite:
		engine, err = sqlitedb.NewSQLiteDB(filepath.Join(s.config.DataDir, fmt.Sprintf("shard-%d.sqlite", shard.ShardID)))
	case common.EngineFile:
		engine, err = filedb.NewFileDB(filepath.Join(s.config.DataDir, fmt.Sprintf("shard-%d", shard.ShardID)))
	case common.EngineRaft:
		if s.nodeHost == nil {
			return nil, fmt.Errorf("node host is nil, cannot create raft store")
		}
		factory := dstore.CreateStateMachineFactory(func() db.KVDB { return memdb.NewMemDB(nil) })
		if err := s.nodeHost.StartConcurrentReplica(s.config.ClusterMembers, false, factory, s.config.ToDragonboatConfig(shard.ShardID)); err != nil {
			return nil, fmt.Errorf("failed to start shard %d: %w", shard.ShardID, err)
		}
		return dstore.NewDistributedStore(s.nodeHost, shard.ShardID, time.Duration(s.config.TimeoutSecond)*time.Second), nil
	default:
		return nil, fmt.Errorf("invalid engine: %s", shard.Engine)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open %s engine for shard %d: %w", shard.Engine, shard.ShardID, err)
	}
	s.engines = append(s.engines, engine)
	return lstore.NewLocalStore(func() db.KVDB { return engine }), nil
}

func newAdapter(shard common.ServerShard, timeout time.Duration) (IRPCServerAdapter, error) {
	switch shard.Type {
	case common.ShardTypeKV:
		return NewIStoreServerAdapter(), nil
	case common.ShardTypeLockMgr:
		return NewLockManagerServerAdapter(), nil
	case common.ShardTypeDocDB:
		return NewDocDBServerAdapter(shard.Engine == common.EngineRaft, timeout), nil
	}
	return nil, fmt.Errorf("invalid shard type: %s", shard.Type)
}

func (s *RPCServer) init() error {
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}
	Logger.Infof("Created RPC Server (transport %s, serializer %s)", s.transport.Name(), s.serializer.Name())
	Logger.Infof("%s", s.config.String())

	// Only create the NodeHost if we have raft shards
	if s.config.HasRaftShard() {
		nodeHost, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.nodeHost = nodeHost
	}

	timeout := time.Duration(s.config.TimeoutSecond) * time.Second
	for _, shardConfig := range s.config.Shards {
		st, err := s.openStore(shardConfig)
		if err != nil {
			return err
		}
		adapter, err := newAdapter(shardConfig, timeout)
		if err != nil {
			return err
		}
		s.shards.Store(shardConfig.ShardID, serverShard{Store: st, Adapter: adapter})
		Logger.Infof("created %s for shard %d", shardConfig, shardConfig.ShardID)
	}

	Logger.Infof("lsdb setup completed successfully")

	s.transport.RegisterHandler(s.handle)
	return nil
}

// Serve starts the RPC server
// This function will also initialize the server plus the shards and start the transport layer
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		s.Close()
		return err
	}
	defer s.Close()
	return s.transport.Listen(s.config)
}

// Close stops the raft node host and closes all engines opened by the server
func (s *RPCServer) Close() {
	if s.nodeHost != nil {
		s.nodeHost.Close()
		s.nodeHost = nil
	}
	for _, engine := range s.engines {
		if err := engine.Close(); err != nil {
			Logger.Warningf("failed to close engine: %v", err)
		}
	}
	s.engines = nil
}
