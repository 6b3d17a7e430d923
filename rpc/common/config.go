package common

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/lni/dragonboat/v4/config"
)

// --------------------------------------------------------------------------
// helper functions for to interface with Dragonboat (for the server util)
// --------------------------------------------------------------------------

// Dragonboat uses RTT (Round Trip Time) to determine the timing of elections and heartbeats.
// These default values are selected according to the RAFT Paper
const (
	electionRTTFactor  = 10
	heartbeatRTTFactor = 1
)

// ToDragonboatConfig converts the ServerConfig to Dragonboat Config
func (c *ServerConfig) ToDragonboatConfig(shardId uint64) config.Config {
	return config.Config{
		ReplicaID:          c.ReplicaID,
		ShardID:            shardId,
		ElectionRTT:        electionRTTFactor,
		HeartbeatRTT:       heartbeatRTTFactor,
		CheckQuorum:        true,
		SnapshotEntries:    c.SnapshotEntries,
		CompactionOverhead: c.CompactionOverhead,
	}
}

// ToNodeHostConfig creates a NodeHostConfig for Dragonboat
func (c *ServerConfig) ToNodeHostConfig() config.NodeHostConfig {
	return config.NodeHostConfig{
		WALDir:         filepath.Join(c.DataDir, "raft"),
		NodeHostDir:    filepath.Join(c.DataDir, "raft"),
		RTTMillisecond: c.RTTMillisecond,
		RaftAddress:    c.ClusterMembers[c.ReplicaID],
	}
}

// --------------------------------------------------------------------------
// Shards
// --------------------------------------------------------------------------

// ShardType selects the service a shard exposes
type ShardType string

const (
	ShardTypeKV      ShardType = "kv"
	ShardTypeLockMgr ShardType = "lockmgr"
	ShardTypeDocDB   ShardType = "docdb"
)

// Engine selects the storage behind a shard
type Engine string

const (
	EngineMemory Engine = "memory"
	EngineSQLite Engine = "sqlite"
	EngineFile   Engine = "file"
	EngineRaft   Engine = "raft"
)

type ServerShard struct {
	// ShardID is the ID of the shard
	ShardID uint64
	// Type is the service the shard exposes
	Type ShardType
	// Engine is the storage the service runs on
	Engine Engine
}

func (s ServerShard) String() string {
	return fmt.Sprintf("%s(%s)", s.Type, s.Engine)
}

// ParseShard parses a shard definition of the form ID=TYPE(ENGINE), e.g. 300=docdb(sqlite).
// A missing engine defaults to memory.
func ParseShard(def string) (ServerShard, error) {
	id, kind, found := strings.Cut(strings.TrimSpace(def), "=")
	if !found {
		return ServerShard{}, fmt.Errorf("invalid shard format: %s (expected ID=TYPE(ENGINE))", def)
	}

	shardID, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return ServerShard{}, fmt.Errorf("invalid shard ID %s: %v", id, err)
	}

	kind = strings.TrimSpace(kind)
	typ, engine := kind, string(EngineMemory)
	if open := strings.IndexByte(kind, '('); open >= 0 {
		if !strings.HasSuffix(kind, ")") {
			return ServerShard{}, fmt.Errorf("invalid shard type %s: missing closing parenthesis", kind)
		}
		typ, engine = kind[:open], kind[open+1:len(kind)-1]
	}

	shard := ServerShard{ShardID: shardID, Type: ShardType(typ), Engine: Engine(engine)}
	switch shard.Type {
	case ShardTypeKV, ShardTypeLockMgr, ShardTypeDocDB:
	default:
		return ServerShard{}, fmt.Errorf("invalid shard type: %s (expected one of: kv, lockmgr, docdb)", typ)
	}
	switch shard.Engine {
	case EngineMemory, EngineSQLite, EngineFile, EngineRaft:
	default:
		return ServerShard{}, fmt.Errorf("invalid engine: %s (expected one of: memory, sqlite, file, raft)", engine)
	}
	return shard, nil
}

// ParseShards parses a comma separated list of shard definitions, see ParseShard
func ParseShards(defs string) ([]ServerShard, error) {
	var shards []ServerShard
	seen := make(map[uint64]bool)
	for _, def := range strings.Split(defs, ",") {
		if strings.TrimSpace(def) == "" {
			continue
		}
		shard, err := ParseShard(def)
		if err != nil {
			return nil, err
		}
		if seen[shard.ShardID] {
			return nil, fmt.Errorf("duplicate shard ID %d", shard.ShardID)
		}
		seen[shard.ShardID] = true
		shards = append(shards, shard)
	}
	if len(shards) == 0 {
		return nil, fmt.Errorf("no shards configured")
	}
	return shards, nil
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// TCPConf holds options only applied to TCP connections
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// SocketConf holds socket buffer sizes in bytes, 0 keeps the OS default
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

type ServerTransportConfig struct {
	// Endpoint is the listen address (host:port, or a socket path for unix)
	Endpoint string
	// WorkersPerConn limits concurrent requests per connection (tcp, unix)
	WorkersPerConn int
	// BufferSize is the size of the pooled request buffers (tcp, unix)
	BufferSize int
	SocketConf
	TCPConf
}

// ServerConfig holds all configuration parameters of an lsdb server.
type ServerConfig struct {
	Shards []ServerShard

	// Dragonboat parameters, only used by raft shards
	RTTMillisecond     uint64
	SnapshotEntries    uint64
	CompactionOverhead uint64
	ReplicaID          uint64
	ClusterMembers     map[uint64]string

	// DataDir holds the files of sqlite, file and raft shards
	DataDir string

	// TimeoutSecond bounds raft proposals and transport reads
	TimeoutSecond int64

	Transport ServerTransportConfig

	// Logging configuration
	LogLevel string
}

// HasRaftShard checks if the configuration contains any raft replicated shards
func (c *ServerConfig) HasRaftShard() bool {
	for _, shard := range c.Shards {
		if shard.Engine == EngineRaft {
			return true
		}
	}
	return false
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Data Directory", c.DataDir)

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Shards")
	for _, shard := range c.Shards {
		addField(strconv.FormatUint(shard.ShardID, 10), shard.String())
	}

	if c.HasRaftShard() {
		addSection("Node Identity")
		addField("RAFT Address", c.ClusterMembers[c.ReplicaID])
		addField("Node ID", strconv.FormatUint(c.ReplicaID, 10))

		addSection("RAFT Parameters")
		addField("Round Trip Time (ms)", fmt.Sprintf("%d ms", c.RTTMillisecond))
		addField("Election RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*electionRTTFactor))
		addField("Heartbeat RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*heartbeatRTTFactor))
		addField("Snapshot Entries", fmt.Sprintf("%d", c.SnapshotEntries))
		addField("Compaction Overhead", fmt.Sprintf("%d", c.CompactionOverhead))

		addSection("Cluster")
		// Sort keys for consistent output
		var keys []uint64
		for k := range c.ClusterMembers {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("    Node %d: %s\n", k, c.ClusterMembers[k]))
		}
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int
	SocketConf
	TCPConf
}

type ClientConfig struct {
	TimeoutSecond int
	Transport     ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.Transport.ConnectionsPerEndpoint)))))

	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}
	return sb.String()
}
