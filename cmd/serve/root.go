package serve

import (
	"fmt"
	"strings"

	cmdUtil "github.com/roberthgnz/lsdb/cmd/util"
	"github.com/roberthgnz/lsdb/lib/db/util"
	"github.com/roberthgnz/lsdb/rpc/common"
	"github.com/roberthgnz/lsdb/rpc/server"
	"github.com/roberthgnz/lsdb/rpc/transport"
	"github.com/roberthgnz/lsdb/rpc/transport/http"
	"github.com/roberthgnz/lsdb/rpc/transport/tcp"
	"github.com/roberthgnz/lsdb/rpc/transport/unix"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start the lsdb server",
		Long: `Start the lsdb server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is LSDB_<flag> (e.g. LSDB_TIMEOUT=15)

Shards are given as ID=TYPE(ENGINE):
  TYPE    kv, lockmgr or docdb
  ENGINE  memory (default), sqlite, file or raft

Example: lsdb serve --shards "100=kv,200=lockmgr,300=docdb(sqlite)"`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "shards"
	ServeCmd.PersistentFlags().String(key, "100=kv,200=lockmgr,300=docdb", cmdUtil.WrapString("Comma-separated list of shards to serve. Format: ID=TYPE(ENGINE) where TYPE is one of kv, lockmgr, docdb and ENGINE one of memory, sqlite, file, raft (default memory)"))

	key = "rtt-millisecond"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("(raft) RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances. \nOther raft configuration parameters (ElectionRTT=value*10, HeartbeatRTT=value*1) are derived from this value"))

	key = "snapshot-entries"
	ServeCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("(raft) SnapshotEntries defines how often the state machine should be snapshotted automatically. It is defined in terms of the number of applied Raft log entries. SnapshotEntries can be set to 0 to disable such automatic snapshotting (not recommended)"))

	key = "compaction-overhead"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("(raft) CompactionOverhead defines the number of snapshots that should be retained in the system. Recommended value is about 1/2 of SnapshotEntries"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("DataDir holds the files of sqlite, file and raft shards"))

	key = "replica-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(raft) ReplicaID is the unique identifier for this NodeHost instance (e.g. 'node-1')"))

	key = "cluster-members"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(raft) ClusterMembers is a comma-separated list of NodeHost addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for raft proposals, lock waits and transport writes"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/lsdb.sock, ...)"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("Concurrent requests per connection (tcp and unix only)"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, 64, cmdUtil.WrapString("Read buffer size per request in KB (tcp and unix only)"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY (tcp only)"))

	key = "tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval in seconds (tcp only)"))

	key = "tcp-linger"
	ServeCmd.PersistentFlags().Int(key, -1, cmdUtil.WrapString("The linger time in seconds (tcp only, negative keeps the OS default)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	shards, err := common.ParseShards(viper.GetString("shards"))
	if err != nil {
		return err
	}
	serveCmdConfig.Shards = shards

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	serveCmdConfig.SnapshotEntries = viper.GetUint64("snapshot-entries")
	serveCmdConfig.CompactionOverhead = viper.GetUint64("compaction-overhead")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:       viper.GetString("endpoint"),
		WorkersPerConn: viper.GetInt("workers-per-conn"),
		BufferSize:     viper.GetInt("buffer-size") * 1024,
		TCPConf: common.TCPConf{
			TCPNoDelay:      viper.GetBool("tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("tcp-linger"),
		},
	}

	if _, err := common.ParseLogLevel(serveCmdConfig.LogLevel); err != nil {
		return err
	}

	return parseCluster(serveCmdConfig, viper.GetString("replica-id"), viper.GetString("cluster-members"))
}

// parseCluster fills replica id and cluster members. Both are required if a shard runs on raft.
func parseCluster(config *common.ServerConfig, replicaID, clusterMembers string) error {
	if replicaID != "" {
		config.ReplicaID = util.HashString(replicaID, 0)
	} else if config.HasRaftShard() {
		return fmt.Errorf("replica-id is required for raft shards")
	}

	if clusterMembers != "" {
		config.ClusterMembers = make(map[uint64]string)
		for _, member := range strings.Split(clusterMembers, ",") {
			parts := strings.Split(member, "=")
			if len(parts) != 2 {
				return fmt.Errorf("invalid cluster member format: %s (expected ID=address)", member)
			}
			config.ClusterMembers[util.HashString(strings.TrimSpace(parts[0]), 0)] = strings.TrimSpace(parts[1])
		}
	} else if config.HasRaftShard() {
		return fmt.Errorf("cluster-members is required for raft shards")
	}

	// the replica has to be one of the cluster members
	if _, ok := config.ClusterMembers[config.ReplicaID]; !ok && config.HasRaftShard() {
		return fmt.Errorf("no address found for replica %q in cluster members", replicaID)
	}
	return nil
}

// newServerTransport creates the server side of the transport called name
func newServerTransport(name string) (transport.IRPCServerTransport, error) {
	switch name {
	case "http":
		return http.NewHttpServerTransport(), nil
	case "tcp":
		return tcp.NewTCPServerTransport(), nil
	case "unix":
		return unix.NewUnixServerTransport(), nil
	}
	return nil, fmt.Errorf("invalid transport %s", name)
}

// run starts the lsdb server
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := newServerTransport(viper.GetString("transport"))
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	return serv.Serve()
}
