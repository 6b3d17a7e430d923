package kv

import (
	"github.com/roberthgnz/lsdb/cmd/util"
	"github.com/roberthgnz/lsdb/lib/store"
	"github.com/roberthgnz/lsdb/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcStore   store.IStore
	connection *util.Connection

	// KeyValueCommands groups the commands working on a kv shard
	KeyValueCommands = &cobra.Command{
		Use:   "kv",
		Short: "Read and write raw keys on a kv shard",
		Long: `Read and write raw keys on a kv shard.

Values are stored as given, the document database shards keep their
documents in their own stores and are not reachable from here.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if connection, err = util.Connect(cmd); err != nil {
				return err
			}
			rpcStore, err = client.NewRPCStore(connection.ShardId, connection.Config, connection.Transport, connection.Serializer)
			return err
		},
	}
)

func init() {
	util.SetupRPCClientFlags(KeyValueCommands)
	KeyValueCommands.PersistentFlags().Int("shard", 100, util.WrapString("ID of the kv shard"))

	KeyValueCommands.AddCommand(setCmd, setIfUnsetCmd, setLeaseCmd, getCmd, delCmd, hasCmd, keysCmd, perfTestCmd)
}
