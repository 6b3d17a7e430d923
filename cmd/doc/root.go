package doc

import (
	"github.com/roberthgnz/lsdb/cmd/util"
	"github.com/roberthgnz/lsdb/lib/docdb"
	"github.com/roberthgnz/lsdb/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	database   docdb.IDatabase
	connection *util.Connection

	// DocCommands represents the document database command group
	DocCommands = &cobra.Command{
		Use:   "doc",
		Short: "Work with a document database on a docdb shard",
		Long: `Work with a document database on a docdb shard.

Documents, filters and matches are JSON objects, comments and trailing commas are allowed.
Filters use MongoDB style operators: $eq $ne $gt $gte $lt $lte $in $nin, e.g.

  lsdb doc --db shop find articles --where '{"price": {"$lt": 5}, "category": "Drinks"}'`,
		PersistentPreRunE: setupDocClient,
	}
)

func init() {
	// Add common RPC flags to the doc command
	util.SetupRPCClientFlags(DocCommands)

	DocCommands.PersistentFlags().Int("shard", 300, util.WrapString("ID of the shard to connect to"))
	DocCommands.PersistentFlags().String("db", "default", util.WrapString("Name of the database"))
	DocCommands.PersistentFlags().Bool("strict", false, util.WrapString("Compare $in and $nin values by equality instead of substring matching"))

	DocCommands.AddCommand(declareCmd)
	DocCommands.AddCommand(countCmd)
	DocCommands.AddCommand(findCmd)
	DocCommands.AddCommand(findOneCmd)
	DocCommands.AddCommand(insertCmd)
	DocCommands.AddCommand(insertManyCmd)
	DocCommands.AddCommand(updateCmd)
	DocCommands.AddCommand(removeCmd)
	DocCommands.AddCommand(allCmd)
	DocCommands.AddCommand(dumpCmd)
	DocCommands.AddCommand(shellCmd)
	DocCommands.AddCommand(perfTestCmd)
}

// setupDocClient initializes the RPC database client
func setupDocClient(cmd *cobra.Command, _ []string) error {
	var err error
	if connection, err = util.Connect(cmd); err != nil {
		return err
	}
	database, err = client.NewRPCDatabase(connection.ShardId, viper.GetString("db"), connection.Config, connection.Transport, connection.Serializer)
	return err
}
