package cmd

import (
	"fmt"
	"os"

	"github.com/roberthgnz/lsdb/cmd/doc"
	"github.com/roberthgnz/lsdb/cmd/kv"
	"github.com/roberthgnz/lsdb/cmd/lock"
	"github.com/roberthgnz/lsdb/cmd/serve"
	"github.com/roberthgnz/lsdb/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.4.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "lsdb",
		Short: "JSON document store",
		Long: fmt.Sprintf(`lsdb (v%s)

A small JSON document store: named databases of collections,
queried with MongoDB style filters. Databases live in a key-value
store that can be kept in memory, in SQLite, in files or replicated
with RAFT.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of lsdb",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lsdb v%s\n", Version)
		},
	}
)

func init() {
	// Load .env files and LSDB_* variables once for every command
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(doc.DocCommands)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
