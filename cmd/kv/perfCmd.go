package kv

import (
	"fmt"

	"github.com/roberthgnz/lsdb/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance testing tool for kv shards",
		RunE:  runPerf,
	}
	perfKeyPrefix = "__test"
)

func init() {
	util.SetupPerfFlags(perfTestCmd)

	key := "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
}

func runPerf(_ *cobra.Command, _ []string) error {
	opts := util.GetPerfOptions()
	keySpread := max(viper.GetInt("keys"), 1)
	largeValue := make([]byte, viper.GetInt("large-value-size")*1024)

	fmt.Println("Performance testing tool for kv shards")
	fmt.Println()
	fmt.Printf("Configuration (%s):\n", connection)
	fmt.Println(connection.Config.String())
	fmt.Printf("Threads: %d, Ops: %d, Keys: %d\n", opts.Threads, opts.Ops, keySpread)
	fmt.Println()

	keys := make([]string, keySpread)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s-%d", perfKeyPrefix, i)
	}
	key := func(i int) string { return keys[i%keySpread] }
	fill := func(value []byte) func() error {
		return func() error {
			for _, k := range keys {
				if err := rpcStore.Set(k, value); err != nil {
					return err
				}
			}
			return nil
		}
	}
	cleanup := func() error {
		for _, k := range keys {
			if err := rpcStore.Delete(k); err != nil {
				return err
			}
		}
		return nil
	}

	results, err := util.RunBenchmarks([]util.Benchmark{
		{
			Name:    "set",
			Op:      func(i int) error { return rpcStore.Set(key(i), []byte("test")) },
			Cleanup: cleanup,
		},
		{
			Name:    "set-large",
			Op:      func(i int) error { return rpcStore.Set(key(i), largeValue) },
			Cleanup: cleanup,
		},
		{
			Name:    "set-if-unset",
			Op:      func(i int) error { return rpcStore.SetIfUnset(key(i), []byte("test")) },
			Cleanup: cleanup,
		},
		{
			Name:  "get",
			Setup: fill([]byte("test")),
			Op: func(i int) error {
				_, _, err := rpcStore.Get(key(i))
				return err
			},
			Cleanup: cleanup,
		},
		{
			Name:  "get-large",
			Setup: fill(largeValue),
			Op: func(i int) error {
				_, _, err := rpcStore.Get(key(i))
				return err
			},
			Cleanup: cleanup,
		},
		{
			Name:  "has",
			Setup: fill([]byte("test")),
			Op: func(i int) error {
				_, err := rpcStore.Has(key(i))
				return err
			},
			Cleanup: cleanup,
		},
		{
			Name: "delete",
			Op:   func(i int) error { return rpcStore.Delete(key(i)) },
		},
	}, opts)
	if err != nil {
		return err
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := util.WriteResultsToCSV(csvPath, results, connection, opts); err != nil {
			return err
		}
		fmt.Printf("results written to %s\n", csvPath)
	}
	return nil
}
