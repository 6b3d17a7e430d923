package doc

import (
	"fmt"

	"github.com/roberthgnz/lsdb/cmd/util"
	"github.com/roberthgnz/lsdb/lib/docdb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var perfTestCmd = &cobra.Command{
	Use:   "perf",
	Short: "Performance testing tool for docdb shards",
	Long:  "Performance testing tool for docdb shards. The benchmarks work on a scratch collection that is emptied afterwards.",
	RunE:  runPerf,
}

func init() {
	util.SetupPerfFlags(perfTestCmd)

	key := "collection"
	perfTestCmd.Flags().String(key, "__perf", util.WrapString("Scratch collection used by the benchmarks"))
	key = "docs"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("Number of documents in the collection for the read benchmarks"))
}

// perfDocument is the i-th document of the read benchmarks
func perfDocument(i int) docdb.Document {
	return docdb.Document{
		"n":     i,
		"name":  fmt.Sprintf("doc-%d", i),
		"group": fmt.Sprintf("g%d", i%10),
		"tags":  []any{"perf", fmt.Sprintf("t%d", i%3)},
	}
}

// perfBenchmarks builds the benchmarks for db on the scratch collection coll holding docCount documents
func perfBenchmarks(db docdb.IDatabase, coll string, docCount int) []util.Benchmark {
	docCount = max(docCount, 1)
	reset := func() error {
		return db.DeclareCollections(coll, true)
	}
	fill := func() error {
		if err := reset(); err != nil {
			return err
		}
		docs := make([]docdb.Document, docCount)
		for i := range docs {
			docs[i] = perfDocument(i)
		}
		_, err := db.InsertMany(coll, docs)
		return err
	}

	return []util.Benchmark{
		{
			Name:  "insert",
			Setup: reset,
			Op: func(i int) error {
				_, err := db.Insert(coll, perfDocument(i))
				return err
			},
			Cleanup: reset,
		},
		{
			Name:  "insert-many",
			Setup: reset,
			Op: func(i int) error {
				_, err := db.InsertMany(coll, []docdb.Document{perfDocument(i), perfDocument(i + 1)})
				return err
			},
			Cleanup: reset,
		},
		{
			Name:  "count",
			Setup: fill,
			Op: func(int) error {
				_, err := db.Count(coll)
				return err
			},
		},
		{
			Name:  "find",
			Setup: fill,
			Op: func(i int) error {
				_, err := db.Find(coll, docdb.FindOptions{
					Where: docdb.Where{docdb.Eq("group", fmt.Sprintf("g%d", i%10))},
					Sort:  &docdb.Sort{Field: "n", Order: docdb.Desc},
					Limit: 10,
				})
				return err
			},
		},
		{
			Name:  "find-in",
			Setup: fill,
			Op: func(i int) error {
				_, err := db.Find(coll, docdb.FindOptions{Where: docdb.Where{docdb.In("tags", fmt.Sprintf("t%d", i%3))}})
				return err
			},
		},
		{
			Name:  "find-one",
			Setup: fill,
			Op: func(i int) error {
				_, _, err := db.FindOne(coll, docdb.Where{docdb.Eq("n", i%docCount)})
				return err
			},
		},
		{
			Name:  "update",
			Setup: fill,
			Op: func(i int) error {
				_, _, err := db.Update(coll, docdb.Match{Field: "n", Value: i % docCount}, docdb.Document{"updated": i})
				return err
			},
			Cleanup: reset,
		},
	}
}

func runPerf(_ *cobra.Command, _ []string) error {
	opts := util.GetPerfOptions()
	coll := viper.GetString("collection")

	fmt.Println("Performance testing tool for docdb shards")
	fmt.Println()
	fmt.Printf("Configuration (%s):\n", connection)
	fmt.Println(connection.Config.String())
	fmt.Printf("Database: %s, Collection: %s, Threads: %d, Ops: %d\n", database.Name(), coll, opts.Threads, opts.Ops)
	fmt.Println()

	results, err := util.RunBenchmarks(perfBenchmarks(database, coll, viper.GetInt("docs")), opts)
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
