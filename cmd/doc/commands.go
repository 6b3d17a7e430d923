package doc

import (
	"fmt"

	"github.com/roberthgnz/lsdb/cmd/util"
	"github.com/roberthgnz/lsdb/lib/docdb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	declareCmd = &cobra.Command{
		Use:   "declare [name...]",
		Short: "Declares collections",
		Long:  `Declares collections. Names are given as arguments or as one JSON list. With --replace existing collections are emptied.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := util.ParseNamesArg(args)
			if err != nil {
				return err
			}
			replace, _ := cmd.Flags().GetBool("replace")
			if err := database.DeclareCollections(names, replace); err != nil {
				return err
			}
			fmt.Println("declared successfully")
			return nil
		},
	}
	countCmd = &cobra.Command{
		Use:   "count [collection]",
		Short: "Counts the documents of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := database.Count(args[0])
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		},
	}
	findCmd = &cobra.Command{
		Use:   "find [collection]",
		Short: "Finds documents matching a filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := findOptions(cmd)
			if err != nil {
				return err
			}
			docs, err := database.Find(args[0], opts)
			if err != nil {
				return err
			}
			return util.PrintJSON(docs)
		},
	}
	findOneCmd = &cobra.Command{
		Use:   "find-one [collection]",
		Short: "Finds the first document matching a filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			where, err := whereFlag(cmd)
			if err != nil {
				return err
			}
			doc, found, err := database.FindOne(args[0], where)
			if err != nil {
				return err
			}
			if !found {
				fmt.Println("null")
				return nil
			}
			return util.PrintJSON(doc)
		},
	}
	insertCmd = &cobra.Command{
		Use:   "insert [collection] [document]",
		Short: "Inserts a document and prints it with its _id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := util.ParseDocumentArg(args[1])
			if err != nil {
				return err
			}
			stored, err := database.Insert(args[0], doc)
			if err != nil {
				return err
			}
			return util.PrintJSON(stored)
		},
	}
	insertManyCmd = &cobra.Command{
		Use:   "insert-many [collection] [documents]",
		Short: "Inserts a JSON list of documents",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := util.ParseDocumentsArg(args[1])
			if err != nil {
				return err
			}
			stored, err := database.InsertMany(args[0], docs)
			if err != nil {
				return err
			}
			return util.PrintJSON(stored)
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [collection] [match] [patch]",
		Short: "Merges patch into the first document matching a single field match",
		Long:  `Merges patch into the first document matching a single field match like {"name": "Ann"} and prints the document as it was before.`,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := util.ParseMatchArg(args[1])
			if err != nil {
				return err
			}
			patch, err := util.ParseDocumentArg(args[2])
			if err != nil {
				return err
			}
			before, found, err := database.Update(args[0], m, patch)
			if err != nil {
				return err
			}
			if !found {
				fmt.Println("null")
				return nil
			}
			return util.PrintJSON(before)
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [collection]",
		Short: "Removes all documents matching a filter and prints them",
		Long:  `Removes all documents matching --where and prints them. Without --where nothing is removed.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			where, err := whereFlag(cmd)
			if err != nil {
				return err
			}
			removed, err := database.Remove(args[0], where)
			if err != nil {
				return err
			}
			return util.PrintJSON(removed)
		},
	}
	allCmd = &cobra.Command{
		Use:   "all [collection]",
		Short: "Prints all documents of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := database.All(args[0])
			if err != nil {
				return err
			}
			return util.PrintJSON(docs)
		},
	}
	dumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Prints the whole database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := database.Snapshot()
			if err != nil {
				return err
			}
			return util.PrintJSON(snapshot)
		},
	}
)

func init() {
	declareCmd.Flags().Bool("replace", false, util.WrapString("Empty collections that already exist"))

	for _, cmd := range []*cobra.Command{findCmd, findOneCmd, removeCmd} {
		cmd.Flags().String("where", "", util.WrapString("Filter as JSON object"))
	}
	findCmd.Flags().String("sort", "", util.WrapString("Field to sort by"))
	findCmd.Flags().String("order", "asc", util.WrapString("Sort order (asc, desc)"))
	findCmd.Flags().Int("skip", 0, util.WrapString("Number of documents to skip"))
	findCmd.Flags().Int("limit", 0, util.WrapString("Maximum number of documents to return (0 for all)"))
}

// whereFlag parses --where, honoring --strict
func whereFlag(cmd *cobra.Command) (docdb.Where, error) {
	arg, _ := cmd.Flags().GetString("where")
	return util.ParseWhereArg(arg, viper.GetBool("strict"))
}

// findOptions builds the options of find from its flags
func findOptions(cmd *cobra.Command) (docdb.FindOptions, error) {
	where, err := whereFlag(cmd)
	if err != nil {
		return docdb.FindOptions{}, err
	}
	opts := docdb.FindOptions{Where: where}
	opts.Skip, _ = cmd.Flags().GetInt("skip")
	opts.Limit, _ = cmd.Flags().GetInt("limit")
	if field, _ := cmd.Flags().GetString("sort"); field != "" {
		order, _ := cmd.Flags().GetString("order")
		opts.Sort = &docdb.Sort{Field: field, Order: docdb.Order(order)}
	}
	return opts, nil
}
