// Command litescan is the CLI front end for the litescan read-only query
// engine: `litescan <db_path> .dbinfo`, `.tables`, or a free-form SQL query.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hgye/litescan"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.WithError(err).Error("litescan failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "litescan <database> <command>",
		Short: "Read-only query engine for SQLite-format database files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], args[1])
		},
		SilenceUsage: true,
	}
}

func run(dbPath, command string) error {
	db, err := litescan.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	switch command {
	case ".dbinfo":
		fmt.Printf("database page size: %d\n", db.PageSize())
		fmt.Printf("number of tables: %d\n", db.TableCount())
		return nil
	case ".tables":
		for _, name := range db.Tables() {
			fmt.Printf("%s ", name)
		}
		fmt.Println()
		return nil
	default:
		return runSQL(db, command)
	}
}

func runSQL(db *litescan.Database, sql string) error {
	res, err := db.ExecuteSQL(sql)
	if err != nil {
		return err
	}
	if res.Count != nil {
		fmt.Println(*res.Count)
		return nil
	}
	fmt.Print(litescan.FormatRows(res.Rows))
	return nil
}
