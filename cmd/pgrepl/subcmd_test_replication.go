package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/config"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/console"
)

const testReplicationCmdName = "test-replication"

type testReplicationSubcommand struct {
	w     io.Writer
	table string
}

func newTestReplicationSubcommand(w io.Writer) *testReplicationSubcommand {
	return &testReplicationSubcommand{w: w}
}

func (cmd *testReplicationSubcommand) FlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(testReplicationCmdName, flag.ExitOnError)
	fs.StringVar(&cmd.table, paramTable, "", "name of the table to write the test row to")
	fs.Usage = func() {
		printfErr("Description:\n" +
			"	Creates the table on the primary if needed, inserts a test row on the primary\n" +
			"	only and waits for replication to deliver it to the replica. The table must\n" +
			"	exist on the replica.\n")
		fs.PrintDefaults()
	}
	return fs
}

func (cmd *testReplicationSubcommand) Exec(flags *flag.FlagSet, conf config.Config) error {
	if err := requiredFlag(flags, paramTable, cmd.table); err != nil {
		return err
	}

	result, err := newManager(conf).TestReplication(context.Background(), cmd.table)
	if err != nil {
		return fmt.Errorf("%s %s: fail: %w", progname, testReplicationCmdName, err)
	}

	fmt.Fprintf(cmd.w, "Data in %s on replica:\n", result.Table)
	console.RowTable(cmd.w, result.Replica).Render()
	console.RenderTables(cmd.w, result.Tables)
	return nil
}
