package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"gitlab.com/pgrepl/pgrepl/internal/pgrepl"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/config"
)

const setupReplicationCmdName = "setup-replication"

type setupReplicationSubcommand struct {
	w io.Writer
}

func newSetupReplicationSubcommand(w io.Writer) *setupReplicationSubcommand {
	return &setupReplicationSubcommand{w: w}
}

func (cmd *setupReplicationSubcommand) FlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(setupReplicationCmdName, flag.ExitOnError)
	fs.Usage = func() {
		printfErr("Description:\n" +
			"	Drops and recreates the publication on the primary and the subscription on the replica.\n")
		fs.PrintDefaults()
	}
	return fs
}

func (cmd *setupReplicationSubcommand) Exec(flags *flag.FlagSet, conf config.Config) error {
	return printReport(cmd.w, setupReplicationCmdName, newManager(conf).SetupReplication(context.Background()))
}

// printReport prints the message of report and turns its error into the error of
// the subcommand.
func printReport(w io.Writer, cmdName string, report pgrepl.Report) error {
	fmt.Fprintln(w, report.Message)
	if report.Err != nil {
		return fmt.Errorf("%s %s: %w", progname, cmdName, report.Err)
	}
	return nil
}
