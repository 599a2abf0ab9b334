package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/config"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/console"
)

const replicationStatusCmdName = "replication-status"

type replicationStatusSubcommand struct {
	w io.Writer
}

func newReplicationStatusSubcommand(w io.Writer) *replicationStatusSubcommand {
	return &replicationStatusSubcommand{w: w}
}

func (cmd *replicationStatusSubcommand) FlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(replicationStatusCmdName, flag.ExitOnError)
	fs.Usage = func() {
		printfErr("Description:\n" +
			"	Shows the state of the publication and the subscription.\n")
		fs.PrintDefaults()
	}
	return fs
}

func (cmd *replicationStatusSubcommand) Exec(flags *flag.FlagSet, conf config.Config) error {
	status, err := newManager(conf).ReplicationStatus(context.Background())
	if err != nil {
		return fmt.Errorf("%s %s: %w", progname, replicationStatusCmdName, err)
	}

	console.StatusTable(cmd.w, status).Render()
	return nil
}
