package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/config"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/datastore"
)

const (
	sqlPingCmdName = "sql-ping"
)

type sqlPingSubcommand struct {
	w io.Writer
}

func newSQLPingSubcommand(w io.Writer) *sqlPingSubcommand {
	return &sqlPingSubcommand{w: w}
}

func (s *sqlPingSubcommand) FlagSet() *flag.FlagSet {
	return flag.NewFlagSet(sqlPingCmdName, flag.ExitOnError)
}

func (s *sqlPingSubcommand) Exec(flags *flag.FlagSet, conf config.Config) error {
	const subCmd = progname + " " + sqlPingCmdName

	for _, endpoint := range []*datastore.Endpoint{
		datastore.NewEndpoint("primary", conf.Primary, conf.ConnectTimeout.Duration(), logger),
		datastore.NewEndpoint("replica", conf.Replica, conf.ConnectTimeout.Duration(), logger),
	} {
		if _, err := endpoint.CheckPostgresVersion(context.Background()); err != nil {
			return fmt.Errorf("%s: %s: fail: %v", subCmd, endpoint.Name(), err)
		}

		fmt.Fprintf(s.w, "%s: %s: OK\n", subCmd, endpoint.Name())
	}

	return nil
}
