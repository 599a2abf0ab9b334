package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/config"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/console"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/datastore"
)

const (
	createTableCmdName = "create-table"
	dropTableCmdName   = "drop-table"
	listTablesCmdName  = "list-tables"
	showRowsCmdName    = "show-rows"

	paramTable = "table"
)

type createTableSubcommand struct {
	w     io.Writer
	table string
}

func newCreateTableSubcommand(w io.Writer) *createTableSubcommand {
	return &createTableSubcommand{w: w}
}

func (cmd *createTableSubcommand) FlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(createTableCmdName, flag.ExitOnError)
	fs.StringVar(&cmd.table, paramTable, "", "name of the table to create")
	fs.Usage = func() {
		printfErr("Description:\n" +
			"	Creates a table with an id and a data column on the primary and on the replica\n" +
			"	and sets replication up again.\n")
		fs.PrintDefaults()
	}
	return fs
}

func (cmd *createTableSubcommand) Exec(flags *flag.FlagSet, conf config.Config) error {
	if err := requiredFlag(flags, paramTable, cmd.table); err != nil {
		return err
	}
	return printReport(cmd.w, createTableCmdName, newManager(conf).CreateTable(context.Background(), cmd.table))
}

type dropTableSubcommand struct {
	w     io.Writer
	table string
}

func newDropTableSubcommand(w io.Writer) *dropTableSubcommand {
	return &dropTableSubcommand{w: w}
}

func (cmd *dropTableSubcommand) FlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(dropTableCmdName, flag.ExitOnError)
	fs.StringVar(&cmd.table, paramTable, "", "name of the table to drop")
	return fs
}

func (cmd *dropTableSubcommand) Exec(flags *flag.FlagSet, conf config.Config) error {
	if err := requiredFlag(flags, paramTable, cmd.table); err != nil {
		return err
	}
	return printReport(cmd.w, dropTableCmdName, newManager(conf).DropTable(context.Background(), cmd.table))
}

type listTablesSubcommand struct {
	w io.Writer
}

func newListTablesSubcommand(w io.Writer) *listTablesSubcommand {
	return &listTablesSubcommand{w: w}
}

func (cmd *listTablesSubcommand) FlagSet() *flag.FlagSet {
	return flag.NewFlagSet(listTablesCmdName, flag.ExitOnError)
}

func (cmd *listTablesSubcommand) Exec(flags *flag.FlagSet, conf config.Config) error {
	tables, err := newManager(conf).ListTables(context.Background())
	if err != nil {
		return fmt.Errorf("%s %s: %w", progname, listTablesCmdName, err)
	}

	fmt.Fprintf(cmd.w, "primary: %s\n", strings.Join(tables.Primary, " "))
	fmt.Fprintf(cmd.w, "replica: %s\n", strings.Join(tables.Replica, " "))
	return nil
}

type showRowsSubcommand struct {
	w     io.Writer
	table string
}

func newShowRowsSubcommand(w io.Writer) *showRowsSubcommand {
	return &showRowsSubcommand{w: w}
}

func (cmd *showRowsSubcommand) FlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(showRowsCmdName, flag.ExitOnError)
	fs.StringVar(&cmd.table, paramTable, "", "name of the table to show")
	return fs
}

func (cmd *showRowsSubcommand) Exec(flags *flag.FlagSet, conf config.Config) error {
	if err := requiredFlag(flags, paramTable, cmd.table); err != nil {
		return err
	}

	rows, err := newManager(conf).ShowRows(context.Background(), cmd.table)
	if err != nil {
		return fmt.Errorf("%s %s: %w", progname, showRowsCmdName, err)
	}

	for _, endpoint := range []struct {
		name string
		rows []datastore.Row
		err  error
	}{
		{name: "primary", rows: rows.Primary, err: rows.PrimaryErr},
		{name: "replica", rows: rows.Replica, err: rows.ReplicaErr},
	} {
		if endpoint.err != nil {
			fmt.Fprintf(cmd.w, "%s: error: %v\n", endpoint.name, endpoint.err)
			continue
		}
		fmt.Fprintf(cmd.w, "%s:\n", endpoint.name)
		console.RowTable(cmd.w, endpoint.rows).Render()
	}

	if rows.PrimaryErr != nil {
		return fmt.Errorf("%s %s: %w", progname, showRowsCmdName, rows.PrimaryErr)
	}
	return nil
}
