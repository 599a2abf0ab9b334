package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/config"
)

const (
	addRowCmdName    = "add-row"
	deleteRowCmdName = "delete-row"

	paramData = "data"
	paramID   = "id"
)

type addRowSubcommand struct {
	w     io.Writer
	table string
	data  string
}

func newAddRowSubcommand(w io.Writer) *addRowSubcommand {
	return &addRowSubcommand{w: w}
}

func (cmd *addRowSubcommand) FlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(addRowCmdName, flag.ExitOnError)
	fs.StringVar(&cmd.table, paramTable, "", "name of the table to add the row to")
	fs.StringVar(&cmd.data, paramData, "", "payload of the row")
	return fs
}

func (cmd *addRowSubcommand) Exec(flags *flag.FlagSet, conf config.Config) error {
	if err := requiredFlag(flags, paramTable, cmd.table); err != nil {
		return err
	}
	return printReport(cmd.w, addRowCmdName, newManager(conf).AddRow(context.Background(), cmd.table, cmd.data))
}

type deleteRowSubcommand struct {
	w     io.Writer
	table string
	id    int64
}

func newDeleteRowSubcommand(w io.Writer) *deleteRowSubcommand {
	return &deleteRowSubcommand{w: w}
}

func (cmd *deleteRowSubcommand) FlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(deleteRowCmdName, flag.ExitOnError)
	fs.StringVar(&cmd.table, paramTable, "", "name of the table to delete the row from")
	fs.Int64Var(&cmd.id, paramID, 0, "id of the row to delete")
	return fs
}

func (cmd *deleteRowSubcommand) Exec(flags *flag.FlagSet, conf config.Config) error {
	if err := requiredFlag(flags, paramTable, cmd.table); err != nil {
		return err
	}
	if cmd.id <= 0 {
		return fmt.Errorf("%s: the -%s flag must be a positive row id", flags.Name(), paramID)
	}
	return printReport(cmd.w, deleteRowCmdName, newManager(conf).DeleteRow(context.Background(), cmd.table, cmd.id))
}
