package main

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/chzyer/readline"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/config"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/console"
)

const menuCmdName = "menu"

type menuSubcommand struct {
	in          io.Reader
	out         io.Writer
	historyFile string
}

func newMenuSubcommand(in io.Reader, out io.Writer) *menuSubcommand {
	return &menuSubcommand{in: in, out: out}
}

func (cmd *menuSubcommand) FlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(menuCmdName, flag.ExitOnError)
	fs.StringVar(&cmd.historyFile, "history", console.DefaultHistoryFile(), "file to keep the input history in, empty to disable")
	fs.Usage = func() {
		printfErr("Description:\n" +
			"	Starts the interactive menu. This is the default subcommand.\n")
		fs.PrintDefaults()
	}
	return fs
}

func (cmd *menuSubcommand) newReader() (console.LineReader, error) {
	if f, ok := cmd.in.(*os.File); ok && readline.IsTerminal(int(f.Fd())) {
		return console.NewReadlineReader(cmd.historyFile)
	}
	return console.NewPlainReader(cmd.in, cmd.out), nil
}

func (cmd *menuSubcommand) Exec(flags *flag.FlagSet, conf config.Config) error {
	runStartupChecks(conf, logger)

	reader, err := cmd.newReader()
	if err != nil {
		return err
	}
	defer reader.Close()

	return console.NewMenu(newManager(conf), reader, cmd.out, logger).Run(context.Background())
}
