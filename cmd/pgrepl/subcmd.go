package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"

	"gitlab.com/pgrepl/pgrepl/internal/pgrepl"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/config"
)

type subcmd interface {
	FlagSet() *flag.FlagSet
	Exec(flags *flag.FlagSet, config config.Config) error
}

var subcommands = map[string]subcmd{
	menuCmdName:              newMenuSubcommand(os.Stdin, os.Stdout),
	serveCmdName:             &serveSubcommand{},
	sqlPingCmdName:           newSQLPingSubcommand(os.Stdout),
	setupReplicationCmdName:  newSetupReplicationSubcommand(os.Stdout),
	replicationStatusCmdName: newReplicationStatusSubcommand(os.Stdout),
	createTableCmdName:       newCreateTableSubcommand(os.Stdout),
	addRowCmdName:            newAddRowSubcommand(os.Stdout),
	deleteRowCmdName:         newDeleteRowSubcommand(os.Stdout),
	dropTableCmdName:         newDropTableSubcommand(os.Stdout),
	listTablesCmdName:        newListTablesSubcommand(os.Stdout),
	showRowsCmdName:          newShowRowsSubcommand(os.Stdout),
	testReplicationCmdName:   newTestReplicationSubcommand(os.Stdout),
	checkCmdName:             newCheckSubcommand(os.Stdout, pgrepl.AllChecks()...),
}

// subCommand returns an exit code, to be fed into os.Exit.
func subCommand(conf config.Config, arg0 string, argRest []string) int {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	go func() {
		<-interrupt
		os.Exit(130) // indicates program was interrupted
	}()

	subcmd, ok := subcommands[arg0]
	if !ok {
		printfErr("%s: unknown subcommand: %q\n", progname, arg0)
		return 1
	}

	flags := subcmd.FlagSet()

	if err := flags.Parse(argRest); err != nil {
		printfErr("%s\n", err)
		return 1
	}

	if err := subcmd.Exec(flags, conf); err != nil {
		printfErr("%s\n", err)
		return 1
	}

	return 0
}

func newManager(conf config.Config) *pgrepl.Manager {
	return pgrepl.NewManager(conf, logger)
}

func printfErr(format string, a ...interface{}) (int, error) {
	return fmt.Fprintf(os.Stderr, format, a...)
}

// requiredFlag returns an error naming the flag when value is empty.
func requiredFlag(flags *flag.FlagSet, name, value string) error {
	if value == "" {
		return fmt.Errorf("%s: the -%s flag is required", flags.Name(), name)
	}
	return nil
}
