// Command pgrepl manages a pair of PostgreSQL databases connected through native
// logical replication.
//
// Usage:
//
//	pgrepl [-config path/to/config.toml] [subcommand] [flags]
//
// Without a subcommand the interactive menu is started. Settings not given in the
// config file are taken from PGREPL_* environment variables or fall back to the
// defaults of a local primary on port 5432 and replica on port 5433.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"gitlab.com/pgrepl/pgrepl/internal/log"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/config"
	"gitlab.com/pgrepl/pgrepl/internal/version"
)

var (
	flagConfig  = flag.String("config", "", "Location for the config.toml, optional")
	flagVersion = flag.Bool("version", false, "Print version and exit")
	logger      = log.Default()
)

const progname = "pgrepl"

func main() {
	flag.Usage = func() {
		cmds := []string{}
		for k := range subcommands {
			cmds = append(cmds, k)
		}
		sort.Strings(cmds)

		printfErr("Usage of %s:\n", progname)
		flag.PrintDefaults()
		printfErr("  subcommand (optional, defaults to %s)\n", menuCmdName)
		printfErr("\tOne of %s\n", strings.Join(cmds, ", "))
	}
	flag.Parse()

	if *flagVersion {
		fmt.Println(version.GetVersionString())
		if buildTime := version.GetBuildTime(); buildTime != "" {
			fmt.Printf("built at %s\n", buildTime)
		}
		os.Exit(0)
	}

	conf, err := initConfig(*flagConfig)
	if err != nil {
		printfErr("%s: configuration error: %v\n", progname, err)
		os.Exit(1)
	}

	logger = conf.ConfigureLogger()

	args := flag.Args()
	if len(args) == 0 {
		args = []string{menuCmdName}
	}

	os.Exit(subCommand(conf, args[0], args[1:]))
}

func initConfig(path string) (config.Config, error) {
	var conf config.Config
	var err error

	if path == "" {
		conf, err = config.Load(strings.NewReader(""))
	} else {
		conf, err = config.FromFile(path)
	}
	if err != nil {
		return config.Config{}, fmt.Errorf("error reading config: %w", err)
	}

	if err := conf.Validate(); err != nil {
		return config.Config{}, err
	}

	return conf, nil
}
