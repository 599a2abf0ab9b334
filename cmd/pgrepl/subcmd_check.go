package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/pgrepl/pgrepl/internal/helper/env"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/config"
)

const (
	skipChecksVar     = "PGREPL_SKIP_CHECKS"
	checkTimeoutVar   = "PGREPL_CHECK_TIMEOUT_SECONDS"
	checkCmdName      = "check"
	defaultCheckLimit = 30
)

var errFatalChecksFailed = errors.New("checks failed")

type checkSubcommand struct {
	w          io.Writer
	quiet      bool
	checkFuncs []pgrepl.CheckFunc
}

func newCheckSubcommand(writer io.Writer, checkFuncs ...pgrepl.CheckFunc) *checkSubcommand {
	return &checkSubcommand{
		w:          writer,
		checkFuncs: checkFuncs,
	}
}

func (cmd *checkSubcommand) FlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(checkCmdName, flag.ExitOnError)
	fs.BoolVar(&cmd.quiet, "q", false, "do not print the details of passing checks")
	fs.Usage = func() {
		_, _ = printfErr("Description:\n" +
			"	This command checks the primary, the replica and the replication channel between them.\n")
		fs.PrintDefaults()
	}

	return fs
}

func checkTimeout() time.Duration {
	seconds, err := env.GetInt(checkTimeoutVar, defaultCheckLimit)
	if err != nil || seconds <= 0 {
		seconds = defaultCheckLimit
	}
	return time.Duration(seconds) * time.Second
}

func (cmd *checkSubcommand) Exec(flags *flag.FlagSet, cfg config.Config) error {
	if skipChecks, _ := env.GetBool(skipChecksVar, false); skipChecks {
		fmt.Fprintf(cmd.w, "Skipping checks.\n")
		return nil
	}

	var allChecks []*pgrepl.Check
	for _, checkFunc := range cmd.checkFuncs {
		allChecks = append(allChecks, checkFunc(cfg, cmd.w, cmd.quiet))
	}

	timeout := checkTimeout()
	passed := true
	var failedChecks int
	for _, check := range allChecks {
		if cmd.quiet {
			fmt.Fprintf(cmd.w, "Checking %s...", check.Name)
		} else {
			fmt.Fprintf(cmd.w, "Checking %s - %s [%s]\n", check.Name, check.Description, check.Severity)
		}
		if err := runCheck(check, timeout); err != nil {
			failedChecks++
			if check.Severity == pgrepl.Fatal {
				passed = false
			}
			fmt.Fprintf(cmd.w, "Failed (%s) error: %s\n", check.Severity, err.Error())
			continue
		}
		fmt.Fprintf(cmd.w, "Passed\n")
	}

	fmt.Fprintf(cmd.w, "\n")

	if !passed {
		fmt.Fprintf(cmd.w, "%d check(s) failed, at least one was fatal.\n", failedChecks)
		return errFatalChecksFailed
	}

	if failedChecks > 0 {
		fmt.Fprintf(cmd.w, "%d check(s) failed, but none are fatal.\n", failedChecks)
	} else {
		fmt.Fprintf(cmd.w, "All checks passed.\n")
	}

	return nil
}

func runCheck(check *pgrepl.Check, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return check.Run(ctx)
}

// runStartupChecks runs the fatal checks before an interactive session starts.
// Failures are logged only: the session stays usable to repair the setup.
func runStartupChecks(cfg config.Config, logger logrus.FieldLogger) {
	if skipChecks, _ := env.GetBool(skipChecksVar, false); skipChecks {
		return
	}

	timeout := checkTimeout()
	for _, checkFunc := range pgrepl.AllChecks() {
		check := checkFunc(cfg, io.Discard, true)
		if check.Severity != pgrepl.Fatal {
			continue
		}

		if err := runCheck(check, timeout); err != nil {
			logger.WithError(err).WithField("check", check.Name).Warn("startup check failed")
		}
	}
}
