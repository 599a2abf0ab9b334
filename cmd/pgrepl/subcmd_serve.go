package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/config"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/web"
)

const (
	serveCmdName = "serve"

	shutdownTimeout = 10 * time.Second
)

type serveSubcommand struct {
	listenAddr string
}

func (cmd *serveSubcommand) FlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(serveCmdName, flag.ExitOnError)
	fs.StringVar(&cmd.listenAddr, "listen-addr", "", "address to serve the web form on, overrides listen_addr of the config")
	fs.Usage = func() {
		printfErr("Description:\n" +
			"	Serves the web form.\n")
		fs.PrintDefaults()
	}
	return fs
}

func (cmd *serveSubcommand) Exec(flags *flag.FlagSet, conf config.Config) error {
	listenAddr := conf.ListenAddr
	if cmd.listenAddr != "" {
		listenAddr = cmd.listenAddr
	}

	runStartupChecks(conf, logger)

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           web.NewRouter(newManager(conf), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("address", listenAddr).Info("serving web form")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

