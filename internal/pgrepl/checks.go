package pgrepl

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gitlab.com/pgrepl/pgrepl/internal/log"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/config"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/datastore"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/replication"
)

// Severity is a type that indicates the severity of a check
type Severity string

const (
	// Warning indicates a severity level of warning
	Warning Severity = "warning"
	// Fatal indicates a severity level of fatal. Nothing works while a fatal check fails.
	Fatal Severity = "fatal"
)

// Check is a diagnosis of the setup of the primary, the replica and the channel
// between them.
type Check struct {
	Run         func(ctx context.Context) error
	Name        string
	Description string
	Severity    Severity
}

// CheckFunc is a function type that takes a config and returns a Check
type CheckFunc func(conf config.Config, w io.Writer, quiet bool) *Check

// AllChecks returns all checks in the order they are run.
func AllChecks() []CheckFunc {
	return []CheckFunc{
		NewPrimaryConnectivityCheck,
		NewReplicaConnectivityCheck,
		NewWALLevelCheck,
		NewReplicationChannelCheck,
		NewHeartbeatCheck,
	}
}

func newEndpoint(name string, conf config.Config) *datastore.Endpoint {
	db := conf.Primary
	if name == "replica" {
		db = conf.Replica
	}
	return datastore.NewEndpoint(name, db, conf.ConnectTimeout.Duration(), log.Default())
}

func newConnectivityCheck(name string) CheckFunc {
	return func(conf config.Config, w io.Writer, quiet bool) *Check {
		return &Check{
			Name:        name + " connectivity",
			Description: fmt.Sprintf("confirms the %s database is reachable and runs PostgreSQL 10 or newer", name),
			Run: func(ctx context.Context) error {
				endpoint := newEndpoint(name, conf)
				version, err := endpoint.CheckPostgresVersion(ctx)
				if err != nil {
					return err
				}

				logMessage(quiet, w, "%s database %s is reachable, server version %d", name, endpoint.Config().Address(), version)
				return nil
			},
			Severity: Fatal,
		}
	}
}

// NewPrimaryConnectivityCheck returns a check that ensures the primary can be reached.
func NewPrimaryConnectivityCheck(conf config.Config, w io.Writer, quiet bool) *Check {
	return newConnectivityCheck("primary")(conf, w, quiet)
}

// NewReplicaConnectivityCheck returns a check that ensures the replica can be reached.
func NewReplicaConnectivityCheck(conf config.Config, w io.Writer, quiet bool) *Check {
	return newConnectivityCheck("replica")(conf, w, quiet)
}

// NewWALLevelCheck returns a check that ensures the primary can publish changes.
func NewWALLevelCheck(conf config.Config, w io.Writer, quiet bool) *Check {
	return &Check{
		Name:        "primary wal_level",
		Description: "confirms the primary runs with wal_level=logical, which publications require",
		Run: func(ctx context.Context) error {
			walLevel, err := newEndpoint("primary", conf).Setting(ctx, "wal_level")
			if err != nil {
				return err
			}

			if walLevel != "logical" {
				return fmt.Errorf("wal_level is %q, set it to \"logical\" and restart the primary", walLevel)
			}

			logMessage(quiet, w, "wal_level is logical")
			return nil
		},
		Severity: Fatal,
	}
}

func newChannel(conf config.Config) *replication.Channel {
	return replication.NewChannel(
		newEndpoint("primary", conf),
		newEndpoint("replica", conf),
		conf.Replication,
		log.Default(),
	)
}

// NewReplicationChannelCheck returns a check that inspects the publication and the subscription.
func NewReplicationChannelCheck(conf config.Config, w io.Writer, quiet bool) *Check {
	return &Check{
		Name:        "replication channel",
		Description: "confirms the publication and the subscription exist and the subscription is streaming",
		Run: func(ctx context.Context) error {
			status, err := newChannel(conf).Status(ctx)
			if err != nil {
				return err
			}

			logMessage(quiet, w, "publication %q exists: %t, subscription %q exists: %t, enabled: %t, worker running: %t, tables ready: %d/%d",
				status.Publication, status.PublicationExists,
				status.Subscription, status.SubscriptionExists, status.SubscriptionEnabled,
				status.WorkerRunning, status.TablesReady, status.TablesTotal,
			)

			if status.State != replication.StateActive {
				return fmt.Errorf("replication channel is %s", status.State)
			}
			return nil
		},
		Severity: Warning,
	}
}

// NewHeartbeatCheck returns a check that sends a heartbeat through the channel.
func NewHeartbeatCheck(conf config.Config, w io.Writer, quiet bool) *Check {
	return &Check{
		Name:        "heartbeat",
		Description: "writes a heartbeat on the primary and waits for it to arrive on the replica",
		Run: func(ctx context.Context) error {
			delay, err := newChannel(conf).Probe(ctx)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return fmt.Errorf("heartbeat did not arrive within %s", conf.Replication.WaitTimeout.Duration())
				}
				return err
			}

			logMessage(quiet, w, "heartbeat arrived after %s", delay)
			return nil
		},
		Severity: Warning,
	}
}

func logMessage(quiet bool, w io.Writer, format string, a ...interface{}) {
	if quiet {
		return
	}
	fmt.Fprintf(w, format+"\n", a...)
}
