// Package replication manages the publication on the primary and the subscription
// on the replica through which PostgreSQL replicates every table of the primary.
package replication

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gitlab.com/pgrepl/pgrepl/internal/helper"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/config"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/datastore"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/datastore/glsql"
)

// Endpoint is a database the channel is configured on.
type Endpoint interface {
	Name() string
	Config() config.DB
	// ExecAutocommit runs the queries outside of a transaction block.
	ExecAutocommit(ctx context.Context, queries ...string) error
	Query(ctx context.Context, fn func(glsql.Querier) error) error
}

// Channel is the publication/subscription pair between the primary and the replica.
type Channel struct {
	primary, replica Endpoint
	conf             config.Replication
	logger           logrus.FieldLogger
	newTicker        func() helper.Ticker
}

// NewChannel returns a Channel configured with conf.
func NewChannel(primary, replica Endpoint, conf config.Replication, logger logrus.FieldLogger) *Channel {
	return &Channel{
		primary: primary,
		replica: replica,
		conf:    conf,
		logger: logger.WithFields(logrus.Fields{
			"publication":  conf.Publication,
			"subscription": conf.Subscription,
		}),
		newTicker: func() helper.Ticker { return helper.NewTimerTicker(conf.PollInterval.Duration()) },
	}
}

func heartbeatTableDDL() string {
	return "CREATE TABLE IF NOT EXISTS " + pq.QuoteIdentifier(datastore.HeartbeatTable) +
		" (id BIGSERIAL PRIMARY KEY, token TEXT NOT NULL, created_at TIMESTAMPTZ NOT NULL DEFAULT now())"
}

// PublisherStatements returns the statements Setup runs on the primary.
func (c *Channel) PublisherStatements() []string {
	publication := pq.QuoteIdentifier(c.conf.Publication)
	return []string{
		heartbeatTableDDL(),
		"DROP PUBLICATION IF EXISTS " + publication,
		"CREATE PUBLICATION " + publication + " FOR ALL TABLES",
	}
}

// SubscriberStatements returns the statements Setup runs on the replica. The
// connection string embeds the credentials of the primary.
func (c *Channel) SubscriberStatements() []string {
	subscription := pq.QuoteIdentifier(c.conf.Subscription)
	return []string{
		heartbeatTableDDL(),
		"DROP SUBSCRIPTION IF EXISTS " + subscription,
		fmt.Sprintf("CREATE SUBSCRIPTION %s CONNECTION %s PUBLICATION %s WITH (copy_data = %t)",
			subscription,
			pq.QuoteLiteral(glsql.DSN(c.primary.Config(), true)),
			pq.QuoteIdentifier(c.conf.Publication),
			c.conf.CopyData,
		),
	}
}

// Setup drops and recreates the publication and then the subscription. Running it
// again recreates the channel from scratch. The first failing statement aborts it.
func (c *Channel) Setup(ctx context.Context) error {
	c.logger.Info("setting up replication")

	if err := c.primary.ExecAutocommit(ctx, c.PublisherStatements()...); err != nil {
		return fmt.Errorf("create publication on %s: %w", c.primary.Name(), err)
	}

	if err := c.replica.ExecAutocommit(ctx, c.SubscriberStatements()...); err != nil {
		return fmt.Errorf("create subscription on %s: %w", c.replica.Name(), err)
	}

	c.logger.Info("replication set up")
	return nil
}
