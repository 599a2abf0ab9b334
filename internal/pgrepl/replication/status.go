package replication

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/datastore/glsql"
	"golang.org/x/sync/errgroup"
)

// State is the condition of the channel as observed on both endpoints.
type State string

const (
	// StateAbsent means neither the publication nor the subscription exists.
	StateAbsent = State("absent")
	// StatePartial means the channel exists only in part, is disabled, or has
	// tables which are not synchronized yet.
	StatePartial = State("partial")
	// StateActive means changes on the primary are being streamed to the replica.
	StateActive = State("active")
)

// Status describes the publication and the subscription.
type Status struct {
	Publication       string
	PublicationExists bool
	// AllTables is set for a FOR ALL TABLES publication.
	AllTables bool

	Subscription        string
	SubscriptionExists  bool
	SubscriptionEnabled bool
	// WorkerRunning is set while the apply worker of the subscription is alive.
	WorkerRunning bool
	// TablesTotal is the number of tables known to the subscription, TablesReady
	// the number of them which finished their initial synchronization.
	TablesTotal, TablesReady int
	// LastMessage is when the replica last heard from the primary.
	LastMessage *time.Time

	State State
}

func (s *Status) deriveState() {
	switch {
	case !s.PublicationExists && !s.SubscriptionExists:
		s.State = StateAbsent
	case s.PublicationExists && s.AllTables &&
		s.SubscriptionExists && s.SubscriptionEnabled && s.WorkerRunning &&
		s.TablesReady == s.TablesTotal:
		s.State = StateActive
	default:
		s.State = StatePartial
	}
}

// Status reads the state of the channel from both endpoints concurrently.
func (c *Channel) Status(ctx context.Context) (Status, error) {
	status := Status{Publication: c.conf.Publication, Subscription: c.conf.Subscription}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := c.primary.Query(ctx, func(q glsql.Querier) error {
			return c.readPublication(ctx, q, &status)
		}); err != nil {
			return fmt.Errorf("read publication on %s: %w", c.primary.Name(), err)
		}
		return nil
	})
	group.Go(func() error {
		if err := c.replica.Query(ctx, func(q glsql.Querier) error {
			return c.readSubscription(ctx, q, &status)
		}); err != nil {
			return fmt.Errorf("read subscription on %s: %w", c.replica.Name(), err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return Status{}, err
	}

	status.deriveState()
	return status, nil
}

func (c *Channel) readPublication(ctx context.Context, q glsql.Querier, status *Status) error {
	err := q.QueryRowContext(ctx, `SELECT puballtables FROM pg_publication WHERE pubname = $1`, c.conf.Publication).
		Scan(&status.AllTables)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return err
	}

	status.PublicationExists = true
	return nil
}

func (c *Channel) readSubscription(ctx context.Context, q glsql.Querier, status *Status) error {
	err := q.QueryRowContext(ctx, `
SELECT subenabled
FROM pg_subscription
WHERE subname = $1 AND subdbid = (SELECT oid FROM pg_database WHERE datname = current_database())`,
		c.conf.Subscription,
	).Scan(&status.SubscriptionEnabled)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return err
	}
	status.SubscriptionExists = true

	var lastMessage sql.NullTime
	err = q.QueryRowContext(ctx, `
SELECT pid IS NOT NULL, last_msg_receipt_time
FROM pg_stat_subscription
WHERE subname = $1 AND relid IS NULL`,
		c.conf.Subscription,
	).Scan(&status.WorkerRunning, &lastMessage)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	case lastMessage.Valid:
		status.LastMessage = &lastMessage.Time
	}

	return q.QueryRowContext(ctx, `
SELECT COUNT(*), COUNT(*) FILTER (WHERE rel.srsubstate IN ('s', 'r'))
FROM pg_subscription_rel AS rel
JOIN pg_subscription AS sub ON sub.oid = rel.srsubid
WHERE sub.subname = $1`,
		c.conf.Subscription,
	).Scan(&status.TablesTotal, &status.TablesReady)
}
