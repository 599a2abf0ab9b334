package replication

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gitlab.com/pgrepl/pgrepl/internal/helper"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/datastore"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/datastore/glsql"
)

// RowChecker looks up rows by id.
type RowChecker interface {
	RowExists(ctx context.Context, table datastore.Table, id int64) (bool, error)
}

// poll calls check until it reports true. ticker paces the calls and ctx bounds
// the wait. ticker is stopped on return.
func poll(ctx context.Context, ticker helper.Ticker, check func(context.Context) (bool, error)) error {
	defer ticker.Stop()

	for {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		ticker.Reset()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
		}
	}
}

// WaitForRow polls replica until table holds a row with id. It gives up when ctx
// is done or a lookup fails, for instance because the table is missing.
func WaitForRow(ctx context.Context, replica RowChecker, table datastore.Table, id int64, ticker helper.Ticker) error {
	if err := poll(ctx, ticker, func(ctx context.Context) (bool, error) {
		return replica.RowExists(ctx, table, id)
	}); err != nil {
		return fmt.Errorf("wait for row %d of %q: %w", id, table, err)
	}
	return nil
}

// WaitForRow waits at most the configured wait timeout for the row to reach the replica.
func (c *Channel) WaitForRow(ctx context.Context, replica RowChecker, table datastore.Table, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, c.conf.WaitTimeout.Duration())
	defer cancel()

	return WaitForRow(ctx, replica, table, id, c.newTicker())
}

// Probe writes a heartbeat with a random token on the primary and waits for it to
// show up on the replica. It returns how long the heartbeat took to arrive. The
// heartbeat is removed from the primary afterwards, which replicates as well.
func (c *Channel) Probe(ctx context.Context) (time.Duration, error) {
	heartbeats := pq.QuoteIdentifier(datastore.HeartbeatTable)
	token := uuid.New().String()

	start := time.Now()
	if err := c.primary.Query(ctx, func(q glsql.Querier) error {
		_, err := q.ExecContext(ctx, "INSERT INTO "+heartbeats+" (token) VALUES ($1)", token)
		return err
	}); err != nil {
		return 0, fmt.Errorf("write heartbeat on %s: %w", c.primary.Name(), err)
	}

	defer func() {
		// The heartbeat is removed even when the caller gave up waiting.
		cleanupCtx, cancel := context.WithTimeout(helper.SuppressCancellation(ctx), c.conf.WaitTimeout.Duration())
		defer cancel()

		if err := c.primary.Query(cleanupCtx, func(q glsql.Querier) error {
			_, err := q.ExecContext(cleanupCtx, "DELETE FROM "+heartbeats+" WHERE token = $1", token)
			return err
		}); err != nil {
			c.logger.WithError(err).Warn("removing heartbeat failed")
		}
	}()

	waitCtx, cancel := context.WithTimeout(ctx, c.conf.WaitTimeout.Duration())
	defer cancel()

	if err := poll(waitCtx, c.newTicker(), func(ctx context.Context) (bool, error) {
		var arrived bool
		err := c.replica.Query(ctx, func(q glsql.Querier) error {
			return q.QueryRowContext(ctx, "SELECT EXISTS(SELECT FROM "+heartbeats+" WHERE token = $1)", token).Scan(&arrived)
		})
		return arrived, err
	}); err != nil {
		return 0, fmt.Errorf("wait for heartbeat on %s: %w", c.replica.Name(), err)
	}

	delay := time.Since(start)
	c.logger.WithField("delay", delay.String()).Debug("heartbeat arrived")
	return delay, nil
}
