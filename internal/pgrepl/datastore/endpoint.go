package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/config"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/datastore/glsql"
)

// ConnectError is returned when an endpoint can't be reached. SQL errors raised by
// a reachable endpoint are returned as they are, with the *pq.Error in the chain.
type ConnectError struct {
	Endpoint string
	Address  string
	Err      error
}

// Error returns the errors message.
func (err ConnectError) Error() string {
	return fmt.Sprintf("connect to %s (%s): %v", err.Endpoint, err.Address, err.Err)
}

// Unwrap returns the underlying error.
func (err ConnectError) Unwrap() error { return err.Err }

// Endpoint is one of the two PostgreSQL databases the tool drives. It holds no
// connection: every operation opens one and closes it before returning.
type Endpoint struct {
	name           string
	conf           config.DB
	connectTimeout time.Duration
	logger         logrus.FieldLogger
}

// NewEndpoint returns an Endpoint named name, e.g. "primary".
func NewEndpoint(name string, conf config.DB, connectTimeout time.Duration, logger logrus.FieldLogger) *Endpoint {
	return &Endpoint{
		name:           name,
		conf:           conf,
		connectTimeout: connectTimeout,
		logger:         logger.WithFields(logrus.Fields{"endpoint": name, "address": conf.Address()}),
	}
}

// Name returns the name of the endpoint.
func (e *Endpoint) Name() string { return e.name }

// Config returns the connection settings of the endpoint.
func (e *Endpoint) Config() config.DB { return e.conf }

func (e *Endpoint) withDB(ctx context.Context, fn func(*sql.DB) error) error {
	openCtx := ctx
	if e.connectTimeout > 0 {
		var cancel context.CancelFunc
		openCtx, cancel = context.WithTimeout(ctx, e.connectTimeout)
		defer cancel()
	}

	db, err := glsql.OpenDB(openCtx, e.conf)
	if err != nil {
		return ConnectError{Endpoint: e.name, Address: e.conf.Address(), Err: err}
	}
	defer func() {
		if err := db.Close(); err != nil {
			e.logger.WithError(err).Warn("closing connection failed")
		}
	}()

	return fn(db)
}

// Exec runs a single statement in its own transaction and commits it.
func (e *Endpoint) Exec(ctx context.Context, query string, args ...interface{}) error {
	return e.withDB(ctx, func(db *sql.DB) error {
		e.logger.WithField("query", query).Debug("executing statement")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		//nolint: errcheck
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}

		return nil
	})
}

// ExecAutocommit runs the statements one after another outside of a transaction
// block, as required by CREATE/DROP SUBSCRIPTION. It stops at the first failure.
func (e *Endpoint) ExecAutocommit(ctx context.Context, queries ...string) error {
	return e.withDB(ctx, func(db *sql.DB) error {
		for _, query := range queries {
			e.logger.WithField("query", redactConninfo(query)).Debug("executing statement")

			if _, err := db.ExecContext(ctx, query); err != nil {
				return err
			}
		}
		return nil
	})
}

// Query hands a connection to fn for read-only queries.
func (e *Endpoint) Query(ctx context.Context, fn func(glsql.Querier) error) error {
	return e.withDB(ctx, func(db *sql.DB) error { return fn(db) })
}

// ListTables returns the names of the tables in the public schema.
func (e *Endpoint) ListTables(ctx context.Context) ([]string, error) {
	var tables glsql.StringProvider
	if err := e.Query(ctx, func(q glsql.Querier) error {
		rows, err := q.QueryContext(ctx, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = 'public' AND table_type = 'BASE TABLE' AND table_name <> $1
ORDER BY table_name`,
			HeartbeatTable,
		)
		if err != nil {
			return err
		}

		return glsql.ScanAll(rows, &tables)
	}); err != nil {
		return nil, fmt.Errorf("list tables on %s: %w", e.name, err)
	}

	return tables.Values(), nil
}

// ListRows returns the rows of table ordered by id.
func (e *Endpoint) ListRows(ctx context.Context, table Table) ([]Row, error) {
	var result []Row
	if err := e.Query(ctx, func(q glsql.Querier) error {
		rows, err := q.QueryContext(ctx, "SELECT id, data FROM "+table.Quoted()+" ORDER BY id")
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var row Row
			var data sql.NullString
			if err := rows.Scan(&row.ID, &data); err != nil {
				return err
			}
			if data.Valid {
				row.Data = &data.String
			}
			result = append(result, row)
		}

		return rows.Err()
	}); err != nil {
		return nil, fmt.Errorf("list rows of %q on %s: %w", table, e.name, err)
	}

	return result, nil
}

// RowExists reports whether table contains a row with the given id.
func (e *Endpoint) RowExists(ctx context.Context, table Table, id int64) (bool, error) {
	var exists bool
	if err := e.Query(ctx, func(q glsql.Querier) error {
		return q.QueryRowContext(ctx, "SELECT EXISTS(SELECT FROM "+table.Quoted()+" WHERE id = $1)", id).Scan(&exists)
	}); err != nil {
		return false, fmt.Errorf("look up row %d of %q on %s: %w", id, table, e.name, err)
	}

	return exists, nil
}

// InsertReturningID inserts data into table on this endpoint only and returns the id
// assigned to the new row.
func (e *Endpoint) InsertReturningID(ctx context.Context, table Table, data string) (int64, error) {
	var id int64
	if err := e.Query(ctx, func(q glsql.Querier) error {
		return q.QueryRowContext(ctx, "INSERT INTO "+table.Quoted()+" (data) VALUES ($1) RETURNING id", data).Scan(&id)
	}); err != nil {
		return 0, fmt.Errorf("insert into %q on %s: %w", table, e.name, err)
	}

	return id, nil
}
