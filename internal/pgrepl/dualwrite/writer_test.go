package dualwrite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/datastore"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/datastore/glsql"
	"gitlab.com/pgrepl/pgrepl/internal/testhelper"
)

func TestMain(m *testing.M) {
	testhelper.Run(m)
}

type execCall struct {
	query string
	args  []interface{}
}

type fakeTarget struct {
	name  string
	err   error
	calls []execCall
}

func (f *fakeTarget) Name() string { return f.name }

func (f *fakeTarget) Exec(_ context.Context, query string, args ...interface{}) error {
	f.calls = append(f.calls, execCall{query: query, args: args})
	return f.err
}

func TestOperation_Statement(t *testing.T) {
	for _, tc := range []struct {
		desc  string
		op    Operation
		query string
		args  []interface{}
		err   bool
	}{
		{
			desc:  "create table",
			op:    CreateTable("orders"),
			query: `CREATE TABLE IF NOT EXISTS "orders" (id SERIAL PRIMARY KEY, data TEXT)`,
		},
		{
			desc:  "insert row",
			op:    InsertRow("orders", "test data"),
			query: `INSERT INTO "orders" (data) VALUES ($1)`,
			args:  []interface{}{"test data"},
		},
		{
			desc:  "payload with quotes travels as an argument",
			op:    InsertRow("orders", "'); DROP TABLE orders; --"),
			query: `INSERT INTO "orders" (data) VALUES ($1)`,
			args:  []interface{}{"'); DROP TABLE orders; --"},
		},
		{
			desc:  "delete row",
			op:    DeleteRow("orders", 7),
			query: `DELETE FROM "orders" WHERE id = $1`,
			args:  []interface{}{int64(7)},
		},
		{
			desc:  "drop table",
			op:    DropTable("orders"),
			query: `DROP TABLE IF EXISTS "orders"`,
		},
		{
			desc: "unknown kind",
			op:   Operation{Kind: "truncate", Table: "orders"},
			err:  true,
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			query, args, err := tc.op.Statement()
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.query, query)
			require.Equal(t, tc.args, args)
		})
	}
}

func TestWriter_Apply(t *testing.T) {
	errPrimary := errors.New("primary is down")
	errReplica := errors.New("replica is down")

	for _, tc := range []struct {
		desc           string
		primaryErr     error
		replicaErr     error
		replicaWrites  bool
		status         Status
		primaryCalls   int
		replicaCalls   int
		replicaSkipped bool
		message        string
		err            error
	}{
		{
			desc:          "both endpoints succeed",
			replicaWrites: true,
			status:        StatusApplied,
			primaryCalls:  1,
			replicaCalls:  1,
			message:       "Row with ID 3 deleted from 'orders' on primary and replica.",
		},
		{
			desc:          "primary fails",
			primaryErr:    errPrimary,
			replicaWrites: true,
			status:        StatusFailed,
			primaryCalls:  1,
			message:       "Error deleting row 3 from 'orders' on primary: primary is down",
			err:           errPrimary,
		},
		{
			desc:          "replica fails after primary committed",
			replicaErr:    errReplica,
			replicaWrites: true,
			status:        StatusDiverged,
			primaryCalls:  1,
			replicaCalls:  1,
			message:       "Row with ID 3 deleted from 'orders' on primary, but failed on replica: replica is down. The change on primary was kept, primary and replica have diverged.",
			err:           ErrDiverged,
		},
		{
			desc:           "replica writes disabled",
			replicaErr:     errReplica,
			status:         StatusApplied,
			primaryCalls:   1,
			replicaSkipped: true,
			message:        "Row with ID 3 deleted from 'orders' on primary. Writes to replica are disabled, the change is left to replication.",
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			primary := &fakeTarget{name: "primary", err: tc.primaryErr}
			replica := &fakeTarget{name: "replica", err: tc.replicaErr}
			logger, hook := testhelper.NewCapturingLogEntry(t)

			ctx, cancel := testhelper.Context()
			defer cancel()

			result := NewWriter(primary, replica, tc.replicaWrites, logger).Apply(ctx, DeleteRow("orders", 3))

			require.Equal(t, tc.status, result.Status)
			require.Equal(t, tc.replicaSkipped, result.ReplicaSkipped)
			require.Len(t, primary.calls, tc.primaryCalls)
			require.Len(t, replica.calls, tc.replicaCalls)
			require.Equal(t, tc.message, result.String())

			if tc.err == nil {
				require.NoError(t, result.Err())
			} else {
				require.True(t, errors.Is(result.Err(), tc.err), "unexpected error: %v", result.Err())
			}

			entry := hook.LastEntry()
			require.NotNil(t, entry)
			require.Equal(t, tc.status.String(), entry.Data["status"])
			require.Equal(t, "delete_row", entry.Data["operation"])
		})
	}
}

func TestWriter_Apply_tableDDLIgnoresReplicaWritesSwitch(t *testing.T) {
	for _, op := range []Operation{
		CreateTable("orders"),
		InsertRow("orders", "widget"),
		DeleteRow("orders", 1),
		DropTable("orders"),
	} {
		t.Run(string(op.Kind), func(t *testing.T) {
			primary := &fakeTarget{name: "primary"}
			replica := &fakeTarget{name: "replica"}

			ctx, cancel := testhelper.Context()
			defer cancel()

			result := NewWriter(primary, replica, false, testhelper.NewDiscardingLogEntry(t)).Apply(ctx, op)
			require.Equal(t, StatusApplied, result.Status)
			require.Len(t, primary.calls, 1)

			if op.Kind.Replicated() {
				require.True(t, result.ReplicaSkipped)
				require.Empty(t, replica.calls)
				return
			}

			require.False(t, result.ReplicaSkipped)
			require.Equal(t, primary.calls, replica.calls)
		})
	}
}

func TestKind_Replicated(t *testing.T) {
	require.False(t, KindCreateTable.Replicated())
	require.True(t, KindInsertRow.Replicated())
	require.True(t, KindDeleteRow.Replicated())
	require.False(t, KindDropTable.Replicated())
}

func TestWriter_Apply_divergedErrorUnwrapsReplicaError(t *testing.T) {
	errReplica := errors.New("relation does not exist")
	primary := &fakeTarget{name: "primary"}
	replica := &fakeTarget{name: "replica", err: errReplica}

	ctx, cancel := testhelper.Context()
	defer cancel()

	err := NewWriter(primary, replica, true, testhelper.NewDiscardingLogEntry(t)).Apply(ctx, DropTable("orders")).Err()

	var diverged DivergedError
	require.True(t, errors.As(err, &diverged))
	require.Equal(t, "replica", diverged.Replica)
	require.True(t, errors.Is(err, errReplica))
	require.EqualError(t, err, "dropping table 'orders' on replica: relation does not exist")
}

func TestWriter_Apply_postgres(t *testing.T) {
	primaryDB := glsql.NewDB(t)
	replicaDB := glsql.NewDB(t)

	logger := testhelper.NewDiscardingLogEntry(t)
	primary := datastore.NewEndpoint("primary", primaryDB.Config, time.Minute, logger)
	replica := datastore.NewEndpoint("replica", replicaDB.Config, time.Minute, logger)
	writer := NewWriter(primary, replica, true, logger)

	ctx, cancel := testhelper.Context()
	defer cancel()

	table, err := datastore.ParseTable("Orders")
	require.NoError(t, err)

	result := writer.Apply(ctx, CreateTable(table))
	require.Equal(t, StatusApplied, result.Status, result.String())
	for _, db := range []glsql.DB{primaryDB, replicaDB} {
		require.True(t, db.TableExists(t, "orders"))
		var columns []string
		rows, err := db.Query(`SELECT column_name || ' ' || data_type FROM information_schema.columns WHERE table_name = 'orders' ORDER BY ordinal_position`)
		require.NoError(t, err)
		var provider glsql.StringProvider
		require.NoError(t, glsql.ScanAll(rows, &provider))
		columns = provider.Values()
		require.Equal(t, []string{"id integer", "data text"}, columns)
	}

	result = writer.Apply(ctx, InsertRow(table, "test data"))
	require.Equal(t, StatusApplied, result.Status, result.String())
	primaryDB.RequireRowsInTable(t, "orders", 1)
	replicaDB.RequireRowsInTable(t, "orders", 1)

	// The replica loses the table behind the tool's back.
	replicaDB.MustExec(t, "DROP TABLE orders")

	result = writer.Apply(ctx, DeleteRow(table, 1))
	require.Equal(t, StatusDiverged, result.Status, result.String())
	primaryDB.RequireRowsInTable(t, "orders", 0)

	pqErr, ok := glsql.AsPQError(result.ReplicaErr)
	require.True(t, ok)
	require.Equal(t, "42P01", string(pqErr.Code))

	result = writer.Apply(ctx, DropTable(table))
	require.Equal(t, StatusApplied, result.Status, result.String())
	require.False(t, primaryDB.TableExists(t, "orders"))
}

func TestWriter_Apply_logsFields(t *testing.T) {
	logger, hook := testhelper.NewCapturingLogEntry(t)
	primary := &fakeTarget{name: "primary"}
	replica := &fakeTarget{name: "replica"}

	ctx, cancel := testhelper.Context()
	defer cancel()

	NewWriter(primary, replica, true, logger).Apply(ctx, CreateTable("orders"))

	entry := hook.LastEntry()
	require.Equal(t, logrus.InfoLevel, entry.Level)
	require.Equal(t, logrus.Fields{"operation": "create_table", "table": "orders", "status": "applied"}, entry.Data)
}
