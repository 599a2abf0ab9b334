package replication

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/config"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/datastore/glsql"
	"gitlab.com/pgrepl/pgrepl/internal/testhelper"
)

func TestMain(m *testing.M) {
	testhelper.Run(m)
}

type fakeEndpoint struct {
	name     string
	conf     config.DB
	execErr  error
	queryErr error
	executed []string
	// queryCtxErrs records the context error seen by each Query call.
	queryCtxErrs []error
	onQuery      func()
}

func (f *fakeEndpoint) Name() string      { return f.name }
func (f *fakeEndpoint) Config() config.DB { return f.conf }

func (f *fakeEndpoint) ExecAutocommit(_ context.Context, queries ...string) error {
	f.executed = append(f.executed, queries...)
	return f.execErr
}

func (f *fakeEndpoint) Query(ctx context.Context, _ func(glsql.Querier) error) error {
	f.queryCtxErrs = append(f.queryCtxErrs, ctx.Err())
	if f.onQuery != nil {
		f.onQuery()
	}
	return f.queryErr
}

func newFakeChannel(t testing.TB) (*Channel, *fakeEndpoint, *fakeEndpoint) {
	primary := &fakeEndpoint{
		name: "primary",
		conf: config.DB{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "masterpass",
			DBName:          "testdb",
			SSLMode:         "disable",
			ReplicationHost: "postgres_master",
		},
	}
	replica := &fakeEndpoint{name: "replica"}

	conf := config.DefaultReplicationConfig()
	conf.Publication = "master_pub"
	conf.Subscription = "slave_sub"

	return NewChannel(primary, replica, conf, testhelper.NewDiscardingLogEntry(t)), primary, replica
}

const heartbeatDDL = `CREATE TABLE IF NOT EXISTS "pgrepl_heartbeats" (id BIGSERIAL PRIMARY KEY, token TEXT NOT NULL, created_at TIMESTAMPTZ NOT NULL DEFAULT now())`

func TestChannel_Setup(t *testing.T) {
	channel, primary, replica := newFakeChannel(t)

	ctx, cancel := testhelper.Context()
	defer cancel()

	require.NoError(t, channel.Setup(ctx))
	require.Equal(t, []string{
		heartbeatDDL,
		`DROP PUBLICATION IF EXISTS "master_pub"`,
		`CREATE PUBLICATION "master_pub" FOR ALL TABLES`,
	}, primary.executed)
	require.Equal(t, []string{
		heartbeatDDL,
		`DROP SUBSCRIPTION IF EXISTS "slave_sub"`,
		`CREATE SUBSCRIPTION "slave_sub" CONNECTION 'port=5432 host=postgres_master user=postgres password=masterpass dbname=testdb sslmode=disable' PUBLICATION "master_pub" WITH (copy_data = false)`,
	}, replica.executed)
}

func TestChannel_Setup_copyData(t *testing.T) {
	channel, _, _ := newFakeChannel(t)
	channel.conf.CopyData = true

	statements := channel.SubscriberStatements()
	require.Contains(t, statements[len(statements)-1], "WITH (copy_data = true)")
}

func TestChannel_Setup_quotesConninfo(t *testing.T) {
	channel, primary, _ := newFakeChannel(t)
	primary.conf.Password = "it's"

	statements := channel.SubscriberStatements()
	require.Contains(t, statements[len(statements)-1], `E'port=5432 host=postgres_master user=postgres password=it\\''s dbname=testdb sslmode=disable'`)
}

func TestChannel_Setup_failures(t *testing.T) {
	errExec := errors.New("permission denied")

	t.Run("publication fails", func(t *testing.T) {
		channel, primary, replica := newFakeChannel(t)
		primary.execErr = errExec

		ctx, cancel := testhelper.Context()
		defer cancel()

		err := channel.Setup(ctx)
		require.True(t, errors.Is(err, errExec))
		require.EqualError(t, err, "create publication on primary: permission denied")
		require.Empty(t, replica.executed, "the replica must not be touched")
	})

	t.Run("subscription fails", func(t *testing.T) {
		channel, _, replica := newFakeChannel(t)
		replica.execErr = errExec

		ctx, cancel := testhelper.Context()
		defer cancel()

		err := channel.Setup(ctx)
		require.True(t, errors.Is(err, errExec))
		require.EqualError(t, err, "create subscription on replica: permission denied")
	})
}
