package glsql

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/config"
	"gitlab.com/pgrepl/pgrepl/internal/testhelper"
)

func TestMain(m *testing.M) {
	testhelper.Run(m)
}

func TestDSN(t *testing.T) {
	testCases := []struct {
		desc       string
		in         config.DB
		subscriber bool
		out        string
	}{
		{desc: "empty configuration", in: config.DB{}, out: "binary_parameters=yes"},
		{
			desc: "basic configuration",
			in: config.DB{
				Host:        "1.2.3.4",
				Port:        2345,
				User:        "pgrepl-user",
				Password:    "secret",
				DBName:      "pgrepl_production",
				SSLMode:     "require",
				SSLCert:     "/path/to/cert",
				SSLKey:      "/path/to/key",
				SSLRootCert: "/path/to/root-cert",
			},
			out: `port=2345 host=1.2.3.4 user=pgrepl-user password=secret dbname=pgrepl_production sslmode=require sslcert=/path/to/cert sslkey=/path/to/key sslrootcert=/path/to/root-cert binary_parameters=yes`,
		},
		{
			desc: "with spaces, quotes and backslashes",
			in: config.DB{
				Password: "secret foo'bar\\baz",
			},
			out: `password=secret\ foo\'bar\\baz binary_parameters=yes`,
		},
		{
			desc: "subscriber without replication address",
			in: config.DB{
				Host:     "localhost",
				Port:     5432,
				User:     "postgres",
				Password: "masterpass",
				DBName:   "testdb",
			},
			subscriber: true,
			out:        `port=5432 host=localhost user=postgres password=masterpass dbname=testdb`,
		},
		{
			desc: "subscriber with replication address",
			in: config.DB{
				Host:            "localhost",
				Port:            15432,
				User:            "postgres",
				Password:        "masterpass",
				DBName:          "testdb",
				SSLMode:         "disable",
				ReplicationHost: "postgres_master",
				ReplicationPort: 5432,
			},
			subscriber: true,
			out:        `port=5432 host=postgres_master user=postgres password=masterpass dbname=testdb sslmode=disable`,
		},
		{
			desc: "subscriber with replication host only",
			in: config.DB{
				Host:            "localhost",
				Port:            5432,
				ReplicationHost: "postgres_master",
			},
			subscriber: true,
			out:        `port=5432 host=postgres_master`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			require.Equal(t, tc.out, DSN(tc.in, tc.subscriber))
		})
	}
}

func TestAsPQError(t *testing.T) {
	pqErr := &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"}

	got, ok := AsPQError(fmt.Errorf("insert row: %w", pqErr))
	require.True(t, ok)
	require.Equal(t, pq.ErrorCode("23505"), got.Code)

	_, ok = AsPQError(errors.New("connection refused"))
	require.False(t, ok)
}

func TestStringProvider(t *testing.T) {
	var provider StringProvider
	require.Nil(t, provider.Values())

	dst1 := provider.To()
	require.Equal(t, []interface{}{new(string)}, dst1, "must be a single value holder")
	*(dst1[0].(*string)) = "orders"

	dst2 := provider.To()
	*(dst2[0].(*string)) = "customers"

	require.Equal(t, []string{"orders", "customers"}, provider.Values())
}

func TestOpenDB(t *testing.T) {
	dbCfg := GetDBConfig(t, "postgres")
	ctx, cancel := testhelper.Context()
	defer cancel()

	t.Run("failed to ping because of incorrect config", func(t *testing.T) {
		badCfg := dbCfg
		badCfg.Host = "not-existing.com"
		_, err := OpenDB(ctx, badCfg)
		require.Error(t, err)
		require.Regexp(t, "send ping: dial tcp: lookup not\\-existing.com(.*): no such host", err.Error(), "opening of DB with incorrect configuration must fail")
	})

	t.Run("timeout on hanging connection attempt", func(t *testing.T) {
		lis, err := net.Listen("tcp", "localhost:0")
		require.NoError(t, err)
		defer lis.Close()

		badCfg := dbCfg
		badCfg.Host = "localhost"
		badCfg.Port = (lis.Addr().(*net.TCPAddr)).Port
		start := time.Now()
		ctx, cancel := context.WithTimeout(ctx, time.Nanosecond)
		defer cancel()
		_, err = OpenDB(ctx, badCfg)
		require.Equal(t, context.DeadlineExceeded, err, "context cancellation should prevent hang")
		duration := time.Since(start)
		require.Truef(t, duration < time.Second, "connection attempt took %s", duration.String())
	})

	t.Run("connected with proper config", func(t *testing.T) {
		db, err := OpenDB(ctx, dbCfg)
		require.NoError(t, err, "opening of DB with correct configuration must not fail")
		require.NoError(t, db.Close())
	})
}

func TestScanAll(t *testing.T) {
	db := NewDB(t)

	var names StringProvider
	notEmptyRows, err := db.Query("SELECT name FROM (VALUES ('a'), ('b'), ('c')) AS t(name)")
	require.NoError(t, err)

	require.NoError(t, ScanAll(notEmptyRows, &names))
	require.Equal(t, []string{"a", "b", "c"}, names.Values())

	var nothing StringProvider
	emptyRows, err := db.Query("SELECT name FROM (VALUES ('a')) AS t(name) WHERE name = 'z'")
	require.NoError(t, err)

	require.NoError(t, ScanAll(emptyRows, &nothing))
	require.Equal(t, ([]string)(nil), nothing.Values())
}
