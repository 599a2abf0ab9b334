package glsql

import (
	"database/sql"
	"errors"
	"net"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/config"
)

// DB is a helper struct that should be used only for testing purposes.
type DB struct {
	*sql.DB
	// Name is a name of the database.
	Name string
	// Config is the configuration to reach the database.
	Config config.DB
}

// MustExec executes `q` with `args` and verifies there are no errors.
func (db DB) MustExec(t testing.TB, q string, args ...interface{}) {
	t.Helper()
	_, err := db.DB.Exec(q, args...)
	require.NoError(t, err)
}

// RequireRowsInTable verifies that `tname` table has `n` amount of rows in it.
func (db DB) RequireRowsInTable(t testing.TB, tname string, n int) {
	t.Helper()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+pq.QuoteIdentifier(tname)).Scan(&count))
	require.Equal(t, n, count, "unexpected amount of rows in table: %d instead of %d", count, n)
}

// TableExists reports whether the public schema contains `tname`.
func (db DB) TableExists(t testing.TB, tname string) bool {
	t.Helper()
	return scanSingleBool(t, db.DB, `SELECT EXISTS(SELECT FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`, tname)
}

// NewDB returns a wrapper around a freshly created database on the server addressed
// by PGHOST and PGPORT. The database is dropped on test cleanup.
// It uses env vars:
//   PGHOST - required, URL/socket/dir
//   PGPORT - required, binding port
//   PGUSER - optional, user - `$ whoami` would be used if not provided
//   PGPASSWORD - optional
// The test is skipped when PGHOST is not set.
func NewDB(t testing.TB) DB {
	t.Helper()
	return newDB(t, GetDBConfig(t, "postgres"))
}

// NewReplicaDB is NewDB for the second server addressed by PGHOST_REPLICA and
// PGPORT_REPLICA. Subscriptions living in the database are dropped before the
// database itself.
func NewReplicaDB(t testing.TB) DB {
	t.Helper()
	return newDB(t, GetReplicaDBConfig(t, "postgres"))
}

// GetDBConfig returns the database configuration determined by
// environment variables. See NewDB() for the list of variables.
func GetDBConfig(t testing.TB, database string) config.DB {
	t.Helper()
	conf := lookupDBConfig(t, "PGHOST", "PGPORT", database)
	conf.ReplicationHost = os.Getenv("PGHOST_FROM_REPLICA")
	if port, ok := os.LookupEnv("PGPORT_FROM_REPLICA"); ok {
		portNumber, err := strconv.Atoi(port)
		require.NoError(t, err, "PGPORT_FROM_REPLICA must be a port number")
		conf.ReplicationPort = portNumber
	}
	return conf
}

// GetReplicaDBConfig returns the configuration of the second server. See NewReplicaDB().
func GetReplicaDBConfig(t testing.TB, database string) config.DB {
	t.Helper()
	return lookupDBConfig(t, "PGHOST_REPLICA", "PGPORT_REPLICA", database)
}

func lookupDBConfig(t testing.TB, hostVar, portVar, database string) config.DB {
	t.Helper()

	host, hostFound := os.LookupEnv(hostVar)
	if !hostFound {
		t.Skipf("%s not set; skipping tests against Postgres", hostVar)
	}

	port, portFound := os.LookupEnv(portVar)
	require.True(t, portFound, "%s env var expected to be provided to connect to Postgres database", portVar)
	portNumber, pErr := strconv.Atoi(port)
	require.NoError(t, pErr, "%s must be a port number of the Postgres database listens for incoming connections", portVar)

	return config.DB{
		Host:     host,
		Port:     portNumber,
		DBName:   database,
		SSLMode:  "disable",
		User:     os.Getenv("PGUSER"),
		Password: os.Getenv("PGPASSWORD"),
	}
}

func newDB(t testing.TB, serverCfg config.DB) DB {
	t.Helper()

	database := "pgrepl_" + strings.ReplaceAll(uuid.New().String(), "-", "")

	postgresDB := requireSQLOpen(t, serverCfg)
	defer func() { require.NoErrorf(t, postgresDB.Close(), "release connection to the %q database", serverCfg.DBName) }()

	_, err := postgresDB.Exec("CREATE DATABASE " + database + " WITH ENCODING 'UTF8'")
	require.NoErrorf(t, err, "failed to create %q database", database)

	dbCfg := serverCfg
	dbCfg.DBName = database

	t.Cleanup(func() {
		dropSubscriptions(t, dbCfg)

		postgresDB := requireSQLOpen(t, serverCfg)
		defer func() { require.NoErrorf(t, postgresDB.Close(), "release connection to the %q database", serverCfg.DBName) }()

		requireTerminateAllConnections(t, postgresDB, database)

		_, err := postgresDB.Exec("DROP DATABASE " + database)
		require.NoErrorf(t, err, "failed to drop %q database", database)
	})

	testDB := requireSQLOpen(t, dbCfg)
	t.Cleanup(func() {
		if err := testDB.Close(); !errors.Is(err, net.ErrClosed) {
			require.NoErrorf(t, err, "release connection to the %q database", dbCfg.DBName)
		}
	})

	return DB{DB: testDB, Name: database, Config: dbCfg}
}

func dropSubscriptions(t testing.TB, dbCfg config.DB) {
	t.Helper()

	db := requireSQLOpen(t, dbCfg)
	defer func() { require.NoErrorf(t, db.Close(), "release connection to the %q database", dbCfg.DBName) }()

	rows, err := db.Query(`SELECT subname FROM pg_subscription WHERE subdbid = (SELECT oid FROM pg_database WHERE datname = current_database())`)
	require.NoError(t, err)

	var names StringProvider
	require.NoError(t, ScanAll(rows, &names))

	for _, name := range names.Values() {
		_, err := db.Exec("DROP SUBSCRIPTION IF EXISTS " + pq.QuoteIdentifier(name))
		require.NoErrorf(t, err, "drop subscription %q", name)
	}
}

func requireSQLOpen(t testing.TB, dbCfg config.DB) *sql.DB {
	t.Helper()
	db, err := sql.Open("postgres", DSN(dbCfg, false))
	require.NoErrorf(t, err, "failed to connect to %q database", dbCfg.DBName)
	if !assert.NoErrorf(t, db.Ping(), "failed to communicate with %q database", dbCfg.DBName) {
		require.NoErrorf(t, db.Close(), "release connection to the %q database", dbCfg.DBName)
		t.FailNow()
	}
	return db
}

func requireTerminateAllConnections(t testing.TB, db *sql.DB, database string) {
	t.Helper()
	_, err := db.Exec("SELECT PG_TERMINATE_BACKEND(pid) FROM PG_STAT_ACTIVITY WHERE datname = $1 AND pid <> pg_backend_pid()", database)
	require.NoError(t, err)
}

func scanSingleBool(t testing.TB, db *sql.DB, query string, args ...interface{}) bool {
	t.Helper()
	var flag bool
	row := db.QueryRow(query, args...)
	require.NoError(t, row.Scan(&flag))
	return flag
}
