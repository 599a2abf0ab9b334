// Package glsql provides integration with SQL database. It contains a set
// of functions and structures that help to interact with SQL database and
// to write tests to check it.

// A simple unit tests do not require any additional dependencies.
// Some of the tests require a running Postgres database instance.
// You need to provide PGHOST and PGPORT environment variables to run them,
// otherwise they are skipped:
// PGHOST - is a host of the Postgres database to connect to.
// PGPORT - is a port which is used by Postgres database to listen for incoming
// connections.
// PGUSER - is a user of the Postgres database that needs to be used.
// PGPASSWORD - is the password of PGUSER, if the server asks for one.
//
// Tests of the replication channel need a second server, because a subscription
// can't be created against a database of the same cluster without manual slot
// management. Provide it with PGHOST_REPLICA and PGPORT_REPLICA. The server behind
// PGHOST must run with wal_level=logical. When the replica server reaches the
// first one under another address, as with docker compose service names, set
// PGHOST_FROM_REPLICA and PGPORT_FROM_REPLICA.
//
// To check if everything configured properly run the command:
//
// $ PGHOST=<host of db instance> \
//   PGPORT=<port of db instance> \
//   PGUSER=postgres \
//   go test \
//    -v \
//    -count=1 \
//    gitlab.com/pgrepl/pgrepl/internal/pgrepl/datastore/glsql \
//    -run=^TestOpenDB$

package glsql
