package datastore

import (
	"context"
	"fmt"
	"regexp"

	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/datastore/glsql"
)

// MinimumServerVersion is the first PostgreSQL release with publications and subscriptions.
const MinimumServerVersion = 10_00_00

// CheckPostgresVersion checks that the server behind the endpoint supports
// native logical replication.
func (e *Endpoint) CheckPostgresVersion(ctx context.Context) (int, error) {
	var serverVersion int
	if err := e.Query(ctx, func(q glsql.Querier) error {
		return q.QueryRowContext(ctx, "SHOW server_version_num").Scan(&serverVersion)
	}); err != nil {
		return 0, fmt.Errorf("get postgres server version: %w", err)
	}

	if serverVersion < MinimumServerVersion {
		return serverVersion, fmt.Errorf("postgres server version too old: %d", serverVersion)
	}

	return serverVersion, nil
}

// Setting returns the current value of a server configuration parameter.
func (e *Endpoint) Setting(ctx context.Context, name string) (string, error) {
	var value string
	if err := e.Query(ctx, func(q glsql.Querier) error {
		return q.QueryRowContext(ctx, "SELECT current_setting($1)", name).Scan(&value)
	}); err != nil {
		return "", fmt.Errorf("read setting %q on %s: %w", name, e.name, err)
	}

	return value, nil
}

// conninfoPasswordRegexp matches a password of a conninfo string embedded in a
// SQL literal. glsql.DSN escapes the value with backslashes and pq.QuoteLiteral
// then doubles every backslash and quote, so an escaped character shows up as
// \\x, \\\\ or \\''.
var conninfoPasswordRegexp = regexp.MustCompile(`password=(?:\\\\(?:''|\\\\|[^\\'])|[^\s'\\])*`)

// redactConninfo hides passwords of connection strings embedded in statements.
func redactConninfo(query string) string {
	return conninfoPasswordRegexp.ReplaceAllString(query, "password=[FILTERED]")
}
