package datastore

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"
)

// HeartbeatTable is the table used to probe the replication channel. It is
// created and written by the tool itself and hidden from table listings.
const HeartbeatTable = "pgrepl_heartbeats"

// maxIdentifierLength is NAMEDATALEN-1 of a stock PostgreSQL build.
const maxIdentifierLength = 63

// ErrInvalidTableName is returned for table names which are not plain SQL identifiers.
var ErrInvalidTableName = errors.New("table name must start with a letter or underscore and contain only letters, digits, underscores and dollar signs")

var tableNameRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// Table is the name of a user table. It is only created through ParseTable and
// is therefore always safe to render with Quoted.
type Table string

// ParseTable validates user input as a table name. The name is folded to lower
// case, which is what PostgreSQL does with unquoted identifiers, so that "Orders"
// and "orders" address the same table as they would in psql.
func ParseTable(name string) (Table, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxIdentifierLength || !tableNameRegexp.MatchString(name) {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidTableName)
	}

	return Table(strings.ToLower(name)), nil
}

// String returns the bare table name.
func (t Table) String() string { return string(t) }

// Quoted returns the name as a quoted SQL identifier.
func (t Table) Quoted() string { return pq.QuoteIdentifier(string(t)) }

// Row is a row of a table created by the tool.
type Row struct {
	ID int64
	// Data is nil when the column is NULL.
	Data *string
}

// DataString renders Data, showing NULL as "NULL".
func (r Row) DataString() string {
	if r.Data == nil {
		return "NULL"
	}
	return *r.Data
}
