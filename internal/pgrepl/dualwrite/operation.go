package dualwrite

import (
	"fmt"

	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/datastore"
)

// Kind is the kind of change an Operation makes.
type Kind string

const (
	// KindCreateTable creates a table of the (id, data) shape.
	KindCreateTable = Kind("create_table")
	// KindInsertRow inserts a row with a text payload.
	KindInsertRow = Kind("insert_row")
	// KindDeleteRow deletes a row by id.
	KindDeleteRow = Kind("delete_row")
	// KindDropTable drops a table.
	KindDropTable = Kind("drop_table")
)

// Replicated reports whether logical replication carries changes of this kind.
// Row changes are replicated, table DDL is not.
func (k Kind) Replicated() bool {
	return k == KindInsertRow || k == KindDeleteRow
}

// Operation is a single statement applied to both endpoints.
type Operation struct {
	Kind  Kind
	Table datastore.Table
	// Data is the payload of KindInsertRow.
	Data string
	// ID is the row id of KindDeleteRow.
	ID int64
}

// CreateTable returns an operation creating table.
func CreateTable(table datastore.Table) Operation {
	return Operation{Kind: KindCreateTable, Table: table}
}

// InsertRow returns an operation inserting a row with data into table.
func InsertRow(table datastore.Table, data string) Operation {
	return Operation{Kind: KindInsertRow, Table: table, Data: data}
}

// DeleteRow returns an operation deleting the row with id from table.
func DeleteRow(table datastore.Table, id int64) Operation {
	return Operation{Kind: KindDeleteRow, Table: table, ID: id}
}

// DropTable returns an operation dropping table.
func DropTable(table datastore.Table) Operation {
	return Operation{Kind: KindDropTable, Table: table}
}

// Statement renders the SQL statement and its arguments.
func (op Operation) Statement() (string, []interface{}, error) {
	switch op.Kind {
	case KindCreateTable:
		return "CREATE TABLE IF NOT EXISTS " + op.Table.Quoted() + " (id SERIAL PRIMARY KEY, data TEXT)", nil, nil
	case KindInsertRow:
		return "INSERT INTO " + op.Table.Quoted() + " (data) VALUES ($1)", []interface{}{op.Data}, nil
	case KindDeleteRow:
		return "DELETE FROM " + op.Table.Quoted() + " WHERE id = $1", []interface{}{op.ID}, nil
	case KindDropTable:
		return "DROP TABLE IF EXISTS " + op.Table.Quoted(), nil, nil
	default:
		return "", nil, fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

// done describes the operation once it has been applied.
func (op Operation) done() string {
	switch op.Kind {
	case KindCreateTable:
		return fmt.Sprintf("Table '%s' created", op.Table)
	case KindInsertRow:
		return fmt.Sprintf("Row with data '%s' added to '%s'", op.Data, op.Table)
	case KindDeleteRow:
		return fmt.Sprintf("Row with ID %d deleted from '%s'", op.ID, op.Table)
	case KindDropTable:
		return fmt.Sprintf("Table '%s' dropped", op.Table)
	default:
		return fmt.Sprintf("Operation %q applied", op.Kind)
	}
}

// String describes the operation in progress, e.g. "creating table 'orders'".
func (op Operation) String() string {
	switch op.Kind {
	case KindCreateTable:
		return fmt.Sprintf("creating table '%s'", op.Table)
	case KindInsertRow:
		return fmt.Sprintf("adding row to '%s'", op.Table)
	case KindDeleteRow:
		return fmt.Sprintf("deleting row %d from '%s'", op.ID, op.Table)
	case KindDropTable:
		return fmt.Sprintf("dropping table '%s'", op.Table)
	default:
		return fmt.Sprintf("applying %q", op.Kind)
	}
}
