package console

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/datastore"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/replication"
)

// RenderTables writes the table names of both endpoints.
func RenderTables(w io.Writer, tables pgrepl.Tables) {
	fmt.Fprintf(w, "Tables on primary: %s\n", tableNames(tables.Primary))
	fmt.Fprintf(w, "Tables on replica: %s\n", tableNames(tables.Replica))
}

// renderRows writes the rows of a table on both endpoints.
func renderRows(w io.Writer, rows pgrepl.Rows) {
	for _, endpoint := range []struct {
		name string
		rows []datastore.Row
		err  error
	}{
		{name: "primary", rows: rows.Primary, err: rows.PrimaryErr},
		{name: "replica", rows: rows.Replica, err: rows.ReplicaErr},
	} {
		if endpoint.err != nil {
			fmt.Fprintf(w, "Error showing rows of '%s' on %s: %v\n", rows.Table, endpoint.name, endpoint.err)
			continue
		}

		fmt.Fprintf(w, "Data in '%s' on %s:\n", rows.Table, endpoint.name)
		RowTable(w, endpoint.rows).Render()
	}
}

// RowTable returns a table of rows ready to be rendered to w.
func RowTable(w io.Writer, rows []datastore.Row) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Data"})
	for _, row := range rows {
		table.Append([]string{strconv.FormatInt(row.ID, 10), row.DataString()})
	}
	return table
}

// StatusTable returns the replication status as a table ready to be rendered to w.
func StatusTable(w io.Writer, status replication.Status) *tablewriter.Table {
	lastMessage := "never"
	if status.LastMessage != nil {
		lastMessage = status.LastMessage.Format(time.RFC3339)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Property", "Value"})
	table.AppendBulk([][]string{
		{"State", string(status.State)},
		{"Publication", status.Publication},
		{"Publication exists", strconv.FormatBool(status.PublicationExists)},
		{"For all tables", strconv.FormatBool(status.AllTables)},
		{"Subscription", status.Subscription},
		{"Subscription exists", strconv.FormatBool(status.SubscriptionExists)},
		{"Subscription enabled", strconv.FormatBool(status.SubscriptionEnabled)},
		{"Worker running", strconv.FormatBool(status.WorkerRunning)},
		{"Tables ready", fmt.Sprintf("%d/%d", status.TablesReady, status.TablesTotal)},
		{"Last message", lastMessage},
	})
	return table
}

func renderStatus(w io.Writer, status replication.Status) {
	StatusTable(w, status).Render()
}
