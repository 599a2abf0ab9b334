package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/datastore"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/replication"
	"gitlab.com/pgrepl/pgrepl/internal/testhelper"
)

func TestMain(m *testing.M) {
	testhelper.Run(m)
}

// scriptedReader replays answers. An answer of "^C" simulates an interrupt.
type scriptedReader struct {
	answers []string
	prompts []string
}

func (r *scriptedReader) ReadLine(prompt string) (string, error) {
	r.prompts = append(r.prompts, prompt)
	if len(r.answers) == 0 {
		return "", io.EOF
	}

	answer := r.answers[0]
	r.answers = r.answers[1:]
	if answer == "^C" {
		return "", ErrInterrupt
	}
	return answer, nil
}

func (r *scriptedReader) Close() error { return nil }

type fakeManager struct {
	calls  []string
	tables pgrepl.Tables
	rows   pgrepl.Rows
	status replication.Status
	err    error
}

func (f *fakeManager) CreateTable(_ context.Context, table string) pgrepl.Report {
	f.calls = append(f.calls, "create "+table)
	return pgrepl.Report{Message: "created " + table}
}

func (f *fakeManager) AddRow(_ context.Context, table, data string) pgrepl.Report {
	f.calls = append(f.calls, "add "+table+" "+data)
	return pgrepl.Report{Message: "added to " + table}
}

func (f *fakeManager) DeleteRow(_ context.Context, table string, id int64) pgrepl.Report {
	f.calls = append(f.calls, "delete "+table)
	return pgrepl.Report{Message: "deleted from " + table, Err: f.err}
}

func (f *fakeManager) DropTable(_ context.Context, table string) pgrepl.Report {
	f.calls = append(f.calls, "drop "+table)
	return pgrepl.Report{Message: "dropped " + table}
}

func (f *fakeManager) ListTables(context.Context) (pgrepl.Tables, error) {
	f.calls = append(f.calls, "list")
	return f.tables, f.err
}

func (f *fakeManager) ShowRows(_ context.Context, table string) (pgrepl.Rows, error) {
	f.calls = append(f.calls, "show "+table)
	return f.rows, nil
}

func (f *fakeManager) ReplicationStatus(context.Context) (replication.Status, error) {
	f.calls = append(f.calls, "status")
	return f.status, f.err
}

func runMenu(t *testing.T, manager *fakeManager, answers ...string) (string, *scriptedReader) {
	t.Helper()

	reader := &scriptedReader{answers: answers}
	var out bytes.Buffer

	ctx, cancel := testhelper.Context()
	defer cancel()

	require.NoError(t, NewMenu(manager, reader, &out, testhelper.NewDiscardingLogEntry(t)).Run(ctx))
	return out.String(), reader
}

func TestMenu_Run(t *testing.T) {
	data := "test data"

	for _, tc := range []struct {
		desc     string
		answers  []string
		manager  *fakeManager
		calls    []string
		contains []string
	}{
		{
			desc:     "exit",
			answers:  []string{"6"},
			contains: []string{"1. Add a new table\n", "6. Exit\n", "8. Replication status\n", "Exiting...\n"},
		},
		{
			desc:     "end of input exits",
			contains: []string{"Exiting...\n"},
		},
		{
			desc:     "invalid choice",
			answers:  []string{"9", "", "exit", "6"},
			contains: []string{"Invalid choice, please try again.\n"},
		},
		{
			desc:     "create table",
			answers:  []string{"1", " orders ", "6"},
			calls:    []string{"create orders"},
			contains: []string{"created orders\n"},
		},
		{
			desc:    "add row keeps the payload verbatim",
			answers: []string{"2", "orders", " test data ", "6"},
			calls:   []string{"add orders  test data "},
		},
		{
			desc:     "show data",
			answers:  []string{"3", "6"},
			manager:  &fakeManager{tables: pgrepl.Tables{Primary: []string{"customers", "orders"}}},
			calls:    []string{"list"},
			contains: []string{"Tables on primary: customers, orders\n", "Tables on replica: (none)\n"},
		},
		{
			desc:     "drop table",
			answers:  []string{"4", "orders", "6"},
			calls:    []string{"drop orders"},
			contains: []string{"dropped orders\n"},
		},
		{
			desc:    "view table lists the tables first",
			answers: []string{"5", "orders", "6"},
			manager: &fakeManager{
				tables: pgrepl.Tables{Primary: []string{"orders"}, Replica: []string{"orders"}},
				rows: pgrepl.Rows{
					Table:      "orders",
					Primary:    []datastore.Row{{ID: 1, Data: &data}},
					ReplicaErr: errors.New(`relation "orders" does not exist`),
				},
			},
			calls: []string{"list", "show orders"},
			contains: []string{
				"Data in 'orders' on primary:\n",
				"test data",
				`Error showing rows of 'orders' on replica: relation "orders" does not exist`,
			},
		},
		{
			desc:     "delete row",
			answers:  []string{"7", "orders", "3", "6"},
			calls:    []string{"delete orders"},
			contains: []string{"deleted from orders\n"},
		},
		{
			desc:     "delete row with an invalid id",
			answers:  []string{"7", "orders", "three", "6"},
			contains: []string{`Invalid row ID "three", expected a number.`},
		},
		{
			desc:     "failed operation keeps the menu going",
			answers:  []string{"7", "orders", "3", "3", "6"},
			manager:  &fakeManager{err: errors.New("connection refused")},
			calls:    []string{"delete orders", "list"},
			contains: []string{"deleted from orders\n", "Error showing data: connection refused\n", "Exiting...\n"},
		},
		{
			desc:    "replication status",
			answers: []string{"8", "6"},
			manager: &fakeManager{status: replication.Status{
				State:        replication.StateActive,
				Publication:  "master_pub",
				Subscription: "slave_sub",
			}},
			calls:    []string{"status"},
			contains: []string{"active", "master_pub", "slave_sub"},
		},
		{
			desc:    "interrupt aborts the current operation",
			answers: []string{"1", "^C", "^C", "6"},
		},
		{
			desc:     "end of input while asking exits",
			answers:  []string{"2", "orders"},
			contains: []string{"Exiting...\n"},
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			manager := tc.manager
			if manager == nil {
				manager = &fakeManager{}
			}

			out, _ := runMenu(t, manager, tc.answers...)

			require.Equal(t, tc.calls, manager.calls)
			for _, expected := range tc.contains {
				require.Contains(t, out, expected)
			}
		})
	}
}

func TestMenu_Run_prompts(t *testing.T) {
	_, reader := runMenu(t, &fakeManager{}, "2", "orders", "data", "6")
	require.Equal(t, []string{
		"Enter your choice: ",
		"Enter the table name to add a row to: ",
		"Enter the data to insert: ",
		"Enter your choice: ",
	}, reader.prompts)
}

func TestMenu_Run_cancelled(t *testing.T) {
	reader := &scriptedReader{answers: []string{"3", "3"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewMenu(&fakeManager{}, reader, io.Discard, testhelper.NewDiscardingLogEntry(t)).Run(ctx)
	require.Equal(t, context.Canceled, err)
}

func TestPlainReader(t *testing.T) {
	var prompts bytes.Buffer
	reader := NewPlainReader(strings.NewReader("1\r\norders\nlast"), &prompts)

	for _, expected := range []string{"1", "orders", "last"} {
		line, err := reader.ReadLine("> ")
		require.NoError(t, err)
		require.Equal(t, expected, line)
	}

	_, err := reader.ReadLine("> ")
	require.Equal(t, io.EOF, err)
	require.Equal(t, "> > > > ", prompts.String())
	require.NoError(t, reader.Close())
}
