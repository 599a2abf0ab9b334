// Package pgrepl ties the dual writer and the replication channel together into
// the operations offered by the console menu and the web form.
package pgrepl

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/config"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/datastore"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/dualwrite"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/replication"
	"golang.org/x/sync/errgroup"
)

// TestData is the payload TestReplication writes.
const TestData = "test data"

// ReplicationSetupMessage reports a successful Replication-Channel Setup.
const ReplicationSetupMessage = "Replication setup completed successfully"

type endpoint interface {
	Name() string
	Exec(ctx context.Context, query string, args ...interface{}) error
	ListTables(ctx context.Context) ([]string, error)
	ListRows(ctx context.Context, table datastore.Table) ([]datastore.Row, error)
	RowExists(ctx context.Context, table datastore.Table, id int64) (bool, error)
	InsertReturningID(ctx context.Context, table datastore.Table, data string) (int64, error)
}

type writer interface {
	Apply(ctx context.Context, op dualwrite.Operation) dualwrite.Result
}

type channel interface {
	Setup(ctx context.Context) error
	Status(ctx context.Context) (replication.Status, error)
	WaitForRow(ctx context.Context, replica replication.RowChecker, table datastore.Table, id int64) error
}

// Report is the outcome of a write operation. Message is meant for the user and
// is set whether or not the operation failed.
type Report struct {
	Message string
	Err     error
}

func (r Report) String() string { return r.Message }

// Tables lists the tables of both endpoints.
type Tables struct {
	Primary, Replica []string
}

// Rows holds the content of a table on both endpoints.
type Rows struct {
	Table            datastore.Table
	Primary, Replica []datastore.Row
	// PrimaryErr and ReplicaErr are set when the table couldn't be read on the
	// endpoint, typically because it doesn't exist there.
	PrimaryErr, ReplicaErr error
}

// ReplicationTest is the outcome of TestReplication.
type ReplicationTest struct {
	Table datastore.Table
	// Replica holds the rows of the table on the replica once the test row arrived.
	Replica []datastore.Row
	Tables  Tables
}

// Manager runs the operations of the tool against the primary and the replica.
type Manager struct {
	primary, replica endpoint
	writer           writer
	channel          channel
	logger           logrus.FieldLogger
}

// NewManager returns a Manager for the endpoints in conf.
func NewManager(conf config.Config, logger logrus.FieldLogger) *Manager {
	connectTimeout := conf.ConnectTimeout.Duration()
	primary := datastore.NewEndpoint("primary", conf.Primary, connectTimeout, logger)
	replica := datastore.NewEndpoint("replica", conf.Replica, connectTimeout, logger)

	return &Manager{
		primary: primary,
		replica: replica,
		writer:  dualwrite.NewWriter(primary, replica, conf.DualWrite.ReplicaWrites, logger),
		channel: replication.NewChannel(primary, replica, conf.Replication, logger),
		logger:  logger,
	}
}

func (m *Manager) apply(ctx context.Context, tableName string, newOp func(datastore.Table) dualwrite.Operation) (dualwrite.Result, Report) {
	table, err := datastore.ParseTable(tableName)
	if err != nil {
		return dualwrite.Result{Status: dualwrite.StatusFailed}, Report{Message: fmt.Sprintf("Invalid table name: %v", err), Err: err}
	}

	result := m.writer.Apply(ctx, newOp(table))
	return result, Report{Message: result.String(), Err: result.Err()}
}

// CreateTable creates the table on both endpoints and then sets the replication
// channel up again. The setup is skipped when the primary failed.
func (m *Manager) CreateTable(ctx context.Context, tableName string) Report {
	result, report := m.apply(ctx, tableName, dualwrite.CreateTable)
	if result.Status == dualwrite.StatusFailed {
		return report
	}

	setup := m.SetupReplication(ctx)
	report.Message += "\n" + setup.Message
	if report.Err == nil {
		report.Err = setup.Err
	}

	return report
}

// AddRow inserts a row with data into the table on both endpoints.
func (m *Manager) AddRow(ctx context.Context, tableName, data string) Report {
	_, report := m.apply(ctx, tableName, func(table datastore.Table) dualwrite.Operation {
		return dualwrite.InsertRow(table, data)
	})
	return report
}

// DeleteRow deletes the row with id from the table on both endpoints.
func (m *Manager) DeleteRow(ctx context.Context, tableName string, id int64) Report {
	_, report := m.apply(ctx, tableName, func(table datastore.Table) dualwrite.Operation {
		return dualwrite.DeleteRow(table, id)
	})
	return report
}

// DropTable drops the table on both endpoints.
func (m *Manager) DropTable(ctx context.Context, tableName string) Report {
	_, report := m.apply(ctx, tableName, dualwrite.DropTable)
	return report
}

// SetupReplication recreates the publication and the subscription.
func (m *Manager) SetupReplication(ctx context.Context) Report {
	if err := m.channel.Setup(ctx); err != nil {
		return Report{Message: fmt.Sprintf("Error setting up replication: %v", err), Err: err}
	}
	return Report{Message: ReplicationSetupMessage}
}

// ReplicationStatus reports the state of the replication channel.
func (m *Manager) ReplicationStatus(ctx context.Context) (replication.Status, error) {
	return m.channel.Status(ctx)
}

// ListTables reads the tables of both endpoints concurrently.
func (m *Manager) ListTables(ctx context.Context) (Tables, error) {
	var tables Tables

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() (err error) {
		tables.Primary, err = m.primary.ListTables(ctx)
		return err
	})
	group.Go(func() (err error) {
		tables.Replica, err = m.replica.ListTables(ctx)
		return err
	})

	if err := group.Wait(); err != nil {
		return Tables{}, err
	}

	return tables, nil
}

// ShowRows reads the rows of the table from both endpoints concurrently. Failing
// to read one endpoint doesn't prevent showing the other.
func (m *Manager) ShowRows(ctx context.Context, tableName string) (Rows, error) {
	table, err := datastore.ParseTable(tableName)
	if err != nil {
		return Rows{}, err
	}

	rows := Rows{Table: table}

	var group errgroup.Group
	group.Go(func() error {
		rows.Primary, rows.PrimaryErr = m.primary.ListRows(ctx, table)
		return nil
	})
	group.Go(func() error {
		rows.Replica, rows.ReplicaErr = m.replica.ListRows(ctx, table)
		return nil
	})
	_ = group.Wait()

	return rows, nil
}

// TestReplication makes sure the table exists on the primary, writes a row to
// the primary only and waits for replication to deliver it to the replica. It
// returns the rows of the table on the replica and the tables of both endpoints.
func (m *Manager) TestReplication(ctx context.Context, tableName string) (ReplicationTest, error) {
	table, err := datastore.ParseTable(tableName)
	if err != nil {
		return ReplicationTest{}, err
	}

	query, args, err := dualwrite.CreateTable(table).Statement()
	if err != nil {
		return ReplicationTest{}, err
	}
	if err := m.primary.Exec(ctx, query, args...); err != nil {
		return ReplicationTest{}, err
	}

	id, err := m.primary.InsertReturningID(ctx, table, TestData)
	if err != nil {
		return ReplicationTest{}, err
	}

	logger := m.logger.WithFields(logrus.Fields{"table": table.String(), "id": id})
	logger.Info("waiting for test row on replica")

	if err := m.channel.WaitForRow(ctx, m.replica, table, id); err != nil {
		return ReplicationTest{}, err
	}

	logger.Info("test row replicated")

	rows, err := m.replica.ListRows(ctx, table)
	if err != nil {
		return ReplicationTest{}, err
	}

	tables, err := m.ListTables(ctx)
	if err != nil {
		return ReplicationTest{}, err
	}

	return ReplicationTest{Table: table, Replica: rows, Tables: tables}, nil
}
