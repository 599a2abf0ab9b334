// Package console implements the interactive menu of the tool.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/replication"
)

const (
	promptChoice = "Enter your choice: "

	invalidChoiceMessage = "Invalid choice, please try again."
	exitMessage          = "Exiting..."
)

// Manager runs the operations offered in the menu.
type Manager interface {
	CreateTable(ctx context.Context, tableName string) pgrepl.Report
	AddRow(ctx context.Context, tableName, data string) pgrepl.Report
	DeleteRow(ctx context.Context, tableName string, id int64) pgrepl.Report
	DropTable(ctx context.Context, tableName string) pgrepl.Report
	ListTables(ctx context.Context) (pgrepl.Tables, error)
	ShowRows(ctx context.Context, tableName string) (pgrepl.Rows, error)
	ReplicationStatus(ctx context.Context) (replication.Status, error)
}

type menuItem struct {
	choice string
	label  string
	run    func(m *Menu, ctx context.Context) error
}

var menuItems = []menuItem{
	{choice: "1", label: "Add a new table", run: (*Menu).createTable},
	{choice: "2", label: "Add a row to a table", run: (*Menu).addRow},
	{choice: "3", label: "Show data in both master and slave", run: (*Menu).showTables},
	{choice: "4", label: "Drop a table", run: (*Menu).dropTable},
	{choice: "5", label: "View table content", run: (*Menu).viewTable},
	{choice: "6", label: "Exit"},
	{choice: "7", label: "Delete a row from a table", run: (*Menu).deleteRow},
	{choice: "8", label: "Replication status", run: (*Menu).replicationStatus},
}

const exitChoice = "6"

// Menu is the numbered console menu. It runs one operation at a time and keeps
// going after failed operations.
type Menu struct {
	manager Manager
	reader  LineReader
	out     io.Writer
	logger  logrus.FieldLogger
}

// NewMenu returns a Menu reading user input from reader and printing to out.
func NewMenu(manager Manager, reader LineReader, out io.Writer, logger logrus.FieldLogger) *Menu {
	return &Menu{manager: manager, reader: reader, out: out, logger: logger}
}

// Run shows the menu until the user exits, the input ends or ctx is cancelled.
func (m *Menu) Run(ctx context.Context) error {
	for {
		m.printMenu()

		choice, err := m.reader.ReadLine(promptChoice)
		switch {
		case errors.Is(err, ErrInterrupt):
			continue
		case errors.Is(err, io.EOF):
			m.println(exitMessage)
			return nil
		case err != nil:
			return fmt.Errorf("read choice: %w", err)
		}

		choice = strings.TrimSpace(choice)
		if choice == exitChoice {
			m.println(exitMessage)
			return nil
		}

		item, ok := lookupMenuItem(choice)
		if !ok {
			m.println(invalidChoiceMessage)
			continue
		}

		if err := item.run(m, ctx); err != nil {
			if errors.Is(err, io.EOF) {
				m.println(exitMessage)
				return nil
			}
			if !errors.Is(err, ErrInterrupt) {
				return err
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func lookupMenuItem(choice string) (menuItem, bool) {
	for _, item := range menuItems {
		if item.choice == choice && item.run != nil {
			return item, true
		}
	}
	return menuItem{}, false
}

func (m *Menu) printMenu() {
	m.println("")
	for _, item := range menuItems {
		m.printf("%s. %s\n", item.choice, item.label)
	}
}

func (m *Menu) printf(format string, a ...interface{}) {
	fmt.Fprintf(m.out, format, a...)
}

func (m *Menu) println(line string) {
	fmt.Fprintln(m.out, line)
}

// ask reads an answer to prompt. Errors end the current operation.
func (m *Menu) ask(prompt string) (string, error) {
	answer, err := m.reader.ReadLine(prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func (m *Menu) report(report pgrepl.Report) {
	m.println(report.Message)
	if report.Err != nil {
		m.logger.WithError(report.Err).Debug("operation failed")
	}
}

func (m *Menu) createTable(ctx context.Context) error {
	table, err := m.ask("Enter the table name to create: ")
	if err != nil {
		return err
	}

	m.report(m.manager.CreateTable(ctx, table))
	return nil
}

func (m *Menu) addRow(ctx context.Context) error {
	table, err := m.ask("Enter the table name to add a row to: ")
	if err != nil {
		return err
	}

	// The payload is taken verbatim, surrounding whitespace included.
	data, err := m.reader.ReadLine("Enter the data to insert: ")
	if err != nil {
		return err
	}

	m.report(m.manager.AddRow(ctx, table, data))
	return nil
}

func (m *Menu) deleteRow(ctx context.Context) error {
	table, err := m.ask("Enter the table name to delete a row from: ")
	if err != nil {
		return err
	}

	rawID, err := m.ask("Enter the row ID to delete: ")
	if err != nil {
		return err
	}

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		m.printf("Invalid row ID %q, expected a number.\n", rawID)
		return nil
	}

	m.report(m.manager.DeleteRow(ctx, table, id))
	return nil
}

func (m *Menu) dropTable(ctx context.Context) error {
	table, err := m.ask("Enter the table name to drop: ")
	if err != nil {
		return err
	}

	m.report(m.manager.DropTable(ctx, table))
	return nil
}

func (m *Menu) showTables(ctx context.Context) error {
	tables, err := m.manager.ListTables(ctx)
	if err != nil {
		m.printf("Error showing data: %v\n", err)
		return nil
	}

	RenderTables(m.out, tables)
	return nil
}

func (m *Menu) viewTable(ctx context.Context) error {
	if err := m.showTables(ctx); err != nil {
		return err
	}

	table, err := m.ask("Enter the table name to view its content: ")
	if err != nil {
		return err
	}

	rows, err := m.manager.ShowRows(ctx, table)
	if err != nil {
		m.printf("Error showing rows: %v\n", err)
		return nil
	}

	renderRows(m.out, rows)
	return nil
}

func (m *Menu) replicationStatus(ctx context.Context) error {
	status, err := m.manager.ReplicationStatus(ctx)
	if err != nil {
		m.printf("Error reading replication status: %v\n", err)
		return nil
	}

	renderStatus(m.out, status)
	return nil
}

// tableNames renders names for a single line.
func tableNames(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
