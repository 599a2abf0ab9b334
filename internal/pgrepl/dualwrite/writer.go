// Package dualwrite applies the same statement to the primary and to the replica.
//
// The two writes are independent transactions. The primary commits first and is
// never rolled back: when the replica step fails the endpoints diverge and the
// Result says so.
package dualwrite

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Target is an endpoint a statement is applied to.
type Target interface {
	Name() string
	// Exec runs query in its own transaction and commits it.
	Exec(ctx context.Context, query string, args ...interface{}) error
}

// Writer applies operations to the primary and then to the replica.
type Writer struct {
	primary, replica Target
	replicaWrites    bool
	logger           logrus.FieldLogger
}

// NewWriter returns a Writer. With replicaWrites unset row changes are written to
// the primary only and reach the replica through replication, if at all. Table
// DDL always goes to both endpoints since schema is not replicated.
func NewWriter(primary, replica Target, replicaWrites bool, logger logrus.FieldLogger) *Writer {
	return &Writer{
		primary:       primary,
		replica:       replica,
		replicaWrites: replicaWrites,
		logger:        logger,
	}
}

// Apply applies op on the primary and, once committed there, on the replica.
func (w *Writer) Apply(ctx context.Context, op Operation) Result {
	result := Result{Operation: op, Primary: w.primary.Name(), Replica: w.replica.Name()}

	logger := w.logger.WithFields(logrus.Fields{
		"operation": string(op.Kind),
		"table":     op.Table.String(),
	})

	query, args, err := op.Statement()
	if err != nil {
		result.Status = StatusFailed
		result.PrimaryErr = err
		logger.WithError(err).Error("invalid operation")
		return result
	}

	if err := w.primary.Exec(ctx, query, args...); err != nil {
		result.Status = StatusFailed
		result.PrimaryErr = err
		logger.WithError(err).WithField("status", result.Status.String()).Error("dual write failed on primary")
		return result
	}

	if !w.replicaWrites && op.Kind.Replicated() {
		result.Status = StatusApplied
		result.ReplicaSkipped = true
		logger.WithField("status", result.Status.String()).Info("dual write applied on primary, replica skipped")
		return result
	}

	if err := w.replica.Exec(ctx, query, args...); err != nil {
		result.Status = StatusDiverged
		result.ReplicaErr = err
		logger.WithError(err).WithField("status", result.Status.String()).Warn("dual write failed on replica")
		return result
	}

	result.Status = StatusApplied
	logger.WithField("status", result.Status.String()).Info("dual write applied")
	return result
}
