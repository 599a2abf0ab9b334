package dualwrite

import (
	"errors"
	"fmt"
)

// Status is the outcome of a dual write.
type Status int

const (
	// StatusApplied means every enabled step committed.
	StatusApplied Status = iota
	// StatusDiverged means the primary committed and the replica did not. The
	// primary change stays in place.
	StatusDiverged
	// StatusFailed means the primary step failed and the replica was left alone.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusDiverged:
		return "diverged"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ErrDiverged matches errors of results where only the primary step committed.
var ErrDiverged = errors.New("primary and replica diverged")

// DivergedError is returned by Result.Err for StatusDiverged.
type DivergedError struct {
	Operation Operation
	Replica   string
	Err       error
}

// Error returns the errors message.
func (err DivergedError) Error() string {
	return fmt.Sprintf("%s on %s: %v", err.Operation, err.Replica, err.Err)
}

// Unwrap returns the error of the replica step.
func (err DivergedError) Unwrap() error { return err.Err }

// Is reports ErrDiverged as matching.
func (err DivergedError) Is(target error) bool { return target == ErrDiverged }

// Result reports how a dual write went on each endpoint.
type Result struct {
	Operation Operation
	Status    Status
	// Primary and Replica are the names of the endpoints.
	Primary, Replica string
	PrimaryErr       error
	ReplicaErr       error
	// ReplicaSkipped is set when replica writes are disabled.
	ReplicaSkipped bool
}

// Err returns nil when the result is StatusApplied.
func (r Result) Err() error {
	switch r.Status {
	case StatusApplied:
		return nil
	case StatusDiverged:
		return DivergedError{Operation: r.Operation, Replica: r.Replica, Err: r.ReplicaErr}
	default:
		return fmt.Errorf("%s on %s: %w", r.Operation, r.Primary, r.PrimaryErr)
	}
}

// String renders the result for the user.
func (r Result) String() string {
	switch r.Status {
	case StatusApplied:
		if r.ReplicaSkipped {
			return fmt.Sprintf("%s on %s. Writes to %s are disabled, the change is left to replication.", r.Operation.done(), r.Primary, r.Replica)
		}
		return fmt.Sprintf("%s on %s and %s.", r.Operation.done(), r.Primary, r.Replica)
	case StatusDiverged:
		return fmt.Sprintf("%s on %s, but failed on %s: %v. The change on %s was kept, %s and %s have diverged.",
			r.Operation.done(), r.Primary, r.Replica, r.ReplicaErr, r.Primary, r.Primary, r.Replica)
	default:
		return fmt.Sprintf("Error %s on %s: %v", r.Operation, r.Primary, r.PrimaryErr)
	}
}
