package access

import (
	"errors"
	"fmt"
)

// Decision is the outcome of a read-access evaluation.
type Decision int

const (
	Denied Decision = iota
	Granted
)

func (d Decision) String() string {
	if d == Granted {
		return "granted"
	}
	return "denied"
}

var (
	// ErrForbidden means the actor lacks authority for the operation. It is
	// surfaced verbatim and never retried.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is reported when a referenced entity is absent. Kept
	// distinct from ErrForbidden so denial and existence are never conflated.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a write would violate a structural invariant, such
	// as deleting a column that still holds tasks.
	ErrConflict = errors.New("conflict")
)

// ConfigError reports a routing destination that cannot be resolved. It is
// an operator problem, not a permission problem, and is therefore a
// separate type rather than a sentinel.
type ConfigError struct {
	RoutingKey string
	Reason     string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("routing %q misconfigured: %s", e.RoutingKey, e.Reason)
}
