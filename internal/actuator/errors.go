package actuator

import (
	"errors"
	"fmt"
)

// ErrActuatorUnavailable means no actuator address has been registered yet.
var ErrActuatorUnavailable = errors.New("actuator address not available")

// RejectedError is returned when the actuator answers with a non-200 status.
type RejectedError struct {
	Op         string
	StatusCode int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("pump %s rejected by actuator - HTTP %d", e.Op, e.StatusCode)
}

// UnreachableError wraps transport failures and timeouts.
type UnreachableError struct {
	Op  string
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("pump %s: actuator unreachable: %v", e.Op, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

const (
	KindOK          = "ok"
	KindUnavailable = "unavailable"
	KindRejected    = "rejected"
	KindUnreachable = "unreachable"
	KindError       = "error"
)

// Kind classifies an error returned by the pump controller.
func Kind(err error) string {
	var rejected *RejectedError
	var unreachable *UnreachableError
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrActuatorUnavailable):
		return KindUnavailable
	case errors.As(err, &rejected):
		return KindRejected
	case errors.As(err, &unreachable):
		return KindUnreachable
	default:
		return KindError
	}
}
