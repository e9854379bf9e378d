package composition

import (
	"errors"
	"fmt"
)

// ErrWorkspaceMismatch is returned by the executor when a plan references a
// collection that does not belong to the executing workspace. Compilation
// already prevents this; the executor re-checks against live data in case
// the plan was built from a stale schema snapshot.
var ErrWorkspaceMismatch = errors.New("plan references a collection outside the workspace")

// ParamError reports a required named parameter that was missing or
// malformed at execution time. It is a caller fault (400-class), distinct
// from a compile error.
type ParamError struct {
	Param   string
	Message string
}

// Error implements the error interface.
func (e *ParamError) Error() string {
	return fmt.Sprintf("param %q: %s", e.Param, e.Message)
}
