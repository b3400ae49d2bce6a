package params

import (
	"errors"
	"fmt"
)

// ErrData is matched by every DataError.
var ErrData = errors.New("data error")

// DataError reports malformed or inconsistent input parameters. It is fatal
// for a run and never corrected silently.
type DataError struct {
	Field  string
	Reason string
}

func (e *DataError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("data error: %s", e.Reason)
	}
	return fmt.Sprintf("data error: %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrData) true for any DataError.
func (e *DataError) Is(target error) bool { return target == ErrData }

func dataErrorf(field, format string, args ...any) *DataError {
	return &DataError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
