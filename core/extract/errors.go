package extract

import (
	"errors"
	"fmt"

	"github.com/kilianp07/fleetplan/core/solver"
)

// ErrExtraction is matched by every ExtractionError.
var ErrExtraction = errors.New("extraction error")

// ExtractionError reports a result that cannot be turned into a summary,
// typically because the solve produced no usable assignment.
type ExtractionError struct {
	Target float64
	Status solver.Status
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction (target %g, status %s): %s", e.Target, e.Status, e.Reason)
}

// Is makes errors.Is(err, ErrExtraction) true.
func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }
