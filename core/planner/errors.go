package planner

import (
	"errors"
	"fmt"
)

// ErrModelConstruction is matched by every ModelConstructionError.
var ErrModelConstruction = errors.New("model construction error")

// ModelConstructionError reports an invalid build request such as a target
// outside (0,1].
type ModelConstructionError struct {
	Target float64
	Reason string
}

func (e *ModelConstructionError) Error() string {
	return fmt.Sprintf("model construction (target %g): %s", e.Target, e.Reason)
}

// Is makes errors.Is(err, ErrModelConstruction) true.
func (e *ModelConstructionError) Is(target error) bool { return target == ErrModelConstruction }

// ValidateTarget checks that target lies in (0,1].
func ValidateTarget(target float64) error {
	if !(target > 0 && target <= 1) {
		return &ModelConstructionError{Target: target, Reason: "target must lie in (0,1]"}
	}
	return nil
}
