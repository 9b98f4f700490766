package engine

import (
	"errors"
	"fmt"
)

// RunError aborts a whole run: the scratch root is unusable or the machine
// ran out of disk, quota or file descriptors. It is returned instead of a
// report; per-fragment problems never produce one.
type RunError struct {
	Op  string
	Err error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("validation run aborted: %s: %v", e.Op, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// IsRunError reports whether err carries a *RunError.
func IsRunError(err error) bool {
	var re *RunError
	return errors.As(err, &re)
}

// exhausted reports whether err means the host cannot take more work.
func exhausted(err error) bool {
	for _, e := range exhaustionErrors {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
