package detect

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned when the submitted frame is empty or unusable.
var ErrInvalidInput = errors.New("detection input is empty or corrupt")

// ErrTimeout is returned when the backend does not respond within the
// caller's timeout budget.
var ErrTimeout = errors.New("detection request timed out")

// BackendError reports a non-2xx response or a malformed payload from the
// detection backend.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("detection backend returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("detection backend error: %s", e.Message)
}
