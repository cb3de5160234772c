package respond

import (
	"errors"
	"fmt"
)

// InProgressError is returned when a response-producing call is made
// while another one is already pending or sent. The first operation is
// unaffected.
type InProgressError struct {
	// Attempted is the operation that was rejected.
	Attempted string
	// Active is the operation that already holds the response.
	Active string
}

func (e *InProgressError) Error() string {
	return fmt.Sprintf("cannot %s: another response method (%s) is already in progress", e.Attempted, e.Active)
}

// IsInProgress reports whether err is a response-race rejection.
func IsInProgress(err error) bool {
	var e *InProgressError
	return errors.As(err, &e)
}
