package roomsvc

import (
	"errors"
	"fmt"
)

// APIError is an authority rejection: the server understood the request and
// refused it with a verdict. Anything else (dial failure, timeout, bad
// envelope) is a transport failure and comes back as a plain wrapped error.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsRejection reports whether err carries a server verdict, as opposed to a
// transport-level failure with no verdict at all.
func IsRejection(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
