package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTransport wraps failures that happened before a usable reply was decoded:
// connection errors, timeouts and malformed bodies.
var ErrTransport = errors.New("api: transport failure")

// Error is a non-OK reply from the service.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

// MessageOr returns the server message, or fallback when the server sent none.
func (e *Error) MessageOr(fallback string) string {
	if e == nil || e.Message == "" {
		return fallback
	}
	return e.Message
}

// AsError unwraps err into an *Error when it is one.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func transportError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransport, op, err)
}
