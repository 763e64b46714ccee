package models

import (
	"errors"
	"fmt"
)

// ErrNoMatch signals a lookup that completed but found nothing.
var ErrNoMatch = errors.New("no match found")

// ServiceError is an explicit error payload from a reachable service.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

// TransportError wraps a failure to reach or read a remote service.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// GenericFailureMessage is rendered when a service gave us nothing
// better to show.
const GenericFailureMessage = "service unavailable, please try again later"

// FailureMessage converts a remote-call error into the line the panel
// renders. The service's own message wins when there is one.
func FailureMessage(err error) string {
	var se *ServiceError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return GenericFailureMessage
}
