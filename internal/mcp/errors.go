package mcp

import (
	"errors"
	"fmt"
	"time"
)

// ConnectionError reports that the worker could not be spawned or the
// handshake did not complete. It is retried by the reconnection protocol and
// surfaced only once attempts are exhausted.
type ConnectionError struct {
	Message string
	Cause   error
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// ProtocolError reports a malformed or undecodable message. It is never
// retried; the affected request fails.
type ProtocolError struct {
	Message string
	Cause   error
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Message, e.Cause)
	}
	return "protocol error: " + e.Message
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

// NotConnectedError reports a call attempted while the connection is not
// Ready. Callers must fail fast rather than queue.
type NotConnectedError struct {
	State State
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("worker not connected (state: %s)", e.State)
}

// ToolNotFoundError reports a call to a tool, resource or prompt the worker
// does not advertise.
type ToolNotFoundError struct {
	Kind string // "tool", "resource" or "prompt"
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("unknown %s: %s", e.Kind, e.Name)
}

// TimeoutError reports a round trip that expired before the worker answered.
// A slow worker is not necessarily a dead one, so the connection state is
// left untouched.
type TimeoutError struct {
	Method string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Method, e.After)
}

// IsNotConnected reports whether err is a fail-fast NotConnectedError.
func IsNotConnected(err error) bool {
	var nc *NotConnectedError
	return errors.As(err, &nc)
}

// IsTimeout reports whether err is a round-trip expiry.
func IsTimeout(err error) bool {
	var to *TimeoutError
	return errors.As(err, &to)
}
