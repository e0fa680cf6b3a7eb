package permanent

import (
	"errors"
	"fmt"
	"net/http"
)

// Error wraps a failure that another attempt cannot fix, such as a rejected request
// or a sender that was never configured.
type Error struct {
	Err error
}

func (e Error) Error() string {
	if e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

func (e Error) Unwrap() error {
	return e.Err
}

// Permanent satisfies the marker interface checked by Is.
func (Error) Permanent() bool {
	return true
}

// Mark wraps err so retry loops stop on it. Mark(nil) is nil.
func Mark(err error) error {
	if err == nil {
		return nil
	}
	return Error{Err: err}
}

// marker is implemented by any error that can declare itself final.
type marker interface {
	Permanent() bool
}

// Is reports whether any error in the chain declares itself permanent.
// Params: candidate error.
// Returns: false for nil and for plain errors.
func Is(err error) bool {
	var tagged marker
	return errors.As(err, &tagged) && tagged.Permanent()
}

// StatusError is a non-2xx HTTP response from a remote API.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

// FromStatus builds a status error and marks it permanent unless a retry could help.
// Retryable statuses are 408, 429, and every 5xx.
// Params: operation label, HTTP status, and truncated response body.
// Returns: status error, possibly wrapped with the permanent marker.
func FromStatus(op string, status int, body string) error {
	err := &StatusError{Op: op, Status: status, Body: body}
	if Retryable(status) {
		return err
	}
	return Mark(err)
}

// Retryable reports whether an HTTP status is worth another attempt.
func Retryable(status int) bool {
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500
}
