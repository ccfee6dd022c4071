package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a valid lookup that matched nothing.
	ErrNotFound = errors.New("nothing matched")
	// ErrProtocol is an unknown or stale button token, or an event the session cannot accept.
	ErrProtocol = errors.New("unexpected event for session")
)

// LookupError is a failure reaching the directory (transport or backend error).
type LookupError struct {
	Op  string
	Err error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("directory %s: %v", e.Op, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// DataError is a malformed value or a missing required field in a directory record.
// Key identifies the offending record key (a date, month key or advisor id).
type DataError struct {
	Key    string
	Reason string
	Err    error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bad data at %q: %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("bad data at %q: %s", e.Key, e.Reason)
}

func (e *DataError) Unwrap() error { return e.Err }

// Outcome names the class of err for logs and metrics.
func Outcome(err error) string {
	var lookupErr *LookupError
	var dataErr *DataError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &lookupErr):
		return "lookup_failure"
	case errors.As(err, &dataErr):
		return "data_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrProtocol):
		return "protocol_error"
	default:
		return "error"
	}
}
