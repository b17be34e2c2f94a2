// Package errs defines the error taxonomy shared by configuration loading,
// the SFTP session and the tool dispatcher.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind string

const (
	// KindConfiguration means a required setting is missing or malformed.
	KindConfiguration Kind = "configuration"
	// KindConnection means the SSH handshake, authentication or sftp
	// subsystem request failed.
	KindConnection Kind = "connection"
	// KindNotConnected means a tool was called while the session is down.
	KindNotConnected Kind = "not_connected"
	// KindRemoteOperation means a single remote call failed on a live session.
	KindRemoteOperation Kind = "remote_operation"
)

// Error is the error type returned across package boundaries.
type Error struct {
	Kind Kind
	Op   string // remote operation, e.g. "list" or "rename"
	Key  string // environment key, configuration errors only
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindConfiguration:
		if e.Err == nil {
			return fmt.Sprintf("missing environment variable: %s", e.Key)
		}
		return fmt.Sprintf("invalid environment variable %s: %v", e.Key, e.Err)
	case KindConnection:
		return fmt.Sprintf("connection error: %v", e.Err)
	case KindNotConnected:
		if e.Err == nil {
			return "sftp connection not established"
		}
		return fmt.Sprintf("sftp connection not established: %v", e.Err)
	default:
		if e.Path == "" {
			return fmt.Sprintf("%s: %v", e.Op, e.Err)
		}
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Configuration reports a missing required environment key.
func Configuration(key string) error {
	return &Error{Kind: KindConfiguration, Key: key}
}

// InvalidConfig reports an environment key whose value cannot be used.
func InvalidConfig(key string, err error) error {
	return &Error{Kind: KindConfiguration, Key: key, Err: err}
}

// Connection wraps a failure to establish the session.
func Connection(err error) error {
	return &Error{Kind: KindConnection, Err: err}
}

// NotConnected is returned by the dispatcher when the session is down.
// cause is the recorded connection error and may be nil.
func NotConnected(cause error) error {
	return &Error{Kind: KindNotConnected, Err: cause}
}

// Remote wraps the failure of a single remote operation.
func Remote(op, path string, err error) error {
	return &Error{Kind: KindRemoteOperation, Op: op, Path: path, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
