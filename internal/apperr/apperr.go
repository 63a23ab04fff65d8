// Package apperr defines the error taxonomy shared by the synchronization core.
// Validation errors block a local action and are shown inline; remote errors are
// shown as a dismissible notice while local draft state is kept for retry.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports bad local input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// Is lets errors.Is match on Reason against the sentinels below.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Reason == e.Reason
}

var (
	ErrEmptyText     = &ValidationError{Reason: "empty text"}
	ErrEmptyImage    = &ValidationError{Reason: "empty image"}
	ErrMissingFields = &ValidationError{Reason: "missing required fields"}
)

// RemoteKind classifies a failed interaction with a remote collaborator.
type RemoteKind int

const (
	RemoteRead RemoteKind = iota
	RemoteWrite
	RemoteSubscribe
)

func (k RemoteKind) String() string {
	switch k {
	case RemoteRead:
		return "read"
	case RemoteWrite:
		return "write"
	case RemoteSubscribe:
		return "subscribe"
	}
	return "unknown"
}

// RemoteError wraps a network or permission failure from the store, blob store, or profile lookup.
type RemoteError struct {
	Op   string
	Kind RemoteKind
	Err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Read wraps err as a RemoteRead failure. Nil stays nil.
func Read(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteError{Op: op, Kind: RemoteRead, Err: err}
}

// Write wraps err as a RemoteWrite failure. Nil stays nil.
func Write(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteError{Op: op, Kind: RemoteWrite, Err: err}
}

// Subscribe wraps err as a RemoteSubscribe failure. Nil stays nil.
func Subscribe(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteError{Op: op, Kind: RemoteSubscribe, Err: err}
}

func isKind(err error, kind RemoteKind) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Kind == kind
}

// IsRemoteWrite reports whether err is, or wraps, a RemoteWrite failure.
func IsRemoteWrite(err error) bool { return isKind(err, RemoteWrite) }

// IsRemoteRead reports whether err is, or wraps, a RemoteRead failure.
func IsRemoteRead(err error) bool { return isKind(err, RemoteRead) }

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
