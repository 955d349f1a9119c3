package errors

import (
	stderrors "errors"
	"fmt"
	"os"
)

type ErrorType string

const (
	ErrorTypeMissingConfiguration ErrorType = "MISSING_CONFIGURATION"
	ErrorTypeIO                   ErrorType = "IO"
	ErrorTypePathTransform        ErrorType = "PATH_TRANSFORM"
	ErrorTypePathConflict         ErrorType = "PATH_CONFLICT"
	ErrorTypeUnsupportedMode      ErrorType = "UNSUPPORTED_MODE"
	ErrorTypeRemoteOperation      ErrorType = "REMOTE_OPERATION_FAILED"
	ErrorTypeRefUpdateRejected    ErrorType = "REF_UPDATE_REJECTED"
	ErrorTypeWorkspaceBoundary    ErrorType = "WORKSPACE_BOUNDARY_VIOLATION"
)

// Exit codes handed back to the shell by the entrypoints. Every failure is
// fatal, the code only tells callers which class of failure it was.
var exitCodes = map[ErrorType]int{
	ErrorTypeMissingConfiguration: 2,
	ErrorTypeIO:                   3,
	ErrorTypePathTransform:        4,
	ErrorTypePathConflict:         5,
	ErrorTypeUnsupportedMode:      6,
	ErrorTypeRemoteOperation:      7,
	ErrorTypeRefUpdateRejected:    8,
	ErrorTypeWorkspaceBoundary:    9,
}

type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details any       `json:"details,omitempty"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match on Type so callers can test against the sentinel
// values below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

func newError(t ErrorType, message string, details any, err error) *Error {
	return &Error{
		Type:    t,
		Message: message,
		Code:    exitCodes[t],
		Details: details,
		Err:     err,
	}
}

// Sentinels for errors.Is.
var (
	ErrMissingConfiguration = &Error{Type: ErrorTypeMissingConfiguration}
	ErrIO                   = &Error{Type: ErrorTypeIO}
	ErrPathTransform        = &Error{Type: ErrorTypePathTransform}
	ErrPathConflict         = &Error{Type: ErrorTypePathConflict}
	ErrUnsupportedMode      = &Error{Type: ErrorTypeUnsupportedMode}
	ErrRemoteOperation      = &Error{Type: ErrorTypeRemoteOperation}
	ErrRefUpdateRejected    = &Error{Type: ErrorTypeRefUpdateRejected}
	ErrWorkspaceBoundary    = &Error{Type: ErrorTypeWorkspaceBoundary}
)

func MissingConfiguration(name string) *Error {
	return newError(ErrorTypeMissingConfiguration,
		fmt.Sprintf("missing required configuration: %s", name), name, nil)
}

func IO(path string, err error) *Error {
	return newError(ErrorTypeIO, fmt.Sprintf("reading %s", path), path, err)
}

func PathTransform(path, root string) *Error {
	return newError(ErrorTypePathTransform,
		fmt.Sprintf("path %q is not under source root %q", path, root),
		map[string]string{"path": path, "root": root}, nil)
}

// Conflict carries both source paths that produced the same destination.
type Conflict struct {
	Destination string `json:"destination"`
	Path        string `json:"path"`
	Other       string `json:"other"`
}

func PathConflict(destination, path, other string) *Error {
	return newError(ErrorTypePathConflict,
		fmt.Sprintf("paths %q and %q both map to %q", path, other, destination),
		Conflict{Destination: destination, Path: path, Other: other}, nil)
}

func UnsupportedMode(path string, mode os.FileMode) *Error {
	return newError(ErrorTypeUnsupportedMode,
		fmt.Sprintf("unsupported mode %o for %s", uint32(mode.Perm()), path), path, nil)
}

func RemoteOperation(op string, err error) *Error {
	return newError(ErrorTypeRemoteOperation, fmt.Sprintf("remote %s failed", op), op, err)
}

func RefUpdateRejected(ref, current, next string) *Error {
	return newError(ErrorTypeRefUpdateRejected,
		fmt.Sprintf("update of %s from %s to %s is not a fast-forward", ref, current, next),
		map[string]string{"ref": ref, "current": current, "next": next}, nil)
}

func WorkspaceBoundary(source, workspace string) *Error {
	return newError(ErrorTypeWorkspaceBoundary,
		fmt.Sprintf("source %q is not within workspace %q", source, workspace),
		map[string]string{"source": source, "workspace": workspace}, nil)
}

// TypeOf returns the taxonomy type of err, or "" when err carries none.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ""
}

// ExitCode maps err to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if code, ok := exitCodes[TypeOf(err)]; ok {
		return code
	}
	return 1
}

// Is and As forward to the standard library so callers need a single import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }
