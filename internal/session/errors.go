package session

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrorRemoteUnavailable ErrorKind = "remote_unavailable"
	ErrorSubmissionFailed  ErrorKind = "submission_failed"
	ErrorBusy              ErrorKind = "busy"
	ErrorNoSession         ErrorKind = "no_session"
	ErrorInvalidInput      ErrorKind = "invalid_input"
	ErrorClosed            ErrorKind = "closed"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrClosed is returned by every operation on a closed Machine.
var ErrClosed = &Error{Kind: ErrorClosed, Message: "session machine closed"}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var sessionErr *Error
	if errors.As(err, &sessionErr) && sessionErr != nil {
		return sessionErr.Kind
	}
	return ""
}

func remoteUnavailableError(message string, err error) *Error {
	return &Error{Kind: ErrorRemoteUnavailable, Message: message, Err: err}
}

func submissionFailedError(message string, err error) *Error {
	return &Error{Kind: ErrorSubmissionFailed, Message: message, Err: err}
}

func busyError() *Error {
	return &Error{Kind: ErrorBusy, Message: "Session is busy"}
}

func noSessionError() *Error {
	return &Error{Kind: ErrorNoSession, Message: "No active session"}
}

func invalidInputError(message string) *Error {
	return &Error{Kind: ErrorInvalidInput, Message: message}
}
