package backend

import (
	"errors"
	"fmt"
)

// Kind classifies an upstream failure
type Kind string

const (
	KindTransport   Kind = "transport"
	KindAuth        Kind = "auth"
	KindApplication Kind = "application"
)

// Sentinels for errors.Is against an *Error of the matching kind.
var (
	ErrTransport   = errors.New("upstream transport failure")
	ErrAuth        = errors.New("upstream authentication failure")
	ErrApplication = errors.New("upstream application error")
)

// Messages surfaced to operators
const (
	MsgNetwork          = "Network connection failed. Please check your internet connection and try again."
	MsgTimeout          = "Request timed out. Please try again."
	MsgAuth             = "Authentication failed. Please login again."
	MsgTaskUnavailable  = "This task is no longer available for submission. It may have been completed or cancelled."
	upstreamUnavailable = "Task not available for submission"
)

// Error is a classified upstream failure. Message is safe to show to the operator.
type Error struct {
	Kind    Kind
	Status  int
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrAuth:
		return e.Kind == KindAuth
	case ErrApplication:
		return e.Kind == KindApplication
	}
	return false
}

func transportError(err error, timeout bool) *Error {
	msg := MsgNetwork
	if timeout {
		msg = MsgTimeout
	}
	return &Error{Kind: KindTransport, Message: msg, Err: err}
}

func authError(status int) *Error {
	return &Error{Kind: KindAuth, Status: status, Message: MsgAuth}
}

func applicationError(status, code int, message string) *Error {
	if message == "" {
		message = fmt.Sprintf("Request failed with status %d", status)
		if code != 0 {
			message = fmt.Sprintf("Request failed with code %d", code)
		}
	}
	return &Error{Kind: KindApplication, Status: status, Code: code, Message: message}
}
