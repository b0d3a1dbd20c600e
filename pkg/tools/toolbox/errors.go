package toolbox

import (
	"errors"
	"fmt"
)

// Kind classifies why a tool invocation failed.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindInvalidArguments Kind = "invalid_arguments"
	KindSafetyRejected   Kind = "safety_rejected"
	KindExecution        Kind = "execution"
	KindOutputLimit      Kind = "output_limit"
	KindTransport        Kind = "transport"
	KindRemote           Kind = "remote"
	KindCancelled        Kind = "cancelled"
	KindHandler          Kind = "handler"
)

// Error is a classified tool failure. Handlers return it so the dispatcher
// can report the failure kind back into the conversation.
type Error struct {
	Kind Kind
	Err  error
}

// Errorf builds an *Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the Kind carried by err, or KindHandler if err is not
// classified.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindHandler
}
