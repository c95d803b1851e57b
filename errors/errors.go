package errors

import (
	"fmt"
	"strings"
)

// Stage indicates where in processing the error occurred
type Stage string

const (
	StageEncode    Stage = "encode"    // building outgoing envelopes
	StageDecode    Stage = "decode"    // parsing inbound messages
	StageDeliver   Stage = "deliver"   // handing text to the substrate
	StageCall      Stage = "call"      // awaiting a correlated response
	StageDispatch  Stage = "dispatch"  // event fan-out to listeners
	StageLifecycle Stage = "lifecycle" // engine state transitions
)

// Kind categorizes the error
type Kind string

const (
	KindTransport    Kind = "transport"
	KindProtocol     Kind = "protocol"
	KindRemote       Kind = "remote"
	KindTimeout      Kind = "timeout"
	KindDestroyed    Kind = "destroyed"
	KindInvalidInput Kind = "invalid_input"
	KindNotReady     Kind = "not_ready"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Cause   error
	Code    *int
	Stage   Stage
	Kind    Kind
	Method  string
	Message string
	Detail  string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Stage))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Method != "" {
		b.WriteString(" in ")
		b.WriteString(e.Method)
	}

	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
		if e.Code != nil {
			fmt.Fprintf(&b, " (code %d)", *e.Code)
		}
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Stage == t.Stage && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether err is a bridge error of the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// AsRemote returns the remote error details if err is a remote rejection.
func AsRemote(err error) (*Error, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == KindRemote {
			return e, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(stage Stage, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Stage: stage,
			Kind:  kind,
		},
	}
}

// Method sets the RPC method the error relates to
func (b *Builder) Method(m string) *Builder {
	b.err.Method = m
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Transport creates a transport failure error
func Transport(stage Stage, detail string, cause error) *Error {
	return &Error{
		Stage:  stage,
		Kind:   KindTransport,
		Detail: detail,
		Cause:  cause,
	}
}

// Protocol creates a protocol error for a malformed or unexpected message
func Protocol(detail string, cause error) *Error {
	return &Error{
		Stage:  StageDecode,
		Kind:   KindProtocol,
		Detail: detail,
		Cause:  cause,
	}
}

// Remote creates an error for an explicit script-side rejection.
// code is optional on the wire; pass nil when absent.
func Remote(method, message string, code *int) *Error {
	return &Error{
		Stage:   StageCall,
		Kind:    KindRemote,
		Method:  method,
		Message: message,
		Code:    code,
	}
}

// Timeout creates a call-deadline error
func Timeout(method string, detail string) *Error {
	return &Error{
		Stage:  StageCall,
		Kind:   KindTimeout,
		Method: method,
		Detail: detail,
	}
}

// Destroyed creates an error for operations against a torn-down engine
func Destroyed(stage Stage) *Error {
	return &Error{
		Stage:  stage,
		Kind:   KindDestroyed,
		Detail: "bridge destroyed",
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(stage Stage, detail string) *Error {
	return &Error{
		Stage:  stage,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotReady creates an error for substrate entry before the script side is up
func NotReady(detail string) *Error {
	return &Error{
		Stage:  StageDeliver,
		Kind:   KindNotReady,
		Detail: detail,
	}
}
