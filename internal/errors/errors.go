// Package errors defines HiStreamer's error taxonomy and the single
// boundary mapping from plugin Status codes to engine ErrorCodes.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is a taxonomy of error kinds recognized throughout the pipeline.
// It intentionally mirrors the C++ engine's Status/ErrorCode split: a
// plugin returns a Status at the plugin boundary, which is translated to
// one of these Codes before it is ever seen by a filter or the FSM.
type Code int

const (
	CodeOK Code = iota
	CodeAgain
	CodeUnknown
	CodeUnimplemented
	CodeInvalidParameterValue
	CodeInvalidParameterType
	CodeInvalidOperation
	CodeInvalidState
	CodeWrongState
	CodeNoMemory
	CodeTimedOut
	CodeUnsupportedFormat
	CodeNotExisted
	CodeEndOfStream
	CodePluginNotFound
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeAgain:
		return "again"
	case CodeUnimplemented:
		return "unimplemented"
	case CodeInvalidParameterValue:
		return "invalid_parameter_value"
	case CodeInvalidParameterType:
		return "invalid_parameter_type"
	case CodeInvalidOperation:
		return "invalid_operation"
	case CodeInvalidState:
		return "invalid_state"
	case CodeWrongState:
		return "wrong_state"
	case CodeNoMemory:
		return "no_memory"
	case CodeTimedOut:
		return "timed_out"
	case CodeUnsupportedFormat:
		return "unsupported_format"
	case CodeNotExisted:
		return "not_existed"
	case CodeEndOfStream:
		return "end_of_stream"
	case CodePluginNotFound:
		return "plugin_not_found"
	default:
		return "unknown"
	}
}

// Error is the error value carried through the pipeline. It always
// carries a Code so callers can branch with Is/As instead of string
// matching.
type Error struct {
	Code Code
	Op   string // operation that failed, e.g. "filter.Prepare", "pool.Allocate"
	Err  error  // optional wrapped cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, ErrAgain) style matching against a bare Code
// sentinel as well as against another *Error with the same Code.
func (e *Error) Is(target error) bool {
	if c, ok := target.(codeSentinel); ok {
		return e.Code == Code(c)
	}
	var other *Error
	if stderrors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// codeSentinel lets a bare Code satisfy error so it can be used as an
// errors.Is target (e.g. errors.Is(err, ErrAgain)).
type codeSentinel Code

func (c codeSentinel) Error() string { return Code(c).String() }

// Sentinels for common comparisons.
var (
	ErrAgain       error = codeSentinel(CodeAgain)
	ErrWrongState  error = codeSentinel(CodeWrongState)
	ErrEndOfStream error = codeSentinel(CodeEndOfStream)
	ErrTimedOut    error = codeSentinel(CodeTimedOut)
	ErrNotFound    error = codeSentinel(CodePluginNotFound)
)

// New builds an *Error for the given op/code with an optional wrapped cause.
func New(op string, code Code, err error) *Error {
	return &Error{Op: op, Code: code, Err: err}
}

// CodeOf extracts the Code carried by err, defaulting to CodeUnknown for
// errors that never passed through this package.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	var c codeSentinel
	if stderrors.As(err, &c) {
		return Code(c)
	}
	return CodeUnknown
}

// IsRecoverable reports whether err should merely be logged and the pump
// loop continued (spec.md §7: "recoverable" category).
func IsRecoverable(err error) bool {
	switch CodeOf(err) {
	case CodeOK, CodeInvalidParameterValue, CodeUnsupportedFormat:
		return true
	default:
		return false
	}
}

// IsBackPressure reports whether err is the codec's "try again" signal.
func IsBackPressure(err error) bool {
	return CodeOf(err) == CodeAgain
}

// IsFatal reports whether err should be surfaced as EVENT_ERROR to the
// pipeline and ultimately OnError to the observer.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !IsRecoverable(err) && !IsBackPressure(err) && CodeOf(err) != CodeEndOfStream
}
