// Package errors provides the structured error taxonomy used across quiver.
//
// Every fallible operation that can be reached from the host boundary returns
// an *Error carrying a Code. ToBoundary flattens any error into the
// serializable BoundaryError the host receives.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Code identifies the category of an error. Values are stable and are sent
// across the boundary verbatim.
type Code string

const (
	// CodeInvalidHandle is returned when a handle does not resolve
	CodeInvalidHandle Code = "INVALID_HANDLE"
	// CodeSchemaMismatch is returned when batches disagree with a table schema
	CodeSchemaMismatch Code = "SCHEMA_MISMATCH"
	// CodeOutOfBounds is returned for index and range violations
	CodeOutOfBounds Code = "OUT_OF_BOUNDS"
	// CodeTypeMismatch is returned when a value does not fit the target type
	CodeTypeMismatch Code = "TYPE_MISMATCH"
	// CodeFormatDetection is returned when a byte buffer cannot be classified
	CodeFormatDetection Code = "FORMAT_DETECTION"
	// CodeIO is returned for encode/decode failures
	CodeIO Code = "IO_ERROR"
	// CodeValidation is returned for invalid arguments and configuration
	CodeValidation Code = "VALIDATION"
	// CodeMemory is returned for handle-space exhaustion and inputs too large to map
	CodeMemory Code = "MEMORY_ERROR"
	// CodeNotImplemented is returned for recognized but unsupported inputs
	CodeNotImplemented Code = "NOT_IMPLEMENTED"
)

// Error represents a structured error with context
type Error struct {
	Code    Code
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code. It lets callers
// write errors.Is(err, errors.New(errors.CodeOutOfBounds, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given code and message
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Code:    code,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code Code, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// IsCode checks if the error, or any error it wraps, carries the given code
func IsCode(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode returns the code of the outermost *Error in the chain, or
// CodeValidation when err carries none.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeValidation
}

// InvalidHandle reports a handle that does not resolve in the named registry.
func InvalidHandle(kind string, id uint32) *Error {
	e := &Error{
		Code:    CodeInvalidHandle,
		Message: fmt.Sprintf("invalid %s handle %d", kind, id),
		Stack:   captureStack(2),
	}
	return e.WithDetail("kind", kind).WithDetail("handle", id)
}

// OutOfBounds reports an index or range violation.
func OutOfBounds(format string, args ...interface{}) *Error {
	return &Error{
		Code:    CodeOutOfBounds,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Validation reports an invalid argument.
func Validation(format string, args ...interface{}) *Error {
	return &Error{
		Code:    CodeValidation,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// FormatDetection reports a buffer the sniffer could not classify.
func FormatDetection(diagnostic string) *Error {
	return &Error{
		Code:    CodeFormatDetection,
		Message: diagnostic,
		Stack:   captureStack(2),
	}
}

// detailsString renders Details in key order so boundary messages are stable.
func (e *Error) detailsString() string {
	if len(e.Details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Details[k]))
	}
	return strings.Join(parts, ", ")
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
