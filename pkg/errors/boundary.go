package errors

import (
	"errors"
	"fmt"

	"github.com/ajitpratap0/quiver/pkg/json"
)

// BoundaryError is the flat, serializable error value handed to the host.
type BoundaryError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error renders "code: message (details)".
func (b *BoundaryError) Error() string {
	if b.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", b.Code, b.Message, b.Details)
	}
	return fmt.Sprintf("%s: %s", b.Code, b.Message)
}

// JSON encodes the error for the host.
func (b *BoundaryError) JSON() ([]byte, error) {
	return json.MarshalCompact(b)
}

// ToBoundary flattens err into a BoundaryError. The code is taken from the
// outermost *Error; causes are folded into the message. An error carrying no
// code is reported as VALIDATION. A nil err yields nil.
func ToBoundary(err error) *BoundaryError {
	if err == nil {
		return nil
	}

	var b *BoundaryError
	if errors.As(err, &b) {
		return b
	}

	var e *Error
	if !errors.As(err, &e) {
		return &BoundaryError{Code: CodeValidation, Message: err.Error()}
	}

	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, causeMessage(e.Cause))
	}
	return &BoundaryError{
		Code:    e.Code,
		Message: msg,
		Details: e.detailsString(),
	}
}

// FromJSON decodes a BoundaryError previously produced by JSON.
func FromJSON(data []byte) (*BoundaryError, error) {
	var b BoundaryError
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, Wrap(err, CodeValidation, "malformed boundary error")
	}
	return &b, nil
}

// causeMessage strips the code prefix from nested *Error causes so the
// flattened message reads as one sentence chain.
func causeMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e == err {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s", e.Message, causeMessage(e.Cause))
		}
		return e.Message
	}
	return err.Error()
}
