package inference

import (
	"errors"
	"fmt"
)

// ErrorCode is a machine-readable classification of an inference failure.
type ErrorCode string

const (
	ErrorInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrorModelNotFound    ErrorCode = "MODEL_NOT_FOUND"
	ErrorModelUnavailable ErrorCode = "MODEL_UNAVAILABLE"
	ErrorCompletionFailed ErrorCode = "COMPLETION_FAILED"
	ErrorAllModelsFailed  ErrorCode = "ALL_MODELS_FAILED"
)

// Error carries a code, a human reason, and an optional wrapped cause.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("inference: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("inference: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf returns the error's code, or empty when err is not an inference
// error.
func CodeOf(err error) ErrorCode {
	var infErr *Error
	if errors.As(err, &infErr) {
		return infErr.Code
	}
	return ""
}
