// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed error handling with rich context for docket.
// Every failure condition of the roster, the dispatcher and the model client
// carries an ErrorCode so callers can branch on it with HasCode.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies docket errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeLLMError indicates the model backend failed a chat call.
	CodeLLMError ErrorCode = "LLM_ERROR"

	// CodeDuplicatePerson indicates the person is already in the roster.
	CodeDuplicatePerson ErrorCode = "DUPLICATE_PERSON"

	// CodeDuplicateResponsibility indicates the responsibility is already owned.
	CodeDuplicateResponsibility ErrorCode = "DUPLICATE_RESPONSIBILITY"

	// CodeNotInitialized indicates dispatch was called before a model was bound.
	CodeNotInitialized ErrorCode = "NOT_INITIALIZED"

	// CodeModelInitFailure indicates the model client could not be constructed.
	CodeModelInitFailure ErrorCode = "MODEL_INIT_FAILURE"

	// CodeAmbiguousReply indicates a reply matched zero or several responsibilities.
	CodeAmbiguousReply ErrorCode = "AMBIGUOUS_REPLY"

	// CodeUnresolvable indicates a responsibility has no owner.
	CodeUnresolvable ErrorCode = "UNRESOLVABLE"

	// CodeBackendUnreachable indicates the liveness probe failed.
	CodeBackendUnreachable ErrorCode = "BACKEND_UNREACHABLE"

	// CodeModelNotAvailable indicates the backend does not know the model.
	CodeModelNotAvailable ErrorCode = "MODEL_NOT_AVAILABLE"

	// CodeInvalidHistory indicates a malformed conversation history.
	CodeInvalidHistory ErrorCode = "INVALID_HISTORY"
)

// DocketError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type DocketError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
	StatusCode  int // HTTP status used by the API
}

// Error implements the error interface.
func (e *DocketError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *DocketError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *DocketError) MarshalJSON() ([]byte, error) {
	out := struct {
		Code        string                 `json:"code"`
		Message     string                 `json:"message"`
		Err         string                 `json:"error,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Recoverable bool                   `json:"recoverable"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Context:     e.Context,
		Recoverable: e.Recoverable,
	}
	if e.Err != nil {
		out.Err = e.Err.Error()
	}
	return json.Marshal(out)
}

// New creates a new DocketError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *DocketError {
	return &DocketError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		StatusCode: codeToStatusCode(code),
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...any) *DocketError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *DocketError) WithContext(key string, value interface{}) *DocketError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *DocketError) WithRecoverable(recoverable bool) *DocketError {
	e.Recoverable = recoverable
	return e
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *DocketError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// AsDocketError attempts to convert an error to a DocketError.
// The chain is searched first; anything else is wrapped as internal.
func AsDocketError(err error) *DocketError {
	if err == nil {
		return nil
	}
	var de *DocketError
	if stderrors.As(err, &de) {
		return de
	}
	return New(CodeInternal, "wrapped error", err)
}

// HasCode reports whether any DocketError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var de *DocketError
		if !stderrors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf returns the code of the outermost DocketError in err's chain,
// or CodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsDocketError(err).Code
}

func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeInvalidInput, CodeInvalidHistory:
		return http.StatusBadRequest
	case CodeDuplicatePerson, CodeDuplicateResponsibility:
		return http.StatusConflict
	case CodeUnresolvable, CodeModelNotAvailable:
		return http.StatusNotFound
	case CodeAmbiguousReply:
		return http.StatusUnprocessableEntity
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeNotInitialized, CodeBackendUnreachable, CodeModelInitFailure:
		return http.StatusServiceUnavailable
	case CodeLLMError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
