// SPDX-License-Identifier: Apache-2.0
// Package errors provides the typed error taxonomy shared by agents, the
// JSON-RPC binding and the pipeline driver.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode classifies pipeline errors so transports can map them exhaustively.
type ErrorCode string

const (
	// CodeBadRequest indicates a structured payload missing required keys or
	// carrying a value of the wrong shape.
	CodeBadRequest ErrorCode = "BAD_REQUEST"

	// CodeUnsupportedMethod indicates an RPC method outside single-shot send.
	CodeUnsupportedMethod ErrorCode = "UNSUPPORTED_METHOD"

	// CodeNoResponse indicates the remote peer finished without a terminal message.
	CodeNoResponse ErrorCode = "NO_RESPONSE"

	// CodeUpstreamFailure indicates the LLM or data collaborator failed.
	CodeUpstreamFailure ErrorCode = "UPSTREAM_FAILURE"

	// CodeConnectivity indicates the endpoint was unreachable or the handshake failed.
	CodeConnectivity ErrorCode = "CONNECTIVITY_FAILURE"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL"
)

// Codes lists every code in the taxonomy.
var Codes = []ErrorCode{
	CodeBadRequest,
	CodeUnsupportedMethod,
	CodeNoResponse,
	CodeUpstreamFailure,
	CodeConnectivity,
	CodeTimeout,
	CodeInternal,
}

// PipeError is a typed error with context for diagnostics.
// It implements the error interface and can be unwrapped with errors.As().
type PipeError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *PipeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *PipeError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *PipeError) MarshalJSON() ([]byte, error) {
	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(&struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Err     string                 `json:"error,omitempty"`
		Context map[string]interface{} `json:"context,omitempty"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
		Err:     cause,
		Context: e.Context,
	})
}

// New creates a new PipeError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *PipeError {
	return &PipeError{
		Code:    code,
		Message: msg,
		Err:     cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *PipeError) WithContext(key string, value interface{}) *PipeError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ContextString returns a context value as a string, or "".
func (e *PipeError) ContextString(key string) string {
	if e == nil || e.Context == nil {
		return ""
	}
	value, ok := e.Context[key].(string)
	if !ok {
		return ""
	}
	return value
}

// AsPipeError extracts a PipeError from the chain, wrapping unknown errors as internal.
func AsPipeError(err error) *PipeError {
	if err == nil {
		return nil
	}
	var pe *PipeError
	if errors.As(err, &pe) {
		return pe
	}
	return New(CodeInternal, err.Error(), err)
}

// CodeOf returns the code of the first PipeError in the chain.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var pe *PipeError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// ParseCode converts a wire string into an ErrorCode, reporting whether it is known.
func ParseCode(value string) (ErrorCode, bool) {
	for _, code := range Codes {
		if string(code) == value {
			return code, true
		}
	}
	return "", false
}

// BadRequest reports a payload that failed validation. Missing keys are sorted
// and included in both the message context and the "missing" context key.
func BadRequest(msg string, missing ...string) *PipeError {
	err := New(CodeBadRequest, msg, nil)
	if len(missing) > 0 {
		keys := append([]string(nil), missing...)
		sort.Strings(keys)
		err.Message = fmt.Sprintf("%s (missing: %s)", msg, strings.Join(keys, ", "))
		err.WithContext("missing", keys)
	}
	return err
}

// Unsupported reports an RPC method the agents deliberately do not serve.
func Unsupported(method string) *PipeError {
	return New(CodeUnsupportedMethod, fmt.Sprintf("Method '%s' not supported.", method), nil).
		WithContext("method", method)
}

// NoResponse reports a peer that never produced a terminal message.
func NoResponse(endpoint string) *PipeError {
	return New(CodeNoResponse, fmt.Sprintf("agent at %s did not return a message response", endpoint), nil).
		WithContext("endpoint", endpoint)
}

// Upstream reports a failure of the LLM or data collaborator.
func Upstream(msg string, cause error) *PipeError {
	return New(CodeUpstreamFailure, msg, cause)
}

// Connectivity reports an unreachable endpoint or a failed handshake.
func Connectivity(endpoint string, cause error) *PipeError {
	return New(CodeConnectivity, fmt.Sprintf("cannot reach agent at %s", endpoint), cause).
		WithContext("endpoint", endpoint)
}

// Missing returns the missing keys recorded by BadRequest.
func Missing(err error) []string {
	pe := AsPipeError(err)
	if pe == nil || pe.Context == nil {
		return nil
	}
	switch keys := pe.Context["missing"].(type) {
	case []string:
		return keys
	case []interface{}:
		out := make([]string, 0, len(keys))
		for _, key := range keys {
			if s, ok := key.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
