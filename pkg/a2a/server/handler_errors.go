// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	stderrors "errors"

	"github.com/jllopis/a2apipe/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToStatus converts a typed error to a gRPC status error.
// Errors that already carry a status are returned unchanged.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	pe := errors.AsPipeError(err)
	return status.Error(StatusCode(pe.Code), pe.Message)
}

// StatusCode maps pipeline error codes to gRPC codes. The mapping is total:
// every code in errors.Codes has an explicit case.
func StatusCode(code errors.ErrorCode) codes.Code {
	switch code {
	case errors.CodeBadRequest:
		return codes.InvalidArgument
	case errors.CodeUnsupportedMethod:
		return codes.Unimplemented
	case errors.CodeNoResponse:
		return codes.NotFound
	case errors.CodeUpstreamFailure:
		return codes.FailedPrecondition
	case errors.CodeConnectivity:
		return codes.Unavailable
	case errors.CodeTimeout:
		return codes.DeadlineExceeded
	case errors.CodeInternal:
		return codes.Internal
	default:
		return codes.Unknown
	}
}

// ErrorCodeFor maps a gRPC code back onto the pipeline taxonomy.
func ErrorCodeFor(code codes.Code) errors.ErrorCode {
	switch code {
	case codes.InvalidArgument:
		return errors.CodeBadRequest
	case codes.Unimplemented:
		return errors.CodeUnsupportedMethod
	case codes.NotFound:
		return errors.CodeNoResponse
	case codes.FailedPrecondition:
		return errors.CodeUpstreamFailure
	case codes.Unavailable:
		return errors.CodeConnectivity
	case codes.DeadlineExceeded:
		return errors.CodeTimeout
	default:
		return errors.CodeInternal
	}
}

// FromStatus returns the typed form of err. An error carrying a gRPC status
// keeps its code; anything else untyped is internal.
func FromStatus(err error) *errors.PipeError {
	if err == nil {
		return nil
	}
	var pe *errors.PipeError
	if stderrors.As(err, &pe) {
		return pe
	}
	if st, ok := status.FromError(err); ok {
		return errors.New(ErrorCodeFor(st.Code()), st.Message(), nil)
	}
	return errors.AsPipeError(err)
}
