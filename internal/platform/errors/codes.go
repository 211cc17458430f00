// Package errors provides structured domain errors that map onto gRPC status.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Message admission errors
	CodeInvalidMessage Code = "INVALID_MESSAGE"

	// Reduction errors
	CodeStaleRead          Code = "STALE_READ"
	CodeUnknownActionState Code = "UNKNOWN_ACTION_STATE"
	CodeCursorMismatch     Code = "CURSOR_MISMATCH"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - message failed admission
	case CodeInvalidMessage:
		return codes.InvalidArgument

	// Aborted - concurrent writer won; caller should re-read and retry
	case CodeStaleRead:
		return codes.Aborted

	// FailedPrecondition - stored cursor and log disagree
	case CodeUnknownActionState,
		CodeCursorMismatch:
		return codes.FailedPrecondition

	case CodeNotFound:
		return codes.NotFound

	default:
		return codes.Internal
	}
}
