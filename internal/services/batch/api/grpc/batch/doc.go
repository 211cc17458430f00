// Package batch exposes the batch messaging calls over gRPC.
//
// The service is described by a hand-written grpc.ServiceDesc and speaks the
// CBOR content-subtype (application/grpc+cbor) registered by
// internal/platform/grpc. Domain failures travel as gRPC statuses carrying an
// errdetails.ErrorInfo whose reason is the platform error code.
package batch
