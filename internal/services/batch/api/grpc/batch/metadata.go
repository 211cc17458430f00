package batch

import (
	"context"
	"strings"

	"github.com/louisbranch/batchmessaging/internal/platform/requestctx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// CallIDHeader is the gRPC metadata key carrying the caller's call id. The
// action log attributes each appended batch to it.
const CallIDHeader = "x-batchmessaging-call-id"

// CallIDInterceptor moves the call id from incoming metadata into the context,
// generating one when the caller sent none, and echoes it as a response header.
func CallIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = requestctx.WithCallID(ctx, callIDFromIncomingContext(ctx))
		ctx, callID := requestctx.EnsureCallID(ctx)
		if err := grpc.SetHeader(ctx, metadata.Pairs(CallIDHeader, callID)); err != nil {
			return nil, status.Errorf(codes.Internal, "set response metadata: %v", err)
		}
		return handler(ctx, req)
	}
}

// IsPrintableASCII reports whether value is non-empty printable ASCII.
func IsPrintableASCII(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < 0x20 || value[i] > 0x7e {
			return false
		}
	}
	return true
}

func callIDFromIncomingContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, value := range md.Get(CallIDHeader) {
		value = strings.TrimSpace(value)
		if IsPrintableASCII(value) {
			return value
		}
	}
	return ""
}

// outgoingCallID forwards a call id already present in ctx.
func outgoingCallID(ctx context.Context) context.Context {
	callID := requestctx.CallIDFromContext(ctx)
	if callID == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, CallIDHeader, callID)
}
