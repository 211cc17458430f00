package domain

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/batchmessaging/internal/platform/errors"
	batchgrpc "github.com/louisbranch/batchmessaging/internal/services/batch/api/grpc/batch"
	"google.golang.org/grpc"
)

// grpcCallTimeout caps the time for a single gRPC call from a tool handler.
const grpcCallTimeout = 5 * time.Second

// Client is the batch messaging API the tools call.
type Client interface {
	PostMessage(ctx context.Context, in *batchgrpc.PostMessageRequest, opts ...grpc.CallOption) (*batchgrpc.PostMessageResponse, error)
	ProcessMessage(ctx context.Context, in *batchgrpc.ProcessMessageRequest, opts ...grpc.CallOption) (*batchgrpc.ProcessMessageResponse, error)
	GetState(ctx context.Context, in *batchgrpc.GetStateRequest, opts ...grpc.CallOption) (*batchgrpc.GetStateResponse, error)
	ListActions(ctx context.Context, in *batchgrpc.ListActionsRequest, opts ...grpc.CallOption) (*batchgrpc.ListActionsResponse, error)
}

var _ Client = (*batchgrpc.Client)(nil)

// callFailed labels a failed call with its domain code when one is known.
func callFailed(op string, err error) error {
	if code := apperrors.GetCode(err); code != apperrors.CodeUnknown {
		return fmt.Errorf("%s failed (%s): %w", op, code, err)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

func formatUnixMilli(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
