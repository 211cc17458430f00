package batch

import (
	"context"
	"errors"

	apperrors "github.com/louisbranch/batchmessaging/internal/platform/errors"
	platformgrpc "github.com/louisbranch/batchmessaging/internal/platform/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Client calls the batch messaging service. Every call uses the CBOR codec
// and forwards the context call id.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// PostMessage submits one message.
func (c *Client) PostMessage(ctx context.Context, in *PostMessageRequest, opts ...grpc.CallOption) (*PostMessageResponse, error) {
	out := new(PostMessageResponse)
	if err := c.invoke(ctx, PostMessageMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// ProcessMessage folds pending batches once.
func (c *Client) ProcessMessage(ctx context.Context, in *ProcessMessageRequest, opts ...grpc.CallOption) (*ProcessMessageResponse, error) {
	if in == nil {
		in = &ProcessMessageRequest{}
	}
	out := new(ProcessMessageResponse)
	if err := c.invoke(ctx, ProcessMessageMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// GetState reads the committed aggregate.
func (c *Client) GetState(ctx context.Context, in *GetStateRequest, opts ...grpc.CallOption) (*GetStateResponse, error) {
	if in == nil {
		in = &GetStateRequest{}
	}
	out := new(GetStateResponse)
	if err := c.invoke(ctx, GetStateMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// ListActions pages the action log.
func (c *Client) ListActions(ctx context.Context, in *ListActionsRequest, opts ...grpc.CallOption) (*ListActionsResponse, error) {
	if in == nil {
		in = &ListActionsRequest{}
	}
	out := new(ListActionsResponse)
	if err := c.invoke(ctx, ListActionsMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	if c == nil || c.conn == nil {
		return errors.New("batch client connection is required")
	}
	callOpts := append([]grpc.CallOption{platformgrpc.CBORCallOption()}, opts...)
	if err := c.conn.Invoke(outgoingCallID(ctx), method, in, out, callOpts...); err != nil {
		return fromStatus(err)
	}
	return nil
}

// fromStatus restores the domain code carried by a status error. The status
// stays reachable through errors.As.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	code := apperrors.CodeFromStatus(err)
	if code == apperrors.CodeUnknown {
		return err
	}
	return apperrors.Wrap(code, st.Message(), err)
}
