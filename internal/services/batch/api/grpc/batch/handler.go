package batch

import (
	"context"
	"errors"

	apperrors "github.com/louisbranch/batchmessaging/internal/platform/errors"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/action"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/message"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/reducer"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Service is the call dispatcher the handler serves.
type Service interface {
	PostMessage(ctx context.Context, msg message.Message) (action.Batch, error)
	ProcessMessage(ctx context.Context) (reducer.Result, error)
	GetState(ctx context.Context) (reducer.State, error)
	ListActions(ctx context.Context, afterSeq uint64, limit int) ([]action.Batch, error)
}

// Handler implements BatchMessagingServer over a Service.
type Handler struct {
	service Service
}

// NewHandler builds a gRPC handler.
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// PostMessage validates and appends one message.
func (h *Handler) PostMessage(ctx context.Context, in *PostMessageRequest) (*PostMessageResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "post message request is required")
	}
	batch, err := h.service.PostMessage(ctx, in.Message())
	if err != nil {
		return nil, toStatus(err)
	}
	return &PostMessageResponse{Action: actionToWire(batch)}, nil
}

// ProcessMessage folds pending batches.
func (h *Handler) ProcessMessage(ctx context.Context, _ *ProcessMessageRequest) (*ProcessMessageResponse, error) {
	result, err := h.service.ProcessMessage(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ProcessMessageResponse{
		Previous:      stateToWire(result.Previous),
		Current:       stateToWire(result.Current),
		BatchesFolded: result.Batches,
		ActionsFolded: result.Actions,
	}, nil
}

// GetState returns the committed aggregate.
func (h *Handler) GetState(ctx context.Context, _ *GetStateRequest) (*GetStateResponse, error) {
	state, err := h.service.GetState(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetStateResponse{State: stateToWire(state)}, nil
}

// ListActions pages the action log.
func (h *Handler) ListActions(ctx context.Context, in *ListActionsRequest) (*ListActionsResponse, error) {
	if in == nil {
		in = &ListActionsRequest{}
	}
	if in.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}
	batches, err := h.service.ListActions(ctx, in.AfterSeq, in.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &ListActionsResponse{Actions: make([]Action, 0, len(batches))}
	for _, batch := range batches {
		resp.Actions = append(resp.Actions, actionToWire(batch))
	}
	return resp, nil
}

func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		return domainErr.ToGRPCStatus()
	}
	return status.Error(codes.Internal, err.Error())
}
