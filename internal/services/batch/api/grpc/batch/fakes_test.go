package batch_test

import (
	"context"

	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/action"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/message"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/reducer"
)

type failingService struct {
	err error
}

func (f failingService) PostMessage(context.Context, message.Message) (action.Batch, error) {
	return action.Batch{}, f.err
}

func (f failingService) ProcessMessage(context.Context) (reducer.Result, error) {
	return reducer.Result{}, f.err
}

func (f failingService) GetState(context.Context) (reducer.State, error) {
	return reducer.State{}, f.err
}

func (f failingService) ListActions(context.Context, uint64, int) ([]action.Batch, error) {
	return nil, f.err
}
