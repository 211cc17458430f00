package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	apperrors "github.com/louisbranch/batchmessaging/internal/platform/errors"
	batchgrpc "github.com/louisbranch/batchmessaging/internal/services/batch/api/grpc/batch"
)

// maxDrainFolds bounds one drain step.
const maxDrainFolds = 1000

type scenarioState struct {
	posted   int
	rejected int
	folds    int
	last     *batchgrpc.ProcessMessageResponse
}

func (r *Runner) runStep(ctx context.Context, state *scenarioState, step Step) error {
	switch step.Kind {
	case "post":
		return r.runPostStep(ctx, state, step)
	case "expect_rejected":
		return r.runExpectRejectedStep(ctx, state, step)
	case "process":
		return r.runProcessStep(ctx, state, step)
	case "drain":
		return r.runDrainStep(ctx, state)
	case "expect_highest":
		return r.runExpectHighestStep(ctx, step)
	case "expect_actions":
		return r.runExpectActionsStep(ctx, step)
	default:
		return r.failf("unknown step kind %q", step.Kind)
	}
}

func (r *Runner) runPostStep(ctx context.Context, state *scenarioState, step Step) error {
	req, err := messageRequest(step.Args)
	if err != nil {
		return r.failf("%v", err)
	}
	if _, err := r.client.PostMessage(ctx, req); err != nil {
		if apperrors.GetCode(err) == apperrors.CodeInvalidMessage {
			return r.assertf("message %+v rejected: %v", *req, err)
		}
		return fmt.Errorf("post message: %w", err)
	}
	state.posted++
	return nil
}

func (r *Runner) runExpectRejectedStep(ctx context.Context, state *scenarioState, step Step) error {
	req, err := messageRequest(step.Args)
	if err != nil {
		return r.failf("%v", err)
	}
	_, err = r.client.PostMessage(ctx, req)
	if err == nil {
		state.posted++
		return r.assertf("message %+v was admitted, want rejection", *req)
	}
	if code := apperrors.GetCode(err); code != apperrors.CodeInvalidMessage {
		return fmt.Errorf("post message: %w", err)
	}
	state.rejected++
	return nil
}

func (r *Runner) runProcessStep(ctx context.Context, state *scenarioState, step Step) error {
	resp, err := r.processWithRetry(ctx)
	if err != nil {
		return err
	}
	state.folds++
	state.last = resp
	if want, ok := readInt(step.Args, "batches"); ok && resp.BatchesFolded != want {
		return r.assertf("folded %d batches, want %d", resp.BatchesFolded, want)
	}
	return nil
}

func (r *Runner) runDrainStep(ctx context.Context, state *scenarioState) error {
	for range maxDrainFolds {
		resp, err := r.processWithRetry(ctx)
		if err != nil {
			return err
		}
		state.folds++
		state.last = resp
		if resp.BatchesFolded == 0 {
			return nil
		}
	}
	return r.failf("backlog not drained after %d folds", maxDrainFolds)
}

func (r *Runner) runExpectHighestStep(ctx context.Context, step Step) error {
	want, ok := readInt(step.Args, "value")
	if !ok {
		return r.failf("expect_highest requires a value")
	}
	resp, err := r.client.GetState(ctx, &batchgrpc.GetStateRequest{})
	if err != nil {
		return fmt.Errorf("get state: %w", err)
	}
	if resp.State.HighestMsgNum != uint64(want) {
		return r.assertf("highest = %d, want %d", resp.State.HighestMsgNum, want)
	}
	return nil
}

func (r *Runner) runExpectActionsStep(ctx context.Context, step Step) error {
	want, ok := readInt(step.Args, "value")
	if !ok {
		return r.failf("expect_actions requires a value")
	}
	count := 0
	afterSeq := uint64(0)
	for {
		resp, err := r.client.ListActions(ctx, &batchgrpc.ListActionsRequest{AfterSeq: afterSeq})
		if err != nil {
			return fmt.Errorf("list actions: %w", err)
		}
		if len(resp.Actions) == 0 {
			break
		}
		count += len(resp.Actions)
		afterSeq = resp.Actions[len(resp.Actions)-1].Seq
	}
	if count != want {
		return r.assertf("action log has %d batches, want %d", count, want)
	}
	return nil
}

// processWithRetry folds once, retrying folds that lost a race.
func (r *Runner) processWithRetry(ctx context.Context) (*batchgrpc.ProcessMessageResponse, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 200 * time.Millisecond

	resp, err := backoff.Retry(ctx, func() (*batchgrpc.ProcessMessageResponse, error) {
		resp, err := r.client.ProcessMessage(ctx, &batchgrpc.ProcessMessageRequest{})
		if err == nil {
			return resp, nil
		}
		if apperrors.GetCode(err) == apperrors.CodeStaleRead {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(r.staleRetries)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.logf("fold lost a race, retrying in %s: %v", wait, err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("process message: %w", err)
	}
	return resp, nil
}

func (r *Runner) failf(format string, args ...any) error {
	return r.assertions.Failf(format, args...)
}

func (r *Runner) assertf(format string, args ...any) error {
	return r.assertions.Assertf(format, args...)
}
