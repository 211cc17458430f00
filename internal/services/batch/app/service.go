// Package app runs the batch messaging service: call dispatch over a store,
// the background processor, and the gRPC server runtime.
package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/louisbranch/batchmessaging/internal/platform/requestctx"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/action"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/message"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/reducer"
	"github.com/louisbranch/batchmessaging/internal/services/batch/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/batchmessaging/internal/services/batch/app"

var (
	// ErrActionLogRequired indicates a missing action log.
	ErrActionLogRequired = errors.New("action log is required")
	// ErrStateStoreRequired indicates a missing state store.
	ErrStateStoreRequired = errors.New("state store is required")
)

// Service dispatches the batch messaging calls. PostMessage and
// ProcessMessage are the only mutating calls; each is one unit of work
// against the store.
type Service struct {
	actions    storage.ActionLog
	states     reducer.StateStore
	maxBatches int
	tracer     trace.Tracer
	now        func() time.Time
	logf       func(string, ...any)
}

// Option configures a Service.
type Option func(*Service)

// WithMaxBatches overrides the per-call fold limit.
func WithMaxBatches(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatches = n
		}
	}
}

// WithTracerProvider sets the tracer provider; the global one by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithClock overrides the clock used to stamp committed state.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogf overrides the logger; log.Printf by default.
func WithLogf(logf func(string, ...any)) Option {
	return func(s *Service) {
		if logf != nil {
			s.logf = logf
		}
	}
}

// NewService builds a service over an action log and state store. A single
// storage.Store usually serves as both.
func NewService(actions storage.ActionLog, states reducer.StateStore, opts ...Option) (*Service, error) {
	if actions == nil {
		return nil, ErrActionLogRequired
	}
	if states == nil {
		return nil, ErrStateStoreRequired
	}
	s := &Service{
		actions:    actions,
		states:     states,
		maxBatches: reducer.DefaultMaxBatches,
		tracer:     otel.GetTracerProvider().Tracer(tracerName),
		now:        time.Now,
		logf:       log.Printf,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// MaxBatches returns the per-call fold limit.
func (s *Service) MaxBatches() int {
	return s.maxBatches
}

// PostMessage validates msg and appends its number to the action log as one
// batch. Rejected messages leave the log untouched.
func (s *Service) PostMessage(ctx context.Context, msg message.Message) (action.Batch, error) {
	ctx, callID := requestctx.EnsureCallID(ctx)
	ctx, span := s.tracer.Start(ctx, "batch.PostMessage", trace.WithAttributes(
		attribute.String("batch.call_id", callID),
		attribute.Int64("batch.agent_id", int64(msg.AgentID)),
		attribute.Int64("batch.message_num", int64(msg.MessageNum)),
	))
	defer span.End()

	if err := message.Validate(msg); err != nil {
		return action.Batch{}, s.fail(span, err)
	}

	batch, err := s.actions.AppendBatch(ctx, callID, []uint64{msg.MessageNum})
	if err != nil {
		return action.Batch{}, s.fail(span, err)
	}
	span.SetAttributes(attribute.Int64("batch.seq", int64(batch.Seq)))
	return batch, nil
}

// ProcessMessage folds pending batches into the aggregate. Callers retry
// stale reads; the service never does.
func (s *Service) ProcessMessage(ctx context.Context) (reducer.Result, error) {
	ctx, span := s.tracer.Start(ctx, "batch.ProcessMessage", trace.WithAttributes(
		attribute.Int("batch.max_batches", s.maxBatches),
	))
	defer span.End()

	result, err := reducer.Process(ctx, s.actions, s.states, reducer.Options{
		MaxBatches: s.maxBatches,
		Now:        s.now,
	})
	if err != nil {
		return result, s.fail(span, err)
	}
	span.SetAttributes(
		attribute.Int("batch.batches_folded", result.Batches),
		attribute.Int("batch.actions_folded", result.Actions),
		attribute.Int64("batch.highest_msg_num", int64(result.Current.HighestMsgNum)),
	)
	if result.Committed() {
		s.logf("folded %d batches: highest %d -> %d, state %s",
			result.Batches, result.Previous.HighestMsgNum, result.Current.HighestMsgNum, result.Current.ActionState)
	}
	return result, nil
}

// GetState returns the committed aggregate and cursor.
func (s *Service) GetState(ctx context.Context) (reducer.State, error) {
	state, err := s.states.GetState(ctx)
	if err != nil {
		return reducer.State{}, domainError(err)
	}
	return state, nil
}

// ListActions pages the action log by sequence.
func (s *Service) ListActions(ctx context.Context, afterSeq uint64, limit int) ([]action.Batch, error) {
	batches, err := s.actions.ListBatches(ctx, afterSeq, limit)
	if err != nil {
		return nil, domainError(err)
	}
	return batches, nil
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return domainError(err)
}
