package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	apperrors "github.com/louisbranch/batchmessaging/internal/platform/errors"
	"github.com/louisbranch/batchmessaging/internal/platform/requestctx"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/action"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/message"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/reducer"
	"github.com/louisbranch/batchmessaging/internal/services/batch/storage/memory"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) (*Service, *memory.Store, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	store := memory.New()
	base := []Option{
		WithTracerProvider(tp),
		WithClock(func() time.Time { return fixedNow }),
		WithLogf(func(string, ...any) {}),
	}
	service, err := NewService(store, store, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service, store, recorder
}

func endedSpan(t *testing.T, recorder *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, span := range recorder.Ended() {
		if span.Name() == name {
			return span
		}
	}
	t.Fatalf("span %q not recorded", name)
	return nil
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestNewServiceRequiresStores(t *testing.T) {
	store := memory.New()
	if _, err := NewService(nil, store); !errors.Is(err, ErrActionLogRequired) {
		t.Fatalf("expected ErrActionLogRequired, got %v", err)
	}
	if _, err := NewService(store, nil); !errors.Is(err, ErrStateStoreRequired) {
		t.Fatalf("expected ErrStateStoreRequired, got %v", err)
	}
}

func TestWithMaxBatchesIgnoresNonPositive(t *testing.T) {
	service, _, _ := newTestService(t, WithMaxBatches(0))
	if service.MaxBatches() != reducer.DefaultMaxBatches {
		t.Fatalf("max batches = %d, want %d", service.MaxBatches(), reducer.DefaultMaxBatches)
	}
	service, _, _ = newTestService(t, WithMaxBatches(7))
	if service.MaxBatches() != 7 {
		t.Fatalf("max batches = %d, want 7", service.MaxBatches())
	}
}

func TestPostMessageAppendsOneBatch(t *testing.T) {
	service, store, recorder := newTestService(t)
	ctx := requestctx.WithCallID(context.Background(), "call-1")

	batch, err := service.PostMessage(ctx, message.Message{MessageNum: 10, AgentID: 1, X: 1000, Y: 5000, Checksum: 6001})
	if err != nil {
		t.Fatalf("post message: %v", err)
	}
	if batch.Seq != 1 || batch.CallID != "call-1" {
		t.Fatalf("unexpected batch: %+v", batch)
	}
	if len(batch.Values) != 1 || batch.Values[0] != 10 {
		t.Fatalf("values = %v, want [10]", batch.Values)
	}

	state, err := store.GetState(context.Background())
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if !state.Same(reducer.InitialState()) {
		t.Fatal("post must not touch the aggregate")
	}

	span := endedSpan(t, recorder, "batch.PostMessage")
	if v, ok := spanAttr(span, "batch.call_id"); !ok || v.AsString() != "call-1" {
		t.Fatalf("call id attribute = %v", v.AsString())
	}
	if v, ok := spanAttr(span, "batch.seq"); !ok || v.AsInt64() != 1 {
		t.Fatalf("seq attribute = %v", v.AsInt64())
	}
}

func TestPostMessageGeneratesCallID(t *testing.T) {
	service, _, _ := newTestService(t)
	batch, err := service.PostMessage(context.Background(), message.Message{MessageNum: 4})
	if err != nil {
		t.Fatalf("post message: %v", err)
	}
	if strings.TrimSpace(batch.CallID) == "" {
		t.Fatal("expected generated call id")
	}
}

func TestPostMessageRejectsInvalidMessage(t *testing.T) {
	service, store, recorder := newTestService(t)

	_, err := service.PostMessage(context.Background(), message.Message{MessageNum: 10, AgentID: 1, X: 1000, Y: 5000, Checksum: 6003})
	if !errors.Is(err, message.ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected domain error, got %T", err)
	}
	if domainErr.Code != apperrors.CodeInvalidMessage {
		t.Fatalf("code = %s, want %s", domainErr.Code, apperrors.CodeInvalidMessage)
	}
	if len(domainErr.Violations) != 1 || domainErr.Violations[0].Field != message.FieldChecksum {
		t.Fatalf("violations = %+v", domainErr.Violations)
	}

	batches, err := store.ListBatches(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("list batches: %v", err)
	}
	if len(batches) != 0 {
		t.Fatalf("rejected post appended %d batches", len(batches))
	}

	span := endedSpan(t, recorder, "batch.PostMessage")
	if span.Status().Code != codes.Error {
		t.Fatalf("span status = %v, want error", span.Status().Code)
	}
	if len(span.Events()) == 0 {
		t.Fatal("expected recorded error event")
	}
}

func TestProcessMessageFoldsAndLogs(t *testing.T) {
	var logged []string
	service, _, recorder := newTestService(t, WithLogf(func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}))
	ctx := context.Background()

	for _, num := range []uint64{3, 9, 4} {
		if _, err := service.PostMessage(ctx, message.Message{MessageNum: num}); err != nil {
			t.Fatalf("post %d: %v", num, err)
		}
	}

	result, err := service.ProcessMessage(ctx)
	if err != nil {
		t.Fatalf("process message: %v", err)
	}
	if result.Current.HighestMsgNum != 9 || result.Batches != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !result.Current.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("updated at = %v, want %v", result.Current.UpdatedAt, fixedNow)
	}
	if len(logged) != 1 || !strings.Contains(logged[0], "highest 0 -> 9") {
		t.Fatalf("logged = %v", logged)
	}

	span := endedSpan(t, recorder, "batch.ProcessMessage")
	if v, ok := spanAttr(span, "batch.batches_folded"); !ok || v.AsInt64() != 3 {
		t.Fatalf("batches folded attribute = %v", v.AsInt64())
	}

	again, err := service.ProcessMessage(ctx)
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if again.Committed() || len(logged) != 1 {
		t.Fatalf("empty fold must not commit or log: %+v", again)
	}
}

type staleStates struct {
	reducer.StateStore
}

func (staleStates) CompareAndSwapState(context.Context, reducer.State, reducer.State) error {
	return reducer.ErrStaleRead
}

func TestProcessMessageReportsStaleRead(t *testing.T) {
	store := memory.New()
	service, err := NewService(store, staleStates{StateStore: store}, WithLogf(func(string, ...any) {}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := service.PostMessage(context.Background(), message.Message{MessageNum: 1}); err != nil {
		t.Fatalf("post: %v", err)
	}

	_, err = service.ProcessMessage(context.Background())
	if !errors.Is(err, reducer.ErrStaleRead) {
		t.Fatalf("expected ErrStaleRead, got %v", err)
	}
	if code := apperrors.GetCode(err); code != apperrors.CodeStaleRead {
		t.Fatalf("code = %s, want %s", code, apperrors.CodeStaleRead)
	}
}

func TestGetStateAndListActions(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	state, err := service.GetState(ctx)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.ActionState != action.InitialState() || state.HighestMsgNum != 0 {
		t.Fatalf("unexpected initial state: %+v", state)
	}

	for i := uint64(1); i <= 3; i++ {
		if _, err := service.PostMessage(ctx, message.Message{MessageNum: i}); err != nil {
			t.Fatalf("post %d: %v", i, err)
		}
	}
	batches, err := service.ListActions(ctx, 1, 10)
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(batches) != 2 || batches[0].Seq != 2 {
		t.Fatalf("unexpected batches: %+v", batches)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := service.GetState(cancelled); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDomainErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.Code
	}{
		{name: "invalid", err: &message.ValidationError{Violations: []message.Violation{{Field: "x"}}}, want: apperrors.CodeInvalidMessage},
		{name: "stale", err: fmt.Errorf("commit: %w", reducer.ErrStaleRead), want: apperrors.CodeStaleRead},
		{name: "unknown cursor", err: fmt.Errorf("fetch: %w", action.ErrUnknownState), want: apperrors.CodeUnknownActionState},
		{name: "cursor mismatch", err: reducer.ErrCursorMismatch, want: apperrors.CodeCursorMismatch},
		{name: "broken chain", err: action.ErrChainBroken, want: apperrors.CodeCursorMismatch},
		{name: "already classified", err: apperrors.New(apperrors.CodeNotFound, "gone"), want: apperrors.CodeNotFound},
		{name: "other", err: errors.New("disk full"), want: apperrors.CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domainError(tt.err)
			if code := apperrors.GetCode(got); code != tt.want {
				t.Fatalf("code = %s, want %s", code, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Fatalf("expected %v to remain in chain", tt.err)
			}
		})
	}
	if domainError(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}
