// Package reducer folds pending action log batches into the running
// aggregate and commits the aggregate and cursor as one compare-and-swap.
package reducer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/action"
)

// DefaultMaxBatches bounds the batches folded by one Process call.
const DefaultMaxBatches = 200

var (
	// ErrLogRequired indicates a missing action log.
	ErrLogRequired = errors.New("action log is required")
	// ErrStateStoreRequired indicates a missing state store.
	ErrStateStoreRequired = errors.New("state store is required")
	// ErrStaleRead indicates the stored state changed between read and commit.
	ErrStaleRead = errors.New("stale read: state changed since it was read")
	// ErrCursorMismatch indicates the log reported a cursor that does not
	// follow from the batches it returned.
	ErrCursorMismatch = errors.New("action log cursor mismatch")
)

// State is the committed aggregate and the cursor it was folded up to.
type State struct {
	HighestMsgNum uint64
	ActionState   action.State
	UpdatedAt     time.Time
}

// Same reports whether s and other hold the same aggregate and cursor.
// UpdatedAt is bookkeeping and does not take part in the comparison.
func (s State) Same(other State) bool {
	return s.HighestMsgNum == other.HighestMsgNum && s.ActionState == other.ActionState
}

// InitialState is the state before any fold.
func InitialState() State {
	return State{ActionState: action.InitialState()}
}

// Log reads pending batches after a cursor.
type Log interface {
	FetchSince(ctx context.Context, cursor action.State, maxBatches int) (action.Page, error)
}

// StateStore holds the committed state. CompareAndSwapState must write next
// only when the stored aggregate and cursor still equal expected, and return
// ErrStaleRead otherwise.
type StateStore interface {
	GetState(ctx context.Context) (State, error)
	CompareAndSwapState(ctx context.Context, expected, next State) error
}

// Combine merges one value into an accumulator.
type Combine func(acc, value uint64) uint64

// Max keeps the larger of acc and value.
func Max(acc, value uint64) uint64 {
	if value > acc {
		return value
	}
	return acc
}

// Fold applies combine to every value of every batch, in log order.
func Fold(initial uint64, batches []action.Batch, combine Combine) uint64 {
	acc := initial
	for _, b := range batches {
		for _, v := range b.Values {
			acc = combine(acc, v)
		}
	}
	return acc
}

// Options configures a Process call.
type Options struct {
	// MaxBatches caps the batches folded; DefaultMaxBatches when <= 0.
	MaxBatches int
	// Now stamps UpdatedAt; time.Now when nil.
	Now func() time.Time
}

// Result describes one Process call.
type Result struct {
	Previous State
	Current  State
	// Batches and Actions count what was folded. Both are zero for a no-op.
	Batches int
	Actions int
}

// Committed reports whether the call advanced the state.
func (r Result) Committed() bool {
	return r.Batches > 0
}

// Process reads the committed state, folds up to MaxBatches pending batches
// with Max, and commits the new aggregate and cursor together. With nothing
// pending it returns the unchanged state and writes nothing.
func Process(ctx context.Context, log Log, states StateStore, options Options) (Result, error) {
	if log == nil {
		return Result{}, ErrLogRequired
	}
	if states == nil {
		return Result{}, ErrStateStoreRequired
	}
	maxBatches := options.MaxBatches
	if maxBatches <= 0 {
		maxBatches = DefaultMaxBatches
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}

	previous, err := states.GetState(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("get state: %w", err)
	}
	result := Result{Previous: previous, Current: previous}

	page, err := log.FetchSince(ctx, previous.ActionState, maxBatches)
	if err != nil {
		return result, fmt.Errorf("fetch pending actions: %w", err)
	}
	if len(page.Batches) == 0 {
		return result, nil
	}
	if len(page.Batches) > maxBatches {
		return result, fmt.Errorf("action log returned %d batches, limit %d", len(page.Batches), maxBatches)
	}

	reached, err := action.Chain(previous.ActionState, page.Batches)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrCursorMismatch, err)
	}
	if reached != page.State {
		return result, fmt.Errorf("%w: folded to %s, log reported %s", ErrCursorMismatch, reached, page.State)
	}

	next := State{
		HighestMsgNum: Fold(previous.HighestMsgNum, page.Batches, Max),
		ActionState:   reached,
		UpdatedAt:     now().UTC(),
	}
	if err := states.CompareAndSwapState(ctx, previous, next); err != nil {
		return result, err
	}

	result.Current = next
	result.Batches = len(page.Batches)
	result.Actions = page.Len()
	return result, nil
}
