// Package memory provides an in-process Store for tests and single-node runs.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/action"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/reducer"
	"github.com/louisbranch/batchmessaging/internal/services/batch/storage"
)

var errStoreRequired = errors.New("memory store is required")

// Store keeps the action log and committed state in memory.
type Store struct {
	mu      sync.Mutex
	batches []action.Batch
	// prefix maps each reachable state to the number of batches before it.
	prefix map[action.State]int
	state  reducer.State
	now    func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	initial := action.InitialState()
	return &Store{
		prefix: map[action.State]int{initial: 0},
		state:  reducer.InitialState(),
		now:    time.Now,
	}
}

// AppendBatch commits values as one batch after the current tail.
func (s *Store) AppendBatch(ctx context.Context, callID string, values []uint64) (action.Batch, error) {
	if err := checkCall(ctx, s); err != nil {
		return action.Batch{}, err
	}
	if len(values) == 0 {
		return action.Batch{}, action.ErrEmptyBatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := action.InitialState()
	if n := len(s.batches); n > 0 {
		prev = s.batches[n-1].State
	}
	next, err := action.Next(prev, values)
	if err != nil {
		return action.Batch{}, err
	}

	batch := action.Batch{
		Seq:       uint64(len(s.batches) + 1),
		CallID:    strings.TrimSpace(callID),
		Values:    append([]uint64(nil), values...),
		PrevState: prev,
		State:     next,
		CreatedAt: s.now().UTC(),
	}
	s.batches = append(s.batches, batch)
	s.prefix[next] = len(s.batches)
	return cloneBatch(batch), nil
}

// FetchSince returns up to maxBatches batches following cursor.
func (s *Store) FetchSince(ctx context.Context, cursor action.State, maxBatches int) (action.Page, error) {
	if err := checkCall(ctx, s); err != nil {
		return action.Page{}, err
	}
	if maxBatches <= 0 {
		maxBatches = reducer.DefaultMaxBatches
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start, ok := s.prefix[cursor]
	if !ok {
		return action.Page{}, fmt.Errorf("%w: %s", action.ErrUnknownState, cursor)
	}
	end := start + min(maxBatches, len(s.batches)-start)

	page := action.Page{State: cursor}
	for _, b := range s.batches[start:end] {
		page.Batches = append(page.Batches, cloneBatch(b))
	}
	if len(page.Batches) > 0 {
		page.State = page.Batches[len(page.Batches)-1].State
	}
	return page, nil
}

// ListBatches returns batches with Seq greater than afterSeq.
func (s *Store) ListBatches(ctx context.Context, afterSeq uint64, limit int) ([]action.Batch, error) {
	if err := checkCall(ctx, s); err != nil {
		return nil, err
	}
	limit = storage.NormalizeLimit(limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	if afterSeq >= uint64(len(s.batches)) {
		return nil, nil
	}
	start := int(afterSeq)
	end := start + min(limit, len(s.batches)-start)
	out := make([]action.Batch, 0, end-start)
	for _, b := range s.batches[start:end] {
		out = append(out, cloneBatch(b))
	}
	return out, nil
}

// GetState returns the committed aggregate and cursor.
func (s *Store) GetState(ctx context.Context) (reducer.State, error) {
	if err := checkCall(ctx, s); err != nil {
		return reducer.State{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

// CompareAndSwapState writes next when the committed state still matches
// expected.
func (s *Store) CompareAndSwapState(ctx context.Context, expected, next reducer.State) error {
	if err := checkCall(ctx, s); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Same(expected) {
		return reducer.ErrStaleRead
	}
	s.state = next
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func checkCall(ctx context.Context, s *Store) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if s == nil {
		return errStoreRequired
	}
	return nil
}

func cloneBatch(b action.Batch) action.Batch {
	b.Values = append([]uint64(nil), b.Values...)
	return b
}
