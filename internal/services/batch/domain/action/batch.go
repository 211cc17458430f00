package action

import (
	"fmt"
	"time"
)

// Batch is the group of values one call appended. Seq is the commit order,
// starting at 1.
type Batch struct {
	Seq       uint64
	CallID    string
	Values    []uint64
	PrevState State
	State     State
	CreatedAt time.Time
}

// Page is a bounded run of batches following a cursor, with the state
// reached after the last of them. An empty page carries the cursor itself.
type Page struct {
	Batches []Batch
	State   State
}

// Len returns the number of values across all batches in the page.
func (p Page) Len() int {
	total := 0
	for _, b := range p.Batches {
		total += len(b.Values)
	}
	return total
}

// Verify checks that batch extends prev and that its stored digest matches
// its values.
func (b Batch) Verify(prev State) error {
	if b.PrevState != prev {
		return fmt.Errorf("%w: batch %d predecessor %s, want %s", ErrChainBroken, b.Seq, b.PrevState, prev)
	}
	next, err := Next(prev, b.Values)
	if err != nil {
		return err
	}
	if next != b.State {
		return fmt.Errorf("%w: batch %d state %s, want %s", ErrChainBroken, b.Seq, b.State, next)
	}
	return nil
}

// Chain walks batches from start, verifying each link, and returns the
// final state.
func Chain(start State, batches []Batch) (State, error) {
	current := start
	for _, b := range batches {
		if err := b.Verify(current); err != nil {
			return State{}, err
		}
		current = b.State
	}
	return current, nil
}
