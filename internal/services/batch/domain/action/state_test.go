package action

import (
	"errors"
	"strings"
	"testing"
)

func TestInitialStateIsStable(t *testing.T) {
	if InitialState() != InitialState() {
		t.Fatal("initial state changed between calls")
	}
	if InitialState().IsZero() {
		t.Fatal("initial state should not be the zero value")
	}
}

func TestNextIsDeterministicAndOrderSensitive(t *testing.T) {
	first, err := Next(InitialState(), []uint64{1, 2})
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	again, err := Next(InitialState(), []uint64{1, 2})
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if first != again {
		t.Fatalf("state changed: %s vs %s", first, again)
	}

	swapped, err := Next(InitialState(), []uint64{2, 1})
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if swapped == first {
		t.Fatal("expected value order to change the state")
	}
}

func TestNextDistinguishesBatchBoundaries(t *testing.T) {
	oneBatch, err := Next(InitialState(), []uint64{1, 2})
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	a, err := Next(InitialState(), []uint64{1})
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	twoBatches, err := Next(a, []uint64{2})
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if oneBatch == twoBatches {
		t.Fatal("expected batch grouping to change the state")
	}
}

func TestParseStateRoundTrip(t *testing.T) {
	state, err := Next(InitialState(), []uint64{42})
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	parsed, err := ParseState(state.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != state {
		t.Fatalf("parsed = %s, want %s", parsed, state)
	}
	if len(state.String()) != 2*StateSize {
		t.Fatalf("hex length = %d", len(state.String()))
	}
}

func TestParseStateRejectsBadInput(t *testing.T) {
	for _, value := range []string{"zz", "abcd", strings.Repeat("a", 2*StateSize+2)} {
		if _, err := ParseState(value); err == nil {
			t.Fatalf("expected error for %q", value)
		}
	}
	if _, err := StateFromBytes([]byte{1, 2}); err == nil {
		t.Fatal("expected error for short bytes")
	}
}

func TestChainVerifiesLinks(t *testing.T) {
	s1, _ := Next(InitialState(), []uint64{5})
	s2, _ := Next(s1, []uint64{7, 3})
	batches := []Batch{
		{Seq: 1, Values: []uint64{5}, PrevState: InitialState(), State: s1},
		{Seq: 2, Values: []uint64{7, 3}, PrevState: s1, State: s2},
	}

	got, err := Chain(InitialState(), batches)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if got != s2 {
		t.Fatalf("chain state = %s, want %s", got, s2)
	}

	tampered := append([]Batch(nil), batches...)
	tampered[1].Values = []uint64{9, 3}
	if _, err := Chain(InitialState(), tampered); !errors.Is(err, ErrChainBroken) {
		t.Fatalf("expected ErrChainBroken for tampered values, got %v", err)
	}

	if _, err := Chain(s1, batches); !errors.Is(err, ErrChainBroken) {
		t.Fatalf("expected ErrChainBroken for wrong start, got %v", err)
	}
}

func TestPageLen(t *testing.T) {
	page := Page{Batches: []Batch{{Values: []uint64{1, 2}}, {Values: []uint64{3}}}}
	if page.Len() != 3 {
		t.Fatalf("len = %d, want 3", page.Len())
	}
}
