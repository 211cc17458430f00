// Package action models the append-only action log: batches of message
// numbers and the content-derived digest chain that names every log prefix.
package action

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/louisbranch/batchmessaging/internal/platform/codec"
	"github.com/zeebo/blake3"
)

// StateSize is the byte length of an action state digest.
const StateSize = 32

// State is the digest of a log prefix. It is the reducer's cursor: two
// logs with the same batches in the same order share every State.
type State [StateSize]byte

type domainKey [32]byte

// Domain keys are ASCII names zero-padded to 32 bytes. Changing one
// invalidates every stored state.
var (
	emptyDomainKey = domainKey{
		'b', 'a', 't', 'c', 'h', '.', 'a', 'c', 't', 'i', 'o', 'n', '.', 'e', 'm', 'p',
		't', 'y', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	batchDomainKey = domainKey{
		'b', 'a', 't', 'c', 'h', '.', 'a', 'c', 't', 'i', 'o', 'n', '.', 'b', 'a', 't',
		'c', 'h', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	stateDomainKey = domainKey{
		'b', 'a', 't', 'c', 'h', '.', 'a', 'c', 't', 'i', 'o', 'n', '.', 's', 't', 'a',
		't', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

var (
	// ErrUnknownState indicates a cursor that names no prefix of the log.
	ErrUnknownState = errors.New("unknown action state")
	// ErrEmptyBatch indicates an append with no values.
	ErrEmptyBatch = errors.New("action batch is empty")
	// ErrChainBroken indicates a batch whose predecessor or digest does not
	// match the chain it claims to extend.
	ErrChainBroken = errors.New("action chain broken")
)

var initialState = State(keyedHash(emptyDomainKey, nil))

// InitialState is the digest of the empty log.
func InitialState() State {
	return initialState
}

// Next returns the state after appending one batch of values to prev.
func Next(prev State, values []uint64) (State, error) {
	encoded, err := codec.Marshal(values)
	if err != nil {
		return State{}, fmt.Errorf("encode batch values: %w", err)
	}
	batchDigest := keyedHash(batchDomainKey, encoded)

	var buf [2 * StateSize]byte
	copy(buf[:StateSize], prev[:])
	copy(buf[StateSize:], batchDigest[:])
	return State(keyedHash(stateDomainKey, buf[:])), nil
}

// String returns the lowercase hex encoding.
func (s State) String() string {
	return hex.EncodeToString(s[:])
}

// IsZero reports whether s is the zero value rather than a computed digest.
func (s State) IsZero() bool {
	return s == State{}
}

// ParseState decodes a hex-encoded state.
func ParseState(value string) (State, error) {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return State{}, fmt.Errorf("parse action state: %w", err)
	}
	if len(raw) != StateSize {
		return State{}, fmt.Errorf("parse action state: want %d bytes, got %d", StateSize, len(raw))
	}
	return State(raw), nil
}

// StateFromBytes copies a stored digest.
func StateFromBytes(raw []byte) (State, error) {
	if len(raw) != StateSize {
		return State{}, fmt.Errorf("action state: want %d bytes, got %d", StateSize, len(raw))
	}
	return State(raw), nil
}

func keyedHash(key domainKey, data []byte) [32]byte {
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		// NewKeyed only fails on a key that is not 32 bytes.
		panic("action: blake3 keyed hasher: " + err.Error())
	}
	hasher.Write(data)
	var out [32]byte
	copy(out[:], hasher.Sum(nil))
	return out
}
