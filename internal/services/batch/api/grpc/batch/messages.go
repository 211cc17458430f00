package batch

import (
	"time"

	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/action"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/message"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/reducer"
)

// PostMessageRequest carries one agent position message.
type PostMessageRequest struct {
	MessageNum uint64 `cbor:"message_num"`
	AgentID    uint64 `cbor:"agent_id"`
	X          uint64 `cbor:"x"`
	Y          uint64 `cbor:"y"`
	Checksum   uint64 `cbor:"checksum"`
}

// Message converts the request to the domain message.
func (r *PostMessageRequest) Message() message.Message {
	if r == nil {
		return message.Message{}
	}
	return message.Message{
		MessageNum: r.MessageNum,
		AgentID:    r.AgentID,
		X:          r.X,
		Y:          r.Y,
		Checksum:   r.Checksum,
	}
}

// PostMessageResponse describes the batch appended for an admitted message.
type PostMessageResponse struct {
	Action Action `cbor:"action"`
}

// ProcessMessageRequest is empty; anyone may fold.
type ProcessMessageRequest struct{}

// ProcessMessageResponse reports one fold.
type ProcessMessageResponse struct {
	Previous      State `cbor:"previous"`
	Current       State `cbor:"current"`
	BatchesFolded int   `cbor:"batches_folded"`
	ActionsFolded int   `cbor:"actions_folded"`
}

// GetStateRequest is empty.
type GetStateRequest struct{}

// GetStateResponse returns the committed aggregate.
type GetStateResponse struct {
	State State `cbor:"state"`
}

// ListActionsRequest pages the action log after a sequence number.
type ListActionsRequest struct {
	AfterSeq uint64 `cbor:"after_seq"`
	Limit    int    `cbor:"limit"`
}

// ListActionsResponse holds one page of the action log.
type ListActionsResponse struct {
	Actions []Action `cbor:"actions"`
}

// State is the wire form of the aggregate and its cursor.
type State struct {
	HighestMsgNum uint64 `cbor:"highest_msg_num"`
	ActionState   string `cbor:"action_state"`
	// UpdatedAtUnixMilli is zero until the first fold commits.
	UpdatedAtUnixMilli int64 `cbor:"updated_at_unix_milli,omitempty"`
}

// Action is the wire form of one appended batch.
type Action struct {
	Seq                uint64   `cbor:"seq"`
	CallID             string   `cbor:"call_id"`
	Values             []uint64 `cbor:"values"`
	PrevState          string   `cbor:"prev_state"`
	State              string   `cbor:"state"`
	CreatedAtUnixMilli int64    `cbor:"created_at_unix_milli"`
}

func stateToWire(state reducer.State) State {
	return State{
		HighestMsgNum:      state.HighestMsgNum,
		ActionState:        state.ActionState.String(),
		UpdatedAtUnixMilli: unixMilli(state.UpdatedAt),
	}
}

func actionToWire(batch action.Batch) Action {
	values := make([]uint64, len(batch.Values))
	copy(values, batch.Values)
	return Action{
		Seq:                batch.Seq,
		CallID:             batch.CallID,
		Values:             values,
		PrevState:          batch.PrevState.String(),
		State:              batch.State.String(),
		CreatedAtUnixMilli: unixMilli(batch.CreatedAt),
	}
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}
