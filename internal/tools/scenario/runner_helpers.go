package scenario

import (
	"fmt"

	batchgrpc "github.com/louisbranch/batchmessaging/internal/services/batch/api/grpc/batch"
)

var messageFields = []string{"message_num", "agent_id", "x", "y", "checksum"}

// messageRequest builds a post request from step arguments. Omitted fields
// are zero; negative or fractional values are rejected.
func messageRequest(args map[string]any) (*batchgrpc.PostMessageRequest, error) {
	values := make(map[string]uint64, len(messageFields))
	for _, key := range messageFields {
		raw, present := args[key]
		if !present {
			continue
		}
		value, ok := raw.(int)
		if !ok || value < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer, got %v", key, raw)
		}
		values[key] = uint64(value)
	}
	for key := range args {
		if !isMessageField(key) {
			return nil, fmt.Errorf("unknown message field %q", key)
		}
	}
	return &batchgrpc.PostMessageRequest{
		MessageNum: values["message_num"],
		AgentID:    values["agent_id"],
		X:          values["x"],
		Y:          values["y"],
		Checksum:   values["checksum"],
	}, nil
}

func isMessageField(key string) bool {
	for _, field := range messageFields {
		if field == key {
			return true
		}
	}
	return false
}

func readInt(args map[string]any, key string) (int, bool) {
	value, ok := args[key]
	if !ok {
		return 0, false
	}
	switch v := value.(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
