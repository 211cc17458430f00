package domain

import (
	"context"
	"fmt"

	"github.com/louisbranch/batchmessaging/internal/platform/requestctx"
	batchgrpc "github.com/louisbranch/batchmessaging/internal/services/batch/api/grpc/batch"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// PostMessageInput represents the MCP tool input for posting a message.
type PostMessageInput struct {
	MessageNum uint64 `json:"message_num" jsonschema:"message number folded into the running maximum (0 to 2^53; larger JSON numbers lose precision)"`
	AgentID    uint64 `json:"agent_id" jsonschema:"agent identifier (0 bypasses validation, otherwise at most 3000)"`
	X          uint64 `json:"x" jsonschema:"x coordinate (at most 15000)"`
	Y          uint64 `json:"y" jsonschema:"y coordinate (5000 to 20000 and greater than x)"`
	Checksum   uint64 `json:"checksum" jsonschema:"must equal agent_id + x + y"`
}

// ActionEntry is one appended batch of the action log.
type ActionEntry struct {
	Seq       uint64   `json:"seq" jsonschema:"log sequence number"`
	CallID    string   `json:"call_id" jsonschema:"call that appended the batch"`
	Values    []uint64 `json:"values" jsonschema:"message numbers in the batch"`
	PrevState string   `json:"prev_state" jsonschema:"action state before the batch"`
	State     string   `json:"state" jsonschema:"action state after the batch"`
	CreatedAt string   `json:"created_at" jsonschema:"RFC3339 timestamp when the batch was appended"`
}

// PostMessageResult represents the MCP tool output for posting a message.
type PostMessageResult struct {
	Action ActionEntry `json:"action" jsonschema:"batch appended for the message"`
}

// PostMessageTool defines the MCP tool schema for posting a message.
func PostMessageTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "batch_post_message",
		Description: "Validates an agent position message and appends its message number to the action log. Does not update the aggregate; call batch_process_messages for that.",
	}
}

// PostMessageHandler executes a post message request.
func PostMessageHandler(client Client) mcp.ToolHandlerFor[PostMessageInput, PostMessageResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PostMessageInput) (*mcp.CallToolResult, PostMessageResult, error) {
		if client == nil {
			return nil, PostMessageResult{}, fmt.Errorf("batch client is not configured")
		}
		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()
		callCtx, _ := requestctx.EnsureCallID(runCtx)

		response, err := client.PostMessage(callCtx, &batchgrpc.PostMessageRequest{
			MessageNum: input.MessageNum,
			AgentID:    input.AgentID,
			X:          input.X,
			Y:          input.Y,
			Checksum:   input.Checksum,
		})
		if err != nil {
			return nil, PostMessageResult{}, callFailed("post message", err)
		}
		if response == nil {
			return nil, PostMessageResult{}, fmt.Errorf("post message response is missing")
		}
		return nil, PostMessageResult{Action: actionEntry(response.Action)}, nil
	}
}

// ListActionsInput represents the MCP tool input for listing the action log.
type ListActionsInput struct {
	AfterSeq uint64 `json:"after_seq,omitempty" jsonschema:"return batches after this sequence number"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum batches to return (default 200, at most 1000)"`
}

// ListActionsResult represents the MCP tool output for listing the action log.
type ListActionsResult struct {
	Actions []ActionEntry `json:"actions" jsonschema:"batches in log order"`
	NextSeq uint64        `json:"next_seq,omitempty" jsonschema:"after_seq for the next page, when the page was non-empty"`
}

// ListActionsTool defines the MCP tool schema for listing the action log.
func ListActionsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "batch_list_actions",
		Description: "Lists appended batches of the action log in sequence order.",
	}
}

// ListActionsHandler executes a list actions request.
func ListActionsHandler(client Client) mcp.ToolHandlerFor[ListActionsInput, ListActionsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListActionsInput) (*mcp.CallToolResult, ListActionsResult, error) {
		if client == nil {
			return nil, ListActionsResult{}, fmt.Errorf("batch client is not configured")
		}
		if input.Limit < 0 {
			return nil, ListActionsResult{}, fmt.Errorf("limit must not be negative")
		}
		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()

		response, err := client.ListActions(runCtx, &batchgrpc.ListActionsRequest{
			AfterSeq: input.AfterSeq,
			Limit:    input.Limit,
		})
		if err != nil {
			return nil, ListActionsResult{}, callFailed("list actions", err)
		}
		if response == nil {
			return nil, ListActionsResult{}, fmt.Errorf("list actions response is missing")
		}

		result := ListActionsResult{Actions: make([]ActionEntry, 0, len(response.Actions))}
		for _, a := range response.Actions {
			result.Actions = append(result.Actions, actionEntry(a))
		}
		if n := len(result.Actions); n > 0 {
			result.NextSeq = result.Actions[n-1].Seq
		}
		return nil, result, nil
	}
}

func actionEntry(a batchgrpc.Action) ActionEntry {
	values := a.Values
	if values == nil {
		values = []uint64{}
	}
	return ActionEntry{
		Seq:       a.Seq,
		CallID:    a.CallID,
		Values:    values,
		PrevState: a.PrevState,
		State:     a.State,
		CreatedAt: formatUnixMilli(a.CreatedAtUnixMilli),
	}
}
