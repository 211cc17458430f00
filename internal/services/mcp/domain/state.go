package domain

import (
	"context"
	"encoding/json"
	"fmt"

	batchgrpc "github.com/louisbranch/batchmessaging/internal/services/batch/api/grpc/batch"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// StateResourceURI addresses the committed aggregate.
	StateResourceURI = "batch://state"
	// maxProcessCalls bounds one drain request.
	maxProcessCalls = 50
)

// StateEntry is the committed aggregate and its cursor.
type StateEntry struct {
	HighestMsgNum uint64 `json:"highest_msg_num" jsonschema:"largest folded message number"`
	ActionState   string `json:"action_state" jsonschema:"cursor: action state folded up to"`
	UpdatedAt     string `json:"updated_at,omitempty" jsonschema:"RFC3339 timestamp of the last fold"`
}

// StateInput is empty.
type StateInput struct{}

// StateResult represents the MCP tool output for reading the aggregate.
type StateResult struct {
	State StateEntry `json:"state" jsonschema:"committed state"`
}

// StateTool defines the MCP tool schema for reading the aggregate.
func StateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "batch_state",
		Description: "Returns the highest folded message number and the action state cursor.",
	}
}

// StateHandler executes a state read.
func StateHandler(client Client) mcp.ToolHandlerFor[StateInput, StateResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ StateInput) (*mcp.CallToolResult, StateResult, error) {
		state, err := readState(ctx, client)
		if err != nil {
			return nil, StateResult{}, err
		}
		return nil, StateResult{State: state}, nil
	}
}

// ProcessMessagesInput represents the MCP tool input for folding pending messages.
type ProcessMessagesInput struct {
	Drain bool `json:"drain,omitempty" jsonschema:"keep folding capped pages until nothing is pending"`
}

// ProcessMessagesResult represents the MCP tool output for folding pending messages.
type ProcessMessagesResult struct {
	Previous      StateEntry `json:"previous" jsonschema:"state before the first fold"`
	Current       StateEntry `json:"current" jsonschema:"state after the last fold"`
	Calls         int        `json:"calls" jsonschema:"process calls made"`
	BatchesFolded int        `json:"batches_folded" jsonschema:"batches folded across all calls"`
	ActionsFolded int        `json:"actions_folded" jsonschema:"values folded across all calls"`
}

// ProcessMessagesTool defines the MCP tool schema for folding pending messages.
func ProcessMessagesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "batch_process_messages",
		Description: "Folds pending messages into the running maximum, at most 200 batches per call. A STALE_READ error means another fold won the race; retry.",
	}
}

// ProcessMessagesHandler executes one fold, or several when draining.
func ProcessMessagesHandler(client Client) mcp.ToolHandlerFor[ProcessMessagesInput, ProcessMessagesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ProcessMessagesInput) (*mcp.CallToolResult, ProcessMessagesResult, error) {
		if client == nil {
			return nil, ProcessMessagesResult{}, fmt.Errorf("batch client is not configured")
		}

		var result ProcessMessagesResult
		for result.Calls < maxProcessCalls {
			response, err := processOnce(ctx, client)
			if err != nil {
				return nil, ProcessMessagesResult{}, err
			}
			if result.Calls == 0 {
				result.Previous = stateEntry(response.Previous)
			}
			result.Calls++
			result.Current = stateEntry(response.Current)
			result.BatchesFolded += response.BatchesFolded
			result.ActionsFolded += response.ActionsFolded
			if !input.Drain || response.BatchesFolded == 0 {
				break
			}
		}
		return nil, result, nil
	}
}

func processOnce(ctx context.Context, client Client) (*batchgrpc.ProcessMessageResponse, error) {
	runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
	defer cancel()

	response, err := client.ProcessMessage(runCtx, &batchgrpc.ProcessMessageRequest{})
	if err != nil {
		return nil, callFailed("process messages", err)
	}
	if response == nil {
		return nil, fmt.Errorf("process messages response is missing")
	}
	return response, nil
}

// StateResource defines the MCP resource for the committed aggregate.
func StateResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "batch_state",
		Title:       "Batch state",
		Description: "Committed highest message number and action state cursor.",
		MIMEType:    "application/json",
		URI:         StateResourceURI,
	}
}

// StateResourceHandler returns the committed aggregate as JSON.
func StateResourceHandler(client Client) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := StateResourceURI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}
		if uri != StateResourceURI {
			return nil, fmt.Errorf("unknown resource %q; use %s", uri, StateResourceURI)
		}

		state, err := readState(ctx, client)
		if err != nil {
			return nil, err
		}
		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal state: %w", err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}

func readState(ctx context.Context, client Client) (StateEntry, error) {
	if client == nil {
		return StateEntry{}, fmt.Errorf("batch client is not configured")
	}
	runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
	defer cancel()

	response, err := client.GetState(runCtx, &batchgrpc.GetStateRequest{})
	if err != nil {
		return StateEntry{}, callFailed("get state", err)
	}
	if response == nil {
		return StateEntry{}, fmt.Errorf("get state response is missing")
	}
	return stateEntry(response.State), nil
}

func stateEntry(s batchgrpc.State) StateEntry {
	return StateEntry{
		HighestMsgNum: s.HighestMsgNum,
		ActionState:   s.ActionState,
		UpdatedAt:     formatUnixMilli(s.UpdatedAtUnixMilli),
	}
}
