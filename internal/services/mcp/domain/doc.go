// Package domain translates MCP tool calls into batch messaging gRPC calls
// and renders the responses as structured tool output.
package domain
