// Package service runs the batch messaging MCP server over stdio and binds
// the domain tool handlers to a gRPC connection.
package service
