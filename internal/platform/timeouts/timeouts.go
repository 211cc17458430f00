// Package timeouts defines shared timeout constants used across binaries.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing the batch service.
const GRPCDial = 2 * time.Second

// GRPCRequest caps a single request from the MCP bridge or scenario runner
// to the batch service.
const GRPCRequest = 5 * time.Second

// Shutdown limits how long the gRPC server waits for in-flight calls
// during graceful shutdown.
const Shutdown = 5 * time.Second
