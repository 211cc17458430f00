// Package mcp parses MCP command flags and starts the stdio adapter.
package mcp

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/batchmessaging/internal/platform/cmd"
	"github.com/louisbranch/batchmessaging/internal/services/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	Addr string `env:"BATCHMESSAGING_MCP_ADDR" envDefault:"localhost:8095"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "batch server address")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
		return service.Run(ctx, service.Config{GRPCAddr: cfg.Addr})
	})
}
