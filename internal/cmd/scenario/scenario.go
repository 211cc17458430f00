// Package scenario parses scenario command flags and runs a Lua script.
package scenario

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"time"

	entrypoint "github.com/louisbranch/batchmessaging/internal/platform/cmd"
	"github.com/louisbranch/batchmessaging/internal/tools/scenario"
)

// Config holds scenario command configuration.
type Config struct {
	GRPCAddr   string        `env:"BATCHMESSAGING_SCENARIO_ADDR"    envDefault:"localhost:8095"`
	Scenario   string        `env:"BATCHMESSAGING_SCENARIO_FILE"`
	Assertions bool          `env:"BATCHMESSAGING_SCENARIO_ASSERT"  envDefault:"true"`
	Verbose    bool          `env:"BATCHMESSAGING_SCENARIO_VERBOSE"`
	Timeout    time.Duration `env:"BATCHMESSAGING_SCENARIO_TIMEOUT" envDefault:"10s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "batch server address")
	fs.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "path to scenario lua file")
	fs.BoolVar(&cfg.Assertions, "assert", cfg.Assertions, "enable assertions (disable to log expectations)")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose logging")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "timeout per step")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the scenario command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Scenario == "" {
		return errors.New("scenario path is required")
	}

	mode := scenario.AssertionStrict
	if !cfg.Assertions {
		mode = scenario.AssertionLogOnly
	}

	logger := log.New(errOut, "", 0)
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceScenario, func(ctx context.Context) error {
		runCfg := scenario.DefaultConfig()
		runCfg.GRPCAddr = cfg.GRPCAddr
		runCfg.Timeout = cfg.Timeout
		runCfg.Assertions = mode
		runCfg.Verbose = cfg.Verbose
		runCfg.Logger = logger
		return scenario.RunFile(ctx, runCfg, cfg.Scenario)
	})
}
