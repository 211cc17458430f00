// Package batchmessaging parses server flags and starts the batch API.
package batchmessaging

import (
	"context"
	"errors"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/batchmessaging/internal/platform/cmd"
	"github.com/louisbranch/batchmessaging/internal/services/batch/app"
)

// Config holds batch server command configuration.
type Config struct {
	Port                int           `env:"BATCHMESSAGING_PORT"                  envDefault:"8095"`
	DBPath              string        `env:"BATCHMESSAGING_DB_PATH"               envDefault:"data/batch.db"`
	MaxBatches          int           `env:"BATCHMESSAGING_MAX_BATCHES"           envDefault:"200"`
	ProcessInterval     time.Duration `env:"BATCHMESSAGING_PROCESS_INTERVAL"      envDefault:"2s"`
	ProcessRetryMax     int           `env:"BATCHMESSAGING_PROCESS_RETRY_MAX"     envDefault:"5"`
	ProcessRetryBackoff time.Duration `env:"BATCHMESSAGING_PROCESS_RETRY_BACKOFF" envDefault:"100ms"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The batch server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Path to the batch sqlite database")
	fs.IntVar(&cfg.MaxBatches, "max-batches", cfg.MaxBatches, "Maximum batches folded per process call")
	fs.DurationVar(&cfg.ProcessInterval, "process-interval", cfg.ProcessInterval, "Background processing interval (0 disables)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.MaxBatches <= 0 {
		return Config{}, errors.New("max batches must be greater than zero")
	}
	if cfg.ProcessInterval < 0 {
		return Config{}, errors.New("process interval must not be negative")
	}
	return cfg, nil
}

// Run starts the batch messaging API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceBatch, func(ctx context.Context) error {
		return app.Run(ctx, app.ServerConfig{
			Port:                cfg.Port,
			DBPath:              cfg.DBPath,
			MaxBatches:          cfg.MaxBatches,
			ProcessInterval:     cfg.ProcessInterval,
			ProcessRetryMax:     cfg.ProcessRetryMax,
			ProcessRetryBackoff: cfg.ProcessRetryBackoff,
		})
	})
}
