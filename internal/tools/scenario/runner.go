package scenario

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	batchgrpc "github.com/louisbranch/batchmessaging/internal/services/batch/api/grpc/batch"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	defaultStepTimeout = 10 * time.Second
	defaultStaleRetry  = 5
)

// Config controls scenario execution.
type Config struct {
	GRPCAddr   string
	Timeout    time.Duration
	Assertions AssertionMode
	Verbose    bool
	Logger     *log.Logger
	// StaleRetries bounds retries of a fold that lost a race.
	StaleRetries int
}

// DefaultConfig returns default runner configuration.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:     "localhost:8095",
		Timeout:      defaultStepTimeout,
		Assertions:   AssertionStrict,
		StaleRetries: defaultStaleRetry,
	}
}

// Client is the batch messaging API a scenario drives.
type Client interface {
	PostMessage(ctx context.Context, in *batchgrpc.PostMessageRequest, opts ...grpc.CallOption) (*batchgrpc.PostMessageResponse, error)
	ProcessMessage(ctx context.Context, in *batchgrpc.ProcessMessageRequest, opts ...grpc.CallOption) (*batchgrpc.ProcessMessageResponse, error)
	GetState(ctx context.Context, in *batchgrpc.GetStateRequest, opts ...grpc.CallOption) (*batchgrpc.GetStateResponse, error)
	ListActions(ctx context.Context, in *batchgrpc.ListActionsRequest, opts ...grpc.CallOption) (*batchgrpc.ListActionsResponse, error)
}

// Runner executes Lua scenarios against the batch gRPC API.
type Runner struct {
	conn         *grpc.ClientConn
	client       Client
	assertions   Assertions
	logger       *log.Logger
	verbose      bool
	timeout      time.Duration
	staleRetries int
}

// NewRunner connects to gRPC and prepares a scenario runner.
func NewRunner(ctx context.Context, cfg Config) (*Runner, error) {
	if cfg.GRPCAddr == "" {
		return nil, errors.New("grpc address is required")
	}

	conn, err := grpc.NewClient(
		cfg.GRPCAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.WaitForReady(true)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial gRPC: %w", err)
	}

	r, err := NewRunnerWithClient(cfg, batchgrpc.NewClient(conn))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	r.conn = conn
	return r, nil
}

// NewRunnerWithClient builds a Runner over an existing client.
func NewRunnerWithClient(cfg Config, client Client) (*Runner, error) {
	if client == nil {
		return nil, errors.New("batch client is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	staleRetries := cfg.StaleRetries
	if staleRetries <= 0 {
		staleRetries = defaultStaleRetry
	}

	return &Runner{
		client:       client,
		assertions:   Assertions{Mode: cfg.Assertions, Logger: logger},
		logger:       logger,
		verbose:      cfg.Verbose,
		timeout:      timeout,
		staleRetries: staleRetries,
	}, nil
}

// Close releases resources held by the runner.
func (r *Runner) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// RunFile loads and executes a scenario file.
func RunFile(ctx context.Context, cfg Config, path string) error {
	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		return err
	}

	runner, err := NewRunner(ctx, cfg)
	if err != nil {
		return err
	}
	defer runner.Close()

	return runner.RunScenario(ctx, scenario)
}

// RunScenario executes the scenario steps in order.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) error {
	if scenario == nil {
		return errors.New("scenario is required")
	}
	r.logf("scenario start: %s (%d steps)", scenario.Name, len(scenario.Steps))
	state := &scenarioState{}

	for index, step := range scenario.Steps {
		stepNumber := index + 1
		r.logf("step %d/%d start: %s", stepNumber, len(scenario.Steps), step.Kind)
		stepStart := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.runStep(stepCtx, state, step)
		cancel()
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", stepNumber, step.Kind, err)
		}
		r.logf("step %d/%d done: %s (%s)", stepNumber, len(scenario.Steps), step.Kind, time.Since(stepStart))
	}
	r.logf("scenario done: %s (%d posted, %d rejected, %d folds)", scenario.Name, state.posted, state.rejected, state.folds)
	return nil
}

func (r *Runner) logf(format string, args ...any) {
	if !r.verbose || r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}
