package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/reducer"
)

const (
	defaultProcessInterval     = 2 * time.Second
	defaultProcessRetryMax     = 5
	defaultProcessRetryBackoff = 100 * time.Millisecond
	maxProcessRetryBackoff     = 2 * time.Second
)

// ProcessorConfig controls the background fold loop.
type ProcessorConfig struct {
	Interval     time.Duration
	RetryMax     int
	RetryBackoff time.Duration
}

func (c ProcessorConfig) normalized() ProcessorConfig {
	if c.Interval <= 0 {
		c.Interval = defaultProcessInterval
	}
	if c.RetryMax <= 0 {
		c.RetryMax = defaultProcessRetryMax
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultProcessRetryBackoff
	}
	return c
}

// processFunc is the single fold step the processor drives.
type processFunc func(context.Context) (reducer.Result, error)

// Processor periodically drains pending batches into the aggregate. It is an
// ordinary caller of ProcessMessage and retries stale reads itself.
type Processor struct {
	process processFunc
	config  ProcessorConfig
	logf    func(string, ...any)
}

// NewProcessor builds a processor over a service.
func NewProcessor(service *Service, config ProcessorConfig) *Processor {
	return newProcessor(service.ProcessMessage, config, log.Printf)
}

func newProcessor(process processFunc, config ProcessorConfig, logf func(string, ...any)) *Processor {
	if logf == nil {
		logf = log.Printf
	}
	return &Processor{process: process, config: config.normalized(), logf: logf}
}

// Run drains the backlog on every tick until ctx ends.
func (p *Processor) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		if _, err := p.Drain(ctx); err != nil && ctx.Err() == nil {
			p.logf("process pending actions: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Drain folds capped pages until nothing is pending and returns the number of
// batches folded.
func (p *Processor) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		result, err := p.processOnce(ctx)
		if err != nil {
			return total, err
		}
		total += result.Batches
		if !result.Committed() {
			return total, nil
		}
	}
}

// processOnce runs one fold, retrying stale reads with exponential backoff.
func (p *Processor) processOnce(ctx context.Context) (reducer.Result, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.config.RetryBackoff
	policy.MaxInterval = maxProcessRetryBackoff

	return backoff.Retry(ctx, func() (reducer.Result, error) {
		result, err := p.process(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, reducer.ErrStaleRead) {
			return result, err
		}
		return result, backoff.Permanent(err)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(p.config.RetryMax)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			p.logf("fold lost a race, retrying in %s: %v", wait, err)
		}),
	)
}
