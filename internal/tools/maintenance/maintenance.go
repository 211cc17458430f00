// Package maintenance verifies a batch messaging SQLite database offline.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	entrypoint "github.com/louisbranch/batchmessaging/internal/platform/cmd"
	"github.com/louisbranch/batchmessaging/internal/services/batch/storage/integrity"
	"github.com/louisbranch/batchmessaging/internal/services/batch/storage/sqlite"
)

// Config holds maintenance command configuration.
type Config struct {
	DBPath        string        `env:"BATCHMESSAGING_DB_PATH"             envDefault:"data/batch.db"`
	Timeout       time.Duration `env:"BATCHMESSAGING_MAINTENANCE_TIMEOUT" envDefault:"10m"`
	RequireSigned bool
	JSONOutput    bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the batch sqlite database (default: BATCHMESSAGING_DB_PATH or data/batch.db)")
	fs.BoolVar(&cfg.RequireSigned, "require-signed", false, "fail when any batch is unsigned")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output a JSON report")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Report is the outcome of one integrity pass.
type Report struct {
	DBPath        string `json:"db_path"`
	Batches       int    `json:"batches"`
	Signed        int    `json:"signed"`
	Unsigned      int    `json:"unsigned"`
	LogTail       string `json:"log_tail"`
	ActionState   string `json:"action_state"`
	HighestMsgNum uint64 `json:"highest_msg_num"`
	Pending       int    `json:"pending_batches"`
}

// Run verifies the action log chain and signatures, then reports how far
// the committed cursor trails the log tail.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.DBPath == "" {
		return errors.New("-db-path is required")
	}
	if _, err := os.Stat(cfg.DBPath); err != nil {
		return fmt.Errorf("stat database: %w", err)
	}

	keyring, err := integrity.KeyringFromEnv()
	if err != nil {
		if !errors.Is(err, integrity.ErrNotConfigured) {
			return fmt.Errorf("load action keyring: %w", err)
		}
		fmt.Fprintln(errOut, "Warning: no action hmac key configured; signed batches cannot be verified")
		keyring = nil
	}

	store, err := sqlite.Open(ctx, cfg.DBPath, keyring)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			fmt.Fprintf(errOut, "Error: close store: %v\n", closeErr)
		}
	}()

	report, err := verify(ctx, store)
	report.DBPath = cfg.DBPath
	if err != nil {
		return fmt.Errorf("verify action log: %w", err)
	}
	if err := writeReport(out, report, cfg.JSONOutput); err != nil {
		return err
	}
	if cfg.RequireSigned && report.Unsigned > 0 {
		return fmt.Errorf("%d of %d batches are unsigned", report.Unsigned, report.Batches)
	}
	return nil
}

func verify(ctx context.Context, store *sqlite.Store) (Report, error) {
	integrityReport, err := store.VerifyActionIntegrity(ctx)
	if err != nil {
		return Report{}, err
	}
	state, err := store.GetState(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("get state: %w", err)
	}
	page, err := store.FetchSince(ctx, state.ActionState, integrityReport.Batches+1)
	if err != nil {
		return Report{}, fmt.Errorf("fetch pending batches: %w", err)
	}
	return Report{
		Batches:       integrityReport.Batches,
		Signed:        integrityReport.Signed,
		Unsigned:      integrityReport.Unsigned,
		LogTail:       integrityReport.Tail.String(),
		ActionState:   state.ActionState.String(),
		HighestMsgNum: state.HighestMsgNum,
		Pending:       len(page.Batches),
	}, nil
}

func writeReport(out io.Writer, report Report, jsonOutput bool) error {
	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}
	_, err := fmt.Fprintf(out,
		"Action log OK: %d batches (%d signed, %d unsigned)\nLog tail: %s\nCursor: %s\nHighest message: %d\nPending batches: %d\n",
		report.Batches, report.Signed, report.Unsigned,
		report.LogTail, report.ActionState, report.HighestMsgNum, report.Pending,
	)
	return err
}
