package scenario

import (
	"context"
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("scenario", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.GRPCAddr != "localhost:8095" {
		t.Fatalf("expected default addr, got %q", cfg.GRPCAddr)
	}
	if !cfg.Assertions {
		t.Fatal("expected assertions enabled by default")
	}
	if cfg.Timeout != 10*time.Second {
		t.Fatalf("expected default timeout 10s, got %s", cfg.Timeout)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("BATCHMESSAGING_SCENARIO_FILE", "env.lua")
	fs := flag.NewFlagSet("scenario", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-grpc-addr", "batch:1", "-assert=false", "-verbose", "-timeout", "3s"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Scenario != "env.lua" {
		t.Fatalf("expected env scenario, got %q", cfg.Scenario)
	}
	if cfg.GRPCAddr != "batch:1" || cfg.Assertions || !cfg.Verbose || cfg.Timeout != 3*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestRunRequiresScenario(t *testing.T) {
	if err := Run(context.Background(), Config{GRPCAddr: "localhost:1"}, nil, nil); err == nil {
		t.Fatal("expected error for missing scenario")
	}
}
