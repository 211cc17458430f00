package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	batchcmd "github.com/louisbranch/batchmessaging/internal/cmd/batchmessaging"
	entrypoint "github.com/louisbranch/batchmessaging/internal/platform/cmd"
)

func main() {
	cfg, err := batchcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix(entrypoint.LogPrefix(entrypoint.ServiceBatch))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := batchcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
