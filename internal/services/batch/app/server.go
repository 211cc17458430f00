package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	batchgrpc "github.com/louisbranch/batchmessaging/internal/services/batch/api/grpc/batch"
	"github.com/louisbranch/batchmessaging/internal/services/batch/storage/integrity"
	batchsqlite "github.com/louisbranch/batchmessaging/internal/services/batch/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const defaultDBPath = "data/batch.db"

// ServerConfig controls batch server startup.
type ServerConfig struct {
	Port       int
	DBPath     string
	MaxBatches int
	// ProcessInterval of zero disables the background processor.
	ProcessInterval     time.Duration
	ProcessRetryMax     int
	ProcessRetryBackoff time.Duration
}

// Server hosts the batch messaging gRPC API over a SQLite store.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	store      *batchsqlite.Store
	service    *Service
	processor  *Processor
}

// NewServer opens storage and binds the listener. Port 0 picks a free port.
func NewServer(ctx context.Context, cfg ServerConfig) (*Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	service, err := NewService(store, store, WithMaxBatches(cfg.MaxBatches))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on port %d: %w", cfg.Port, err)
	}

	grpcServer, healthServer := NewGRPCServer(service)
	server := &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		store:      store,
		service:    service,
	}
	if cfg.ProcessInterval > 0 {
		server.processor = NewProcessor(service, ProcessorConfig{
			Interval:     cfg.ProcessInterval,
			RetryMax:     cfg.ProcessRetryMax,
			RetryBackoff: cfg.ProcessRetryBackoff,
		})
	}
	return server, nil
}

// NewGRPCServer builds a gRPC server exposing service with tracing, call ids,
// and health reporting.
func NewGRPCServer(service *Service) (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(batchgrpc.CallIDInterceptor()),
	)
	batchgrpc.RegisterServer(grpcServer, batchgrpc.NewHandler(service))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(batchgrpc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return grpcServer, healthServer
}

// Addr returns the listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Service returns the call dispatcher backing the server.
func (s *Server) Service() *Service {
	if s == nil {
		return nil
	}
	return s.service
}

// Run creates and serves a batch server until the context ends.
func Run(ctx context.Context, cfg ServerConfig) error {
	server, err := NewServer(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve blocks until the gRPC server stops or ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		if err := s.store.Close(); err != nil {
			log.Printf("close batch store: %v", err)
		}
	}()

	processorCtx, stopProcessor := context.WithCancel(ctx)
	processorDone := make(chan struct{})
	go func() {
		defer close(processorDone)
		if s.processor != nil {
			_ = s.processor.Run(processorCtx)
		}
	}()
	defer func() {
		stopProcessor()
		<-processorDone
	}()

	log.Printf("batch server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		return handleErr(<-serveErr)
	case err := <-serveErr:
		return handleErr(err)
	}
}

func openStore(ctx context.Context, path string) (*batchsqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultDBPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	keyring, err := integrity.KeyringFromEnv()
	if errors.Is(err, integrity.ErrNotConfigured) {
		log.Printf("action signing key not configured; batches are stored unsigned")
		keyring = nil
	} else if err != nil {
		return nil, fmt.Errorf("load action keyring: %w", err)
	}

	store, err := batchsqlite.Open(ctx, path, keyring)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}
