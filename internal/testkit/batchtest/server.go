// Package batchtest starts an in-process batch messaging server for tests.
package batchtest

import (
	"context"
	"net"
	"testing"

	batchgrpc "github.com/louisbranch/batchmessaging/internal/services/batch/api/grpc/batch"
	"github.com/louisbranch/batchmessaging/internal/services/batch/app"
	"github.com/louisbranch/batchmessaging/internal/services/batch/storage/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1 << 20

// Harness is a running in-memory server and a connected client.
type Harness struct {
	Client  *batchgrpc.Client
	Service *app.Service
	Store   *memory.Store
	Conn    *grpc.ClientConn
}

// Start serves a memory-backed service over bufconn. Everything is torn down
// through t.Cleanup.
func Start(t testing.TB, opts ...app.Option) *Harness {
	t.Helper()

	store := memory.New()
	service, err := app.NewService(store, store, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	listener := bufconn.Listen(bufSize)
	grpcServer, healthServer := app.NewGRPCServer(service)
	go func() {
		_ = grpcServer.Serve(listener)
	}()

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
		healthServer.Shutdown()
		grpcServer.Stop()
		_ = listener.Close()
	})

	return &Harness{
		Client:  batchgrpc.NewClient(conn),
		Service: service,
		Store:   store,
		Conn:    conn,
	}
}
