package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	platformgrpc "github.com/louisbranch/batchmessaging/internal/platform/grpc"
	"github.com/louisbranch/batchmessaging/internal/platform/timeouts"
	batchgrpc "github.com/louisbranch/batchmessaging/internal/services/batch/api/grpc/batch"
	"github.com/louisbranch/batchmessaging/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
)

const (
	serverName    = "batchmessaging MCP"
	serverVersion = "0.1.0"
	// DefaultGRPCAddr is the batch server address used when none is configured.
	DefaultGRPCAddr = "localhost:8095"
)

// Config configures the MCP server.
type Config struct {
	GRPCAddr string
}

// Server hosts the MCP server.
type Server struct {
	mcpServer *mcp.Server
	conn      *grpc.ClientConn
}

// New connects to the batch server and registers every tool.
func New(ctx context.Context, grpcAddr string) (*Server, error) {
	conn, err := dialBatchGRPC(ctx, grpcAddress(grpcAddr))
	if err != nil {
		return nil, err
	}
	server := newServer(batchgrpc.NewClient(conn))
	server.conn = conn
	return server, nil
}

func newServer(client domain.Client) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	mcp.AddTool(mcpServer, domain.PostMessageTool(), domain.PostMessageHandler(client))
	mcp.AddTool(mcpServer, domain.ProcessMessagesTool(), domain.ProcessMessagesHandler(client))
	mcp.AddTool(mcpServer, domain.StateTool(), domain.StateHandler(client))
	mcp.AddTool(mcpServer, domain.ListActionsTool(), domain.ListActionsHandler(client))
	mcpServer.AddResource(domain.StateResource(), domain.StateResourceHandler(client))
	return &Server{mcpServer: mcpServer}
}

// Close releases the gRPC connection.
func (s *Server) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return err
	}
	s.conn = nil
	return nil
}

// Run serves MCP over stdio until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return runWithTransport(ctx, cfg.GRPCAddr, &mcp.StdioTransport{})
}

func runWithTransport(ctx context.Context, grpcAddr string, transport mcp.Transport) error {
	server, err := New(ctx, grpcAddr)
	if err != nil {
		return err
	}
	return server.serveWithTransport(ctx, transport)
}

func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	closeErr := s.Close()
	if closeErr != nil {
		if err == nil {
			return fmt.Errorf("close gRPC connection: %w", closeErr)
		}
		return fmt.Errorf("serve MCP: %v; close gRPC connection: %w", err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

func dialBatchGRPC(ctx context.Context, addr string) (*grpc.ClientConn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logf := func(format string, args ...any) {
		log.Printf("batch %s", fmt.Sprintf(format, args...))
	}
	conn, err := platformgrpc.DialWithHealth(
		ctx,
		nil,
		addr,
		timeouts.GRPCDial,
		logf,
		platformgrpc.DefaultClientDialOptions()...,
	)
	if err != nil {
		var dialErr *platformgrpc.DialError
		if errors.As(err, &dialErr) {
			if dialErr.Stage == platformgrpc.DialStageConnect {
				return nil, fmt.Errorf("connect to batch server at %s: %w", addr, dialErr.Err)
			}
			return nil, dialErr.Err
		}
		return nil, err
	}
	return conn, nil
}

func grpcAddress(addr string) string {
	if addr = strings.TrimSpace(addr); addr != "" {
		return addr
	}
	return DefaultGRPCAddr
}
