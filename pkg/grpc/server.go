// Package grpc serves the standard grpc.health.v1 service for memvault, with
// the serving status following store reachability.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/memvault/memvault/pkg/logger"
)

// Server represents a gRPC server instance
type Server struct {
	config   *Config
	logger   logger.Logger
	health   *StoreHealth
	probe    Pinger
	grpcSrv  *grpc.Server
	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.RWMutex
	running  bool
}

// New creates a gRPC server. probe may be nil, in which case the server
// always reports SERVING.
func New(cfg *Config, probe Pinger, log logger.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		log = logger.Global()
	}
	return &Server{
		config: cfg,
		logger: log.With("component", "grpc"),
		health: newStoreHealth(),
		probe:  probe,
	}, nil
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	s.listener = listener

	s.grpcSrv = grpc.NewServer(s.buildServerOptions()...)
	grpc_health_v1.RegisterHealthServer(s.grpcSrv, s.health)
	if s.config.EnableReflection {
		reflection.Register(s.grpcSrv)
	}
	s.health.Set(grpc_health_v1.HealthCheckResponse_SERVING)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	if s.probe != nil {
		go func() {
			defer close(s.done)
			s.health.watch(ctx, s.probe, s.config.ProbeInterval, s.logger)
		}()
	} else {
		close(s.done)
	}

	s.running = true
	s.logger.Info("gRPC health server listening", "addr", listener.Addr().String(), "reflection", s.config.EnableReflection)

	go func() {
		if err := s.grpcSrv.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.logger.Error("gRPC server error", "error", err)
		}
	}()
	return nil
}

// Stop reports NOT_SERVING, then gracefully stops the server, forcing it
// when ctx expires first.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	s.cancel()
	<-s.done
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpcSrv.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.grpcSrv.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}

// Health returns the health service for status overrides.
func (s *Server) Health() *StoreHealth {
	return s.health
}

// Address returns the server's listening address
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address
}

// IsRunning returns whether the server is currently running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Server) buildServerOptions() []grpc.ServerOption {
	opts := []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    s.config.KeepaliveTime,
			Timeout: s.config.KeepaliveTimeout,
		}),
	}

	unary := []grpc.UnaryServerInterceptor{recoveryUnary(s.logger)}
	stream := []grpc.StreamServerInterceptor{recoveryStream(s.logger)}
	if s.config.EnableTracing {
		unary = append(unary, tracingUnary())
		stream = append(stream, tracingStream())
	}
	unary = append(unary, loggingUnary(s.logger))
	stream = append(stream, loggingStream(s.logger))

	return append(opts, grpc.ChainUnaryInterceptor(unary...), grpc.ChainStreamInterceptor(stream...))
}
