package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/memvault/memvault/config"
	"github.com/memvault/memvault/pkg/logger"
)

// Server is the lifecycle of the HTTP API.
type Server interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// HTTPServer serves the memvault router.
type HTTPServer struct {
	cfg    config.HTTPConfig
	srv    *http.Server
	logger logger.Logger

	mu       sync.Mutex
	listener  net.Listener
	ready     chan struct{}
	readyOnce sync.Once
}

// NewHTTPServer builds the router for h and an http.Server bound to the
// configured host and port. Nothing listens until Start.
func NewHTTPServer(cfg *config.Config, log logger.Logger, h *Handlers) *HTTPServer {
	hc := cfg.Server.HTTP
	return &HTTPServer{
		cfg:    hc,
		logger: log,
		ready:  make(chan struct{}),
		srv: &http.Server{
			Addr:           net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
			Handler:        NewRouter(cfg, log, h),
			ReadTimeout:    hc.ReadTimeout,
			WriteTimeout:   hc.WriteTimeout,
			IdleTimeout:    hc.IdleTimeout,
			MaxHeaderBytes: hc.MaxHeaderBytes,
		},
	}
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler { return s.srv.Handler }

// Ready is closed once Start is listening.
func (s *HTTPServer) Ready() <-chan struct{} { return s.ready }

// OnShutdown registers fn to run when Shutdown begins. Hijacked
// connections, such as the event feed, are not tracked by the server and
// must be closed this way.
func (s *HTTPServer) OnShutdown(fn func()) { s.srv.RegisterOnShutdown(fn) }

// Addr returns the bound address once listening, else the configured one.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.srv.Addr
	}
	return s.listener.Addr().String()
}

// Start listens and serves until Shutdown, after which it returns nil.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	s.logger.Info("HTTP server listening",
		"addr", ln.Addr().String(),
		"request_timeout", s.cfg.RequestTimeout,
		"max_body_bytes", s.cfg.MaxBodyBytes,
	)

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("serve HTTP: %w", err)
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown HTTP server: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
