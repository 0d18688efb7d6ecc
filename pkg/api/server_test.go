package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/config"
	"github.com/memvault/memvault/pkg/logger"
)

func waitReady(t *testing.T, s *HTTPServer) {
	t.Helper()
	select {
	case <-s.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start listening")
	}
}

func TestNewHTTPServer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 8080

	server := NewHTTPServer(cfg, logger.Nop(), &Handlers{})
	require.NotNil(t, server)
	assert.Equal(t, "localhost:8080", server.Addr())
	assert.Equal(t, cfg.Server.HTTP.ReadTimeout, server.srv.ReadTimeout)
	assert.Equal(t, cfg.Server.HTTP.WriteTimeout, server.srv.WriteTimeout)
	assert.Equal(t, cfg.Server.HTTP.IdleTimeout, server.srv.IdleTimeout)
	assert.Equal(t, cfg.Server.HTTP.MaxHeaderBytes, server.srv.MaxHeaderBytes)
	assert.NotNil(t, server.Handler())

	select {
	case <-server.Ready():
		t.Fatal("Ready closed before Start")
	default:
	}
}

func TestHTTPServer_StartAndShutdown(t *testing.T) {
	s := newTestStack(t)
	cfg := *s.cfg
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0

	server := NewHTTPServer(&cfg, logger.Nop(), s.handlers)
	var hooked atomic.Bool
	server.OnShutdown(func() { hooked.Store(true) })

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()
	waitReady(t, server)

	resp, err := http.Get("http://" + server.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
	assert.Eventually(t, hooked.Load, time.Second, 10*time.Millisecond)
}

func TestHTTPServer_StartFailsOnBusyPort(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0

	first := NewHTTPServer(cfg, logger.Nop(), &Handlers{})
	go first.Start()
	waitReady(t, first)
	defer first.Shutdown(context.Background())

	second := NewHTTPServer(cfg, logger.Nop(), &Handlers{})
	second.srv.Addr = first.Addr()
	assert.Error(t, second.Start())
}
