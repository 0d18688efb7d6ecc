package grpc

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/memvault/memvault/config"
)

// Config holds gRPC server configuration
type Config struct {
	// Address is the server listening address (e.g., ":9090")
	Address string

	// KeepaliveTime is the server ping interval; zero uses the grpc default.
	KeepaliveTime time.Duration

	// KeepaliveTimeout is how long to wait for a ping ack.
	KeepaliveTimeout time.Duration

	// EnableReflection enables gRPC server reflection for debugging
	EnableReflection bool

	// EnableTracing wraps every RPC in a server span.
	EnableTracing bool

	// ProbeInterval is how often the store is pinged to refresh the serving status.
	ProbeInterval time.Duration
}

// DefaultConfig returns a Config listening on :9090.
func DefaultConfig() *Config {
	return &Config{
		Address:          ":9090",
		KeepaliveTime:    60 * time.Second,
		KeepaliveTimeout: 20 * time.Second,
		ProbeInterval:    10 * time.Second,
	}
}

// ConfigFrom maps the application config onto a server Config.
func ConfigFrom(cfg *config.Config) *Config {
	c := DefaultConfig()
	c.Address = net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.GRPC.Port))
	c.EnableReflection = cfg.Server.GRPC.EnableReflection
	c.EnableTracing = cfg.Tracing.Enabled
	if cfg.Server.GRPC.KeepaliveTime > 0 {
		c.KeepaliveTime = cfg.Server.GRPC.KeepaliveTime
	}
	if cfg.Server.GRPC.KeepaliveTimeout > 0 {
		c.KeepaliveTimeout = cfg.Server.GRPC.KeepaliveTimeout
	}
	return c
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address is required")
	}
	if c.KeepaliveTime < 0 || c.KeepaliveTimeout < 0 {
		return fmt.Errorf("keepalive durations must not be negative")
	}
	return nil
}
