package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// AppVersion is set by the build and surfaced on the health endpoint
var AppVersion = "dev"

// Queue backend selection
const (
	QueueBackendEmbedded    = "embedded"
	QueueBackendDistributed = "distributed"
)

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port  int
	Debug bool

	// QueueBackend selects embedded (in-process) or distributed (Redis)
	// deployment infrastructure
	QueueBackend string
	// RedisURL configures the distributed queue backend
	RedisURL string

	// WorkerPoolSize bounds concurrent deployment execution
	WorkerPoolSize int
	// QueueCapacity bounds the embedded queue depth
	QueueCapacity int

	// RequestTimeout bounds API request handling
	RequestTimeout time.Duration

	// AllowInteractiveEngine permits interactive engine selection; always
	// false for the server, settable by the CLI
	AllowInteractiveEngine bool
}

// NewServerConfig creates a server configuration with defaults
func NewServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:           8084,
		QueueBackend:   QueueBackendEmbedded,
		WorkerPoolSize: DefaultWorkerPoolSize,
		QueueCapacity:  DefaultQueueCapacity,
		RequestTimeout: 60 * time.Second,
	}
}

// LoadFromEnv overlays environment variables onto the configuration
func (c *ServerConfig) LoadFromEnv() error {
	if port := os.Getenv("LAKESHIFT_PORT"); port != "" {
		parsed, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid LAKESHIFT_PORT %q: %w", port, err)
		}
		c.Port = parsed
	}
	if backend := os.Getenv("LAKESHIFT_QUEUE_BACKEND"); backend != "" {
		c.QueueBackend = backend
	}
	if url := os.Getenv("LAKESHIFT_REDIS_URL"); url != "" {
		c.RedisURL = url
	}
	if size := os.Getenv("LAKESHIFT_WORKERS"); size != "" {
		parsed, err := strconv.Atoi(size)
		if err != nil {
			return fmt.Errorf("invalid LAKESHIFT_WORKERS %q: %w", size, err)
		}
		c.WorkerPoolSize = parsed
	}
	if debug := os.Getenv("LAKESHIFT_DEBUG"); debug != "" {
		if b, err := strconv.ParseBool(debug); err == nil {
			c.Debug = b
		}
	}
	return nil
}

// Validate checks the configuration for consistency
func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("worker pool size must be positive, got %d", c.WorkerPoolSize)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queue capacity must be positive, got %d", c.QueueCapacity)
	}
	switch c.QueueBackend {
	case QueueBackendEmbedded:
	case QueueBackendDistributed:
		if c.RedisURL == "" {
			return fmt.Errorf("distributed queue backend requires LAKESHIFT_REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown queue backend %q", c.QueueBackend)
	}
	return nil
}
