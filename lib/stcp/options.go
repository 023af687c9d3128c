package stcp

import (
	"time"

	"github.com/go-stcp/stcp/lib/metrics"
)

const (
	DefaultBufferSize   = 1024
	DefaultPollInterval = time.Millisecond
	DefaultReadTimeout  = 100 * time.Millisecond
	// DefaultWarnInterval spaces out warnings about dropped inbound packets.
	DefaultWarnInterval = 5 * time.Second
)

// Config holds the tunables of a Socket. Use Option values to change them.
type Config struct {
	// BufferSize is the most bytes read from the connection at once.
	BufferSize int
	// PollInterval is how often a blocked Recv re-checks the packet buffer.
	PollInterval time.Duration
	// ReadTimeout bounds each raw read so the receive loop can notice Close.
	ReadTimeout time.Duration
	// RecvTimeout bounds Recv. Nil blocks until a payload or close;
	// zero returns at once.
	RecvTimeout *time.Duration
	// WarnInterval is the minimum spacing of drop warnings.
	WarnInterval time.Duration
	// Name labels log lines of the socket.
	Name    string
	Metrics *metrics.Metrics
}

// DefaultConfig returns the configuration used when no options are given.
func DefaultConfig() Config {
	return Config{
		BufferSize:   DefaultBufferSize,
		PollInterval: DefaultPollInterval,
		ReadTimeout:  DefaultReadTimeout,
		WarnInterval: DefaultWarnInterval,
	}
}

// Option changes one setting of a socket's Config.
type Option func(*Config)

// WithBufferSize sets the most bytes read from the connection at once.
func WithBufferSize(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

// WithPollInterval sets how often a blocked Recv re-checks the packet buffer.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.PollInterval = d
		}
	}
}

// WithReadTimeout bounds each raw read of the receive loop.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.ReadTimeout = d
		}
	}
}

// WithRecvTimeout bounds every Recv by d. Zero makes Recv non-blocking.
func WithRecvTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.RecvTimeout = &d
	}
}

// WithWarnInterval sets the minimum spacing of dropped packet warnings.
func WithWarnInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.WarnInterval = d
		}
	}
}

// WithName labels the socket's log lines.
func WithName(name string) Option {
	return func(c *Config) { c.Name = name }
}

// WithMetrics records traffic in m. Nil disables metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Config) { c.Metrics = m }
}

func buildConfig(opts []Option) Config {
	cfg := DefaultConfig()
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	return cfg
}
