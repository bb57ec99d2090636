package netconn

import (
	"errors"
	"sync"
	"time"

	"github.com/arloliu/go-sslchannel/logger"
)

// Default values of Config.
const (
	DefaultPollTimeout    = time.Millisecond
	DefaultProbeTimeout   = time.Millisecond
	DefaultReadBufferSize = 32 * 1024
)

// ErrConfigNil is returned when an option is applied to a nil Config.
var ErrConfigNil = errors.New("netconn config is nil")

// Config holds the configuration of a Conn.
type Config struct {
	mu sync.RWMutex

	// pollTimeout bounds a single read or write in non-blocking mode.
	// Defaults to 1 millisecond.
	pollTimeout time.Duration

	// probeTimeout bounds the one-byte peek Available uses when the socket
	// can't report its receive queue length.
	// Defaults to 1 millisecond.
	probeTimeout time.Duration

	// nonBlocking is the initial blocking mode.
	// Defaults to false.
	nonBlocking bool

	// readBufferSize is the size of the read buffer in front of the connection.
	// Defaults to 32 KiB.
	readBufferSize int

	logger logger.Logger
}

// NewConfig creates a Conn configuration with default values and applies the
// given options.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		pollTimeout:    DefaultPollTimeout,
		probeTimeout:   DefaultProbeTimeout,
		readBufferSize: DefaultReadBufferSize,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// PollTimeout returns the non-blocking read/write bound.
func (cfg *Config) PollTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.pollTimeout
}

// ProbeTimeout returns the bound of the availability probe.
func (cfg *Config) ProbeTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.probeTimeout
}

// NonBlocking returns the initial blocking mode.
func (cfg *Config) NonBlocking() bool {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.nonBlocking
}

// ReadBufferSize returns the read buffer size.
func (cfg *Config) ReadBufferSize() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.readBufferSize
}

// Logger returns the configured logger.
func (cfg *Config) Logger() logger.Logger {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.logger
}

// Option represents a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error {
	if cfg == nil {
		return ErrConfigNil
	}

	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	return f(cfg)
}

// WithPollTimeout sets how long a non-blocking read or write may wait on the
// connection.
//
// An error is returned if d is outside of [100us, 1s].
//
// The default value is 1 millisecond.
func WithPollTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 100*time.Microsecond || d > time.Second {
			return errors.New("poll timeout out of range [100us, 1s]")
		}
		cfg.pollTimeout = d

		return nil
	})
}

// WithProbeTimeout sets how long Available waits for a byte when the operating
// system can't report the receive queue length.
//
// An error is returned if d is outside of [100us, 1s].
//
// The default value is 1 millisecond.
func WithProbeTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 100*time.Microsecond || d > time.Second {
			return errors.New("probe timeout out of range [100us, 1s]")
		}
		cfg.probeTimeout = d

		return nil
	})
}

// WithNonBlocking starts the Conn in non-blocking mode.
func WithNonBlocking() Option {
	return optFunc(func(cfg *Config) error {
		cfg.nonBlocking = true
		return nil
	})
}

// WithReadBufferSize sets the read buffer size.
//
// An error is returned if size is outside of [512, 1MiB].
//
// The default value is 32 KiB.
func WithReadBufferSize(size int) Option {
	return optFunc(func(cfg *Config) error {
		if size < 512 || size > 1024*1024 {
			return errors.New("read buffer size out of range [512, 1MiB]")
		}
		cfg.readBufferSize = size

		return nil
	})
}

// WithLogger sets the logger of the Conn.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
