package channel

import (
	"errors"
	"sync"
	"time"

	"github.com/arloliu/go-sslchannel/logger"
)

// Default values of Config.
const (
	DefaultBlockingHandshakeAttempts    = 100
	DefaultNonBlockingHandshakeAttempts = 10
	DefaultHandshakeBackoff             = 10 * time.Millisecond
)

// Range limits of Config values.
const (
	MaxHandshakeAttempts = 10000
	MaxHandshakeBackoff  = time.Second
)

// Config holds the configuration of a Channel.
type Config struct {
	mu sync.RWMutex

	// autoClose indicates whether closing the channel also shuts down and closes
	// the underlying transport.
	// Defaults to true.
	autoClose bool

	// blockingAttempts is the handshake attempt bound of blocking channels.
	// Defaults to 100.
	blockingAttempts int

	// nonBlockingAttempts is the handshake attempt bound of non-blocking channels.
	// Non-blocking callers are expected to re-poll after a readiness notification
	// instead of spending time in FinishConnect.
	// Defaults to 10.
	nonBlockingAttempts int

	// handshakeBackoff is the linear backoff step between handshake attempts that
	// didn't change the handshake status. The n-th stalled attempt sleeps n*handshakeBackoff.
	// Defaults to 10 milliseconds.
	handshakeBackoff time.Duration

	// logger provides a logger instance for channel events and errors.
	logger logger.Logger
}

// NewConfig creates a channel configuration with default values and applies the
// given options.
//
// Returns the configuration and the first error returned by an option.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		autoClose:           true,
		blockingAttempts:    DefaultBlockingHandshakeAttempts,
		nonBlockingAttempts: DefaultNonBlockingHandshakeAttempts,
		handshakeBackoff:    DefaultHandshakeBackoff,
		logger:              logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// AutoClose returns whether the underlying transport is closed together with the channel.
func (cfg *Config) AutoClose() bool {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.autoClose
}

// HandshakeAttempts returns the handshake attempt bound for the given blocking mode.
func (cfg *Config) HandshakeAttempts(blocking bool) int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	if blocking {
		return cfg.blockingAttempts
	}

	return cfg.nonBlockingAttempts
}

// HandshakeBackoff returns the linear backoff step between stalled handshake attempts.
func (cfg *Config) HandshakeBackoff() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.handshakeBackoff
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

type optFunc struct {
	name      string
	applyFunc func(*Config) error
}

func (o *optFunc) apply(cfg *Config) error {
	if cfg == nil {
		return ErrConfigNil
	}

	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	return o.applyFunc(cfg)
}

func newOptFunc(name string, f func(*Config) error) *optFunc {
	return &optFunc{name: name, applyFunc: f}
}

// WithAutoClose sets whether closing the channel shuts down and closes the
// underlying transport or parent channel.
//
// The default value is true.
//
// This option can be changed at runtime by Channel.SetAutoClose.
func WithAutoClose(on bool) Option {
	return newOptFunc("WithAutoClose", func(cfg *Config) error {
		cfg.autoClose = on
		return nil
	})
}

// WithBlockingHandshakeAttempts sets the maximum number of wrap/unwrap calls
// FinishConnect issues on a blocking channel before failing with a
// HandshakeTimeoutError.
//
// An error is returned if n is outside of [1, 10000].
//
// The default value is 100.
func WithBlockingHandshakeAttempts(n int) Option {
	return newOptFunc("WithBlockingHandshakeAttempts", func(cfg *Config) error {
		if n < 1 || n > MaxHandshakeAttempts {
			return errors.New("blocking handshake attempts out of range [1, 10000]")
		}
		cfg.blockingAttempts = n

		return nil
	})
}

// WithNonBlockingHandshakeAttempts sets the maximum number of wrap/unwrap calls
// FinishConnect issues on a non-blocking channel before reporting an incomplete
// handshake.
//
// An error is returned if n is outside of [1, 10000].
//
// The default value is 10.
func WithNonBlockingHandshakeAttempts(n int) Option {
	return newOptFunc("WithNonBlockingHandshakeAttempts", func(cfg *Config) error {
		if n < 1 || n > MaxHandshakeAttempts {
			return errors.New("non-blocking handshake attempts out of range [1, 10000]")
		}
		cfg.nonBlockingAttempts = n

		return nil
	})
}

// WithHandshakeBackoff sets the linear backoff step used when a handshake
// attempt leaves the handshake status unchanged. Zero disables sleeping.
//
// An error is returned if step is outside of [0, 1s].
//
// The default value is 10 milliseconds.
func WithHandshakeBackoff(step time.Duration) Option {
	return newOptFunc("WithHandshakeBackoff", func(cfg *Config) error {
		if step < 0 || step > MaxHandshakeBackoff {
			return errors.New("handshake backoff out of range [0, 1s]")
		}
		cfg.handshakeBackoff = step

		return nil
	})
}

// WithLogger sets the logger of the channel.
//
// The default logger is the global logger instance.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *Config) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
