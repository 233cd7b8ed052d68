package xfer

import (
	"fmt"
	"time"

	"github.com/TheDeepLogic/RetroSerialHub/logger"
)

// Default protocol timing. The ACK deadline and startup window follow the
// values vintage terminal programs expect.
const (
	DefaultRetryLimit        = 10
	DefaultBlockTimeout      = 10 * time.Second // per-block ACK/NAK deadline
	DefaultStartupTimeout    = 20 * time.Second // waiting for the counterpart
	DefaultNegotiateInterval = 3 * time.Second  // receiver poll byte repeat
	DefaultASCIIIdleWindow   = 5 * time.Second  // ASCII receive inactivity gap
)

// Tunable range limits.
const (
	MaxRetryLimit = 31

	MinBlockTimeout = 1 * time.Second
	MaxBlockTimeout = 60 * time.Second

	MinStartupTimeout = 2 * time.Second
	MaxStartupTimeout = 120 * time.Second

	MinNegotiateInterval = 500 * time.Millisecond
	MaxNegotiateInterval = 10 * time.Second

	MinASCIIIdleWindow = 1 * time.Second
	MaxASCIIIdleWindow = 60 * time.Second
)

// Config holds the tunable timing and retry parameters of the engine.
type Config struct {
	retryLimit        int
	blockTimeout      time.Duration
	startupTimeout    time.Duration
	negotiateInterval time.Duration
	asciiIdleWindow   time.Duration

	logger logger.Logger
}

// NewConfig creates an engine configuration.
//
// opts are functional options applied in order; see With* functions.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		retryLimit:        DefaultRetryLimit,
		blockTimeout:      DefaultBlockTimeout,
		startupTimeout:    DefaultStartupTimeout,
		negotiateInterval: DefaultNegotiateInterval,
		asciiIdleWindow:   DefaultASCIIIdleWindow,
		logger:            logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// RetryLimit returns the per-block retry ceiling.
func (cfg *Config) RetryLimit() int { return cfg.retryLimit }

// BlockTimeout returns the per-block ACK/NAK deadline.
func (cfg *Config) BlockTimeout() time.Duration { return cfg.blockTimeout }

// StartupTimeout returns the window for detecting the counterpart.
func (cfg *Config) StartupTimeout() time.Duration { return cfg.startupTimeout }

// NegotiateInterval returns the receiver's poll byte repeat interval.
func (cfg *Config) NegotiateInterval() time.Duration { return cfg.negotiateInterval }

// ASCIIIdleWindow returns the inactivity gap that completes an ASCII receive.
func (cfg *Config) ASCIIIdleWindow() time.Duration { return cfg.asciiIdleWindow }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring the engine.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithRetryLimit sets the per-block retry ceiling, in [1, MaxRetryLimit].
func WithRetryLimit(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 || n > MaxRetryLimit {
			return fmt.Errorf("xfer: retry limit %d out of range [1, %d]", n, MaxRetryLimit)
		}
		cfg.retryLimit = n

		return nil
	})
}

// WithBlockTimeout sets the per-block ACK/NAK deadline.
func WithBlockTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinBlockTimeout || d > MaxBlockTimeout {
			return fmt.Errorf("xfer: block timeout %v out of range [%v, %v]", d, MinBlockTimeout, MaxBlockTimeout)
		}
		cfg.blockTimeout = d

		return nil
	})
}

// WithStartupTimeout sets the counterpart detection window.
func WithStartupTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinStartupTimeout || d > MaxStartupTimeout {
			return fmt.Errorf("xfer: startup timeout %v out of range [%v, %v]", d, MinStartupTimeout, MaxStartupTimeout)
		}
		cfg.startupTimeout = d

		return nil
	})
}

// WithNegotiateInterval sets the receiver's poll byte repeat interval.
func WithNegotiateInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinNegotiateInterval || d > MaxNegotiateInterval {
			return fmt.Errorf("xfer: negotiate interval %v out of range [%v, %v]", d, MinNegotiateInterval, MaxNegotiateInterval)
		}
		cfg.negotiateInterval = d

		return nil
	})
}

// WithASCIIIdleWindow sets the inactivity gap that completes an ASCII receive.
func WithASCIIIdleWindow(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinASCIIIdleWindow || d > MaxASCIIIdleWindow {
			return fmt.Errorf("xfer: ascii idle window %v out of range [%v, %v]", d, MinASCIIIdleWindow, MaxASCIIIdleWindow)
		}
		cfg.asciiIdleWindow = d

		return nil
	})
}

// WithLogger sets the logger used by the engine.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return fmt.Errorf("xfer: logger cannot be nil")
		}
		cfg.logger = l

		return nil
	})
}
