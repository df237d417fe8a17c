package master

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-turntable/logger"
	"github.com/arloliu/go-turntable/protocol"
)

const (
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultRetryLimit     = 3
	DefaultRampDistance   = 15 // degrees, written by Initialize
	DefaultRampFloor      = 5
	DefaultRampStep       = 5
	DefaultAttemptTimeout = 10 * time.Second
	DefaultReadRetryLimit = 3
	// DefaultCorruptPollLimit is the number of consecutive corrupted status
	// responses tolerated while polling a rotation.
	DefaultCorruptPollLimit = 10
)

const (
	MinPollInterval = 10 * time.Millisecond
	MaxPollInterval = 5 * time.Second

	MaxRetryLimit = 31
	// UnlimitedRetries lets a rotation recover from stalls until the context ends.
	UnlimitedRetries = -1

	// MinRampFloor is the smallest ramp distance the peripheral accepts unclamped.
	MinRampFloor = 5

	MinAttemptTimeout = 100 * time.Millisecond
	MaxAttemptTimeout = 10 * time.Minute

	MaxReadRetryLimit   = 31
	MaxCorruptPollLimit = 255
)

// Config holds the settings of a Session.
type Config struct {
	address          uint16
	pollInterval     time.Duration
	retryLimit       int
	rampDistance     uint8
	rampFloor        uint8
	rampStep         uint8
	attemptTimeout   time.Duration
	readRetryLimit   int
	corruptPollLimit int

	logger logger.Logger
}

// NewConfig creates a session configuration.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		address:          protocol.DefaultAddress,
		pollInterval:     DefaultPollInterval,
		retryLimit:       DefaultRetryLimit,
		rampDistance:     DefaultRampDistance,
		rampFloor:        DefaultRampFloor,
		rampStep:         DefaultRampStep,
		attemptTimeout:   DefaultAttemptTimeout,
		readRetryLimit:   DefaultReadRetryLimit,
		corruptPollLimit: DefaultCorruptPollLimit,
		logger:           logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.rampFloor > cfg.rampDistance {
		return nil, fmt.Errorf("master: ramp floor %d above ramp distance %d", cfg.rampFloor, cfg.rampDistance)
	}

	return cfg, nil
}

// Address returns the peripheral address.
func (cfg *Config) Address() uint16 { return cfg.address }

// PollInterval returns the status poll period during a rotation.
func (cfg *Config) PollInterval() time.Duration { return cfg.pollInterval }

// RetryLimit returns the number of stall recoveries per rotation, or UnlimitedRetries.
func (cfg *Config) RetryLimit() int { return cfg.retryLimit }

// RampDistance returns the ramp distance written by Initialize.
func (cfg *Config) RampDistance() uint8 { return cfg.rampDistance }

// RampSchedule returns the floor and the per-recovery decrement of the ramp distance.
func (cfg *Config) RampSchedule() (floor, step uint8) { return cfg.rampFloor, cfg.rampStep }

// AttemptTimeout returns how long one rotation attempt may report rotating.
func (cfg *Config) AttemptTimeout() time.Duration { return cfg.attemptTimeout }

// ReadRetryLimit returns how often a standalone read is repeated after a corrupted response.
func (cfg *Config) ReadRetryLimit() int { return cfg.readRetryLimit }

// CorruptPollLimit returns the consecutive corrupted polls tolerated during a rotation.
func (cfg *Config) CorruptPollLimit() int { return cfg.corruptPollLimit }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring a Session.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithAddress sets the 7-bit peripheral address.
func WithAddress(addr uint16) Option {
	return optFunc(func(cfg *Config) error {
		if addr > protocol.MaxAddress {
			return fmt.Errorf("master: address 0x%02X exceeds 7 bits", addr)
		}
		cfg.address = addr

		return nil
	})
}

// WithPollInterval sets the status poll period.
func WithPollInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinPollInterval || d > MaxPollInterval {
			return fmt.Errorf("master: poll interval %v out of range [%v, %v]", d, MinPollInterval, MaxPollInterval)
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithRetryLimit sets the number of stall recoveries per rotation.
func WithRetryLimit(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n != UnlimitedRetries && (n < 0 || n > MaxRetryLimit) {
			return fmt.Errorf("master: retry limit %d out of range [0, %d]", n, MaxRetryLimit)
		}
		cfg.retryLimit = n

		return nil
	})
}

// WithRampDistance sets the ramp distance written by Initialize and used by the
// first attempt of each rotation.
func WithRampDistance(deg uint8) Option {
	return optFunc(func(cfg *Config) error {
		if deg < MinRampFloor {
			return fmt.Errorf("master: ramp distance %d below minimum %d", deg, MinRampFloor)
		}
		cfg.rampDistance = deg

		return nil
	})
}

// WithRampSchedule sets the ramp floor and the decrement applied on each recovery.
func WithRampSchedule(floor, step uint8) Option {
	return optFunc(func(cfg *Config) error {
		if floor < MinRampFloor {
			return fmt.Errorf("master: ramp floor %d below minimum %d", floor, MinRampFloor)
		}
		if step == 0 {
			return errors.New("master: ramp step must be positive")
		}
		cfg.rampFloor, cfg.rampStep = floor, step

		return nil
	})
}

// WithAttemptTimeout sets how long one rotation attempt may run before the
// master counts it as stalled.
func WithAttemptTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinAttemptTimeout || d > MaxAttemptTimeout {
			return fmt.Errorf("master: attempt timeout %v out of range [%v, %v]", d, MinAttemptTimeout, MaxAttemptTimeout)
		}
		cfg.attemptTimeout = d

		return nil
	})
}

// WithReadRetryLimit sets how often a standalone read is repeated after a
// corrupted response.
func WithReadRetryLimit(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 0 || n > MaxReadRetryLimit {
			return fmt.Errorf("master: read retry limit %d out of range [0, %d]", n, MaxReadRetryLimit)
		}
		cfg.readRetryLimit = n

		return nil
	})
}

// WithCorruptPollLimit sets the consecutive corrupted polls tolerated during a rotation.
func WithCorruptPollLimit(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 || n > MaxCorruptPollLimit {
			return fmt.Errorf("master: corrupt poll limit %d out of range [1, %d]", n, MaxCorruptPollLimit)
		}
		cfg.corruptPollLimit = n

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("master: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
