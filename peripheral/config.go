package peripheral

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-turntable/logger"
	"github.com/arloliu/go-turntable/protocol"
)

const (
	DefaultStallTimeout = 2000 * time.Millisecond // no encoder progress while rotating
	DefaultTickInterval = 10 * time.Millisecond
	DefaultRampDistance = 15 // degrees

	DefaultMaxSpeed uint8 = 255
	DefaultMinSpeed uint8 = 16 // creep speed at the end of the ramp
)

const (
	MinStallTimeout = 100 * time.Millisecond
	MaxStallTimeout = 60 * time.Second

	MinTickInterval = time.Millisecond
	MaxTickInterval = time.Second

	// MinRampDistance is the floor applied to every ramp distance written to the engine.
	MinRampDistance = 5
	MaxRampDistance = 255
)

// Config holds the tunables of a peripheral.
type Config struct {
	address      uint16
	stallTimeout time.Duration
	tickInterval time.Duration
	rampDistance uint8
	maxSpeed     uint8
	minSpeed     uint8
	bootDelay    time.Duration
	initialPos   uint16

	logger logger.Logger
}

// NewConfig creates a peripheral configuration.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		address:      protocol.DefaultAddress,
		stallTimeout: DefaultStallTimeout,
		tickInterval: DefaultTickInterval,
		rampDistance: DefaultRampDistance,
		maxSpeed:     DefaultMaxSpeed,
		minSpeed:     DefaultMinSpeed,
		logger:       logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Address returns the bus address the device answers on.
func (cfg *Config) Address() uint16 { return cfg.address }

// StallTimeout returns the no-progress window after which a rotation times out.
func (cfg *Config) StallTimeout() time.Duration { return cfg.stallTimeout }

// TickInterval returns the period of the motion tick loop.
func (cfg *Config) TickInterval() time.Duration { return cfg.tickInterval }

// RampDistance returns the ramp distance applied at boot.
func (cfg *Config) RampDistance() uint8 { return cfg.rampDistance }

// SpeedRange returns the creep and full drive speeds.
func (cfg *Config) SpeedRange() (minSpeed, maxSpeed uint8) { return cfg.minSpeed, cfg.maxSpeed }

// BootDelay returns the time between Start and the boot flag being raised.
func (cfg *Config) BootDelay() time.Duration { return cfg.bootDelay }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring a peripheral.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithAddress sets the 7-bit bus address.
func WithAddress(addr uint16) Option {
	return optFunc(func(cfg *Config) error {
		if addr > protocol.MaxAddress {
			return fmt.Errorf("peripheral: address 0x%02X exceeds 7 bits", addr)
		}
		cfg.address = addr

		return nil
	})
}

// WithStallTimeout sets the rotation stall timeout.
func WithStallTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinStallTimeout || d > MaxStallTimeout {
			return fmt.Errorf("peripheral: stall timeout %v out of range [%v, %v]", d, MinStallTimeout, MaxStallTimeout)
		}
		cfg.stallTimeout = d

		return nil
	})
}

// WithTickInterval sets the period of the motion tick loop.
func WithTickInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinTickInterval || d > MaxTickInterval {
			return fmt.Errorf("peripheral: tick interval %v out of range [%v, %v]", d, MinTickInterval, MaxTickInterval)
		}
		cfg.tickInterval = d

		return nil
	})
}

// WithRampDistance sets the ramp distance used until the master writes one.
func WithRampDistance(deg uint8) Option {
	return optFunc(func(cfg *Config) error {
		if deg < MinRampDistance {
			return fmt.Errorf("peripheral: ramp distance %d below minimum %d", deg, MinRampDistance)
		}
		cfg.rampDistance = deg

		return nil
	})
}

// WithSpeedRange sets the creep and full drive speeds.
func WithSpeedRange(minSpeed, maxSpeed uint8) Option {
	return optFunc(func(cfg *Config) error {
		if minSpeed == 0 || minSpeed > maxSpeed {
			return fmt.Errorf("peripheral: invalid speed range [%d, %d]", minSpeed, maxSpeed)
		}
		cfg.minSpeed, cfg.maxSpeed = minSpeed, maxSpeed

		return nil
	})
}

// WithBootDelay delays the boot flag after Start.
func WithBootDelay(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 {
			return errors.New("peripheral: boot delay must not be negative")
		}
		cfg.bootDelay = d

		return nil
	})
}

// WithInitialPosition seeds the position at boot when the encoder cannot report
// an absolute angle.
func WithInitialPosition(deg uint16) Option {
	return optFunc(func(cfg *Config) error {
		cfg.initialPos = deg % 360
		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("peripheral: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
