package i2cbus

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-turntable/logger"
	"periph.io/x/conn/v3/physic"
)

const (
	DefaultName      = "sim-i2c"
	DefaultSpeed     = 100 * physic.KiloHertz
	DefaultTraceSize = 256

	MaxSpeed     = 5 * physic.MegaHertz
	MaxTraceSize = 1 << 16
	MaxNoiseRate = 0.5
)

// Config holds the settings of a Bus.
type Config struct {
	name      string
	speed     physic.Frequency
	traceSize int
	noiseRate float64
	seed      int64

	logger logger.Logger
}

// NewConfig creates a bus configuration.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		name:      DefaultName,
		speed:     DefaultSpeed,
		traceSize: DefaultTraceSize,
		seed:      1,
		logger:    logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Option is a functional option for configuring a Bus.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithName sets the name reported by String.
func WithName(name string) Option {
	return optFunc(func(cfg *Config) error {
		if name == "" {
			return errors.New("i2cbus: name must not be empty")
		}
		cfg.name = name

		return nil
	})
}

// WithSpeed sets the initial bus clock frequency.
func WithSpeed(f physic.Frequency) Option {
	return optFunc(func(cfg *Config) error {
		if f <= 0 || f > MaxSpeed {
			return fmt.Errorf("%w: %s", ErrInvalidSpeed, f)
		}
		cfg.speed = f

		return nil
	})
}

// WithTraceSize sets how many transactions the trace keeps.
func WithTraceSize(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 || n > MaxTraceSize {
			return fmt.Errorf("i2cbus: trace size %d out of range [1, %d]", n, MaxTraceSize)
		}
		cfg.traceSize = n

		return nil
	})
}

// WithNoise sets the initial per-bit flip probability and the seed of the
// noise source, which makes noisy runs reproducible.
func WithNoise(rate float64, seed int64) Option {
	return optFunc(func(cfg *Config) error {
		if rate < 0 || rate > MaxNoiseRate {
			return fmt.Errorf("i2cbus: noise rate %v out of range [0, %v]", rate, MaxNoiseRate)
		}
		cfg.noiseRate = rate
		cfg.seed = seed

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("i2cbus: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
