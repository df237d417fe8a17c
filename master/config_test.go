package master

import (
	"testing"
	"time"

	"github.com/arloliu/go-turntable/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, protocol.DefaultAddress, cfg.Address())
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval())
	assert.Equal(t, DefaultRetryLimit, cfg.RetryLimit())
	assert.Equal(t, uint8(DefaultRampDistance), cfg.RampDistance())
	assert.Equal(t, DefaultAttemptTimeout, cfg.AttemptTimeout())
	assert.Equal(t, DefaultReadRetryLimit, cfg.ReadRetryLimit())
	assert.Equal(t, DefaultCorruptPollLimit, cfg.CorruptPollLimit())
	assert.NotNil(t, cfg.GetLogger())

	floor, step := cfg.RampSchedule()
	assert.Equal(t, uint8(DefaultRampFloor), floor)
	assert.Equal(t, uint8(DefaultRampStep), step)
}

func TestNewConfig_Options(t *testing.T) {
	cfg, err := NewConfig(
		WithAddress(0x30),
		WithPollInterval(20*time.Millisecond),
		WithRetryLimit(UnlimitedRetries),
		WithRampDistance(40),
		WithRampSchedule(10, 8),
		WithAttemptTimeout(time.Second),
		WithReadRetryLimit(0),
		WithCorruptPollLimit(1),
	)
	require.NoError(t, err)

	assert.Equal(t, uint16(0x30), cfg.Address())
	assert.Equal(t, 20*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, UnlimitedRetries, cfg.RetryLimit())
	assert.Equal(t, uint8(40), cfg.RampDistance())
	assert.Equal(t, time.Second, cfg.AttemptTimeout())
	assert.Zero(t, cfg.ReadRetryLimit())
	assert.Equal(t, 1, cfg.CorruptPollLimit())

	floor, step := cfg.RampSchedule()
	assert.Equal(t, uint8(10), floor)
	assert.Equal(t, uint8(8), step)
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"address", []Option{WithAddress(0x100)}},
		{"poll too short", []Option{WithPollInterval(time.Millisecond)}},
		{"poll too long", []Option{WithPollInterval(time.Minute)}},
		{"negative retries", []Option{WithRetryLimit(-2)}},
		{"too many retries", []Option{WithRetryLimit(MaxRetryLimit + 1)}},
		{"ramp", []Option{WithRampDistance(4)}},
		{"floor", []Option{WithRampSchedule(4, 5)}},
		{"step", []Option{WithRampSchedule(5, 0)}},
		{"floor above ramp", []Option{WithRampDistance(10), WithRampSchedule(20, 5)}},
		{"attempt timeout", []Option{WithAttemptTimeout(time.Millisecond)}},
		{"read retries", []Option{WithReadRetryLimit(-1)}},
		{"corrupt polls", []Option{WithCorruptPollLimit(0)}},
		{"logger", []Option{WithLogger(nil)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.opts...)
			require.Error(t, err)
		})
	}
}
