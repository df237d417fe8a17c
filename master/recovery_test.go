package master

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoveryPlan_DefaultSchedule(t *testing.T) {
	p := newRecoveryPlan(DefaultRetryLimit, DefaultRampDistance, DefaultRampFloor, DefaultRampStep)
	assert.Equal(t, planFirstAttempt, p.state)
	assert.Equal(t, 1, p.attempts())

	var ramps []uint8
	for {
		ramp, ok := p.next()
		if !ok {
			break
		}
		ramps = append(ramps, ramp)
	}

	assert.Equal(t, []uint8{10, 5, 5}, ramps)
	assert.Equal(t, planExhausted, p.state)
	assert.Equal(t, 3, p.recoveries())
	assert.Equal(t, 4, p.attempts())

	_, ok := p.next()
	assert.False(t, ok, "an exhausted plan stays exhausted")
	assert.Equal(t, 3, p.recoveries())
}

func TestRecoveryPlan_NonIncreasing(t *testing.T) {
	for ramp := MinRampFloor; ramp <= 255; ramp += 7 {
		for step := 1; step < 40; step += 3 {
			p := newRecoveryPlan(MaxRetryLimit, uint8(ramp), MinRampFloor, uint8(step))

			last := p.currentRamp()
			for {
				next, ok := p.next()
				if !ok {
					break
				}
				require.LessOrEqual(t, next, last)
				require.GreaterOrEqual(t, next, uint8(MinRampFloor))
				last = next
			}
			require.Equal(t, MaxRetryLimit, p.recoveries())
		}
	}
}

func TestRecoveryPlan_ZeroRetries(t *testing.T) {
	p := newRecoveryPlan(0, 20, 5, 5)

	ramp, ok := p.next()
	assert.False(t, ok)
	assert.Equal(t, uint8(20), ramp)
	assert.Equal(t, 1, p.attempts())
	assert.Equal(t, "exhausted", p.state.String())
}

func TestRecoveryPlan_Unlimited(t *testing.T) {
	p := newRecoveryPlan(UnlimitedRetries, 15, 5, 5)

	for range 1000 {
		_, ok := p.next()
		require.True(t, ok)
	}
	assert.Equal(t, "recovering", p.state.String())
	assert.Equal(t, uint8(5), p.currentRamp())
}

func TestRecoveryPlan_RampBelowFloor(t *testing.T) {
	p := newRecoveryPlan(3, 7, 10, 5)
	assert.Equal(t, uint8(7), p.currentRamp())

	for range 3 {
		ramp, ok := p.next()
		require.True(t, ok)
		assert.Equal(t, uint8(7), ramp, "a ramp below the floor is never raised")
	}
}
