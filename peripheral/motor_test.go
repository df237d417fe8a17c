package peripheral

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newClockedMotor(degPerSec float64, start uint16) (*SimMotor, *fakeClock) {
	clk := newFakeClock()
	m := NewSimMotor(degPerSec, start)
	m.now = clk.Now
	m.last = clk.Now()

	return m, clk
}

func TestSimMotor_FullSpeed(t *testing.T) {
	m, clk := newClockedMotor(100, 350)

	m.Drive(Drive{Direction: Forward, Speed: 255})
	clk.Advance(150 * time.Millisecond)

	assert.Equal(t, 15, m.ReadDelta())
	assert.Equal(t, uint16(5), m.Angle())
	assert.Zero(t, m.ReadDelta())
}

func TestSimMotor_FractionalDegreesCarry(t *testing.T) {
	m, clk := newClockedMotor(10, 0)
	m.Drive(Drive{Direction: Forward, Speed: 255})

	clk.Advance(50 * time.Millisecond) // 0.5 degrees
	assert.Zero(t, m.ReadDelta())

	clk.Advance(60 * time.Millisecond) // 1.1 degrees in total
	assert.Equal(t, 1, m.ReadDelta())
}

func TestSimMotor_ReverseAndInvert(t *testing.T) {
	m, clk := newClockedMotor(100, 10)

	m.Drive(Drive{Direction: Reverse, Speed: 255})
	clk.Advance(200 * time.Millisecond)
	assert.Equal(t, -20, m.ReadDelta())
	assert.Equal(t, uint16(350), m.Angle())

	m.Invert(true)
	clk.Advance(100 * time.Millisecond)
	assert.Equal(t, 10, m.ReadDelta())
}

func TestSimMotor_JamAndStop(t *testing.T) {
	m, clk := newClockedMotor(100, 0)
	m.Drive(Drive{Direction: Forward, Speed: 255})

	m.Jam(true)
	clk.Advance(time.Second)
	assert.Zero(t, m.ReadDelta())

	m.Jam(false)
	m.Drive(Drive{})
	clk.Advance(time.Second)
	assert.Zero(t, m.ReadDelta())
	assert.True(t, m.CurrentDrive().Stopped())
}
