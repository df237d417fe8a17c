package peripheral

import (
	"math"
	"sync"
	"time"
)

// Motor accepts the drive computed on every tick.
type Motor interface {
	Drive(d Drive)
}

// Encoder reports measured rotation. ReadDelta returns the signed whole degrees
// moved since the previous call.
type Encoder interface {
	ReadDelta() int
}

// AbsoluteEncoder is an Encoder that also knows the absolute angle, used to seed
// the position at boot.
type AbsoluteEncoder interface {
	Encoder
	Angle() uint16
}

// SimMotor simulates a motor and its encoder. Speed 255 turns the table at the
// configured degrees per second; lower speeds scale linearly.
type SimMotor struct {
	mu        sync.Mutex
	degPerSec float64
	drive     Drive
	last      time.Time
	acc       float64 // measured degrees not yet read
	angle     float64 // absolute angle, [0, 360)
	jammed    bool
	inverted  bool
	now       func() time.Time
}

var (
	_ Motor           = (*SimMotor)(nil)
	_ AbsoluteEncoder = (*SimMotor)(nil)
)

// NewSimMotor creates a simulated motor resting at startAngle.
func NewSimMotor(degPerSec float64, startAngle uint16) *SimMotor {
	m := &SimMotor{
		degPerSec: degPerSec,
		angle:     float64(startAngle % 360),
		now:       time.Now,
	}
	m.last = m.now()

	return m
}

// Drive applies a new drive after integrating motion under the previous one.
func (m *SimMotor) Drive(d Drive) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.advanceLocked()
	m.drive = d
}

// ReadDelta returns the whole degrees moved since the last call.
func (m *SimMotor) ReadDelta() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.advanceLocked()
	whole := math.Trunc(m.acc)
	m.acc -= whole

	return int(whole)
}

// Angle returns the simulated absolute angle, truncated to whole degrees.
func (m *SimMotor) Angle() uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.advanceLocked()

	return uint16(m.angle) % 360
}

// Jam blocks or releases the table. A jammed table does not move under any drive.
func (m *SimMotor) Jam(jammed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.advanceLocked()
	m.jammed = jammed
}

// Invert swaps the wiring so the table turns against the commanded direction.
func (m *SimMotor) Invert(inverted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.advanceLocked()
	m.inverted = inverted
}

// CurrentDrive returns the drive last applied.
func (m *SimMotor) CurrentDrive() Drive {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.drive
}

func (m *SimMotor) advanceLocked() {
	now := m.now()
	dt := now.Sub(m.last)
	m.last = now

	if m.jammed || m.drive.Stopped() || dt <= 0 {
		return
	}

	deg := m.degPerSec * float64(m.drive.Speed) / 255 * dt.Seconds()
	if m.drive.Direction == Reverse {
		deg = -deg
	}
	if m.inverted {
		deg = -deg
	}

	m.acc += deg
	m.angle = math.Mod(m.angle+deg, 360)
	if m.angle < 0 {
		m.angle += 360
	}
}
