package peripheral

import (
	"time"

	"github.com/arloliu/go-turntable/protocol"
)

// MotionState is the motion half of the peripheral state machine. Faults are an
// overlay reported by State.Faulted, not a separate motion state.
type MotionState uint8

const (
	Idle MotionState = iota
	Rotating
)

func (m MotionState) String() string {
	if m == Rotating {
		return "Rotating"
	}
	return "Idle"
}

// Direction is the commanded sense of rotation.
type Direction int8

const (
	// Forward rotates towards increasing angles.
	Forward Direction = 1
	// Reverse rotates towards decreasing angles.
	Reverse Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	default:
		return "none"
	}
}

// Drive is the motor command produced by each tick.
type Drive struct {
	Direction Direction
	Speed     uint8
}

// Stopped reports whether the drive holds the motor still.
func (d Drive) Stopped() bool { return d.Speed == 0 }

// State is a snapshot of the peripheral state.
type State struct {
	Booted       bool
	Position     uint16
	Target       uint16
	HasTarget    bool
	Motion       MotionState
	Direction    Direction
	RampDistance uint8
	Flags        protocol.ErrorFlags
	// LastProgress is the engine clock reading of the last observed position
	// change while rotating.
	LastProgress time.Duration
}

// Rotating reports whether a rotation is in progress.
func (s State) Rotating() bool { return s.Motion == Rotating }

// Faulted reports whether error flags are pending.
func (s State) Faulted() bool { return s.Flags != 0 }

// Status encodes the status byte reported on the bus.
func (s State) Status() protocol.Status {
	var st protocol.Status
	if s.Booted {
		st |= protocol.StatusBoot
	}
	if s.Rotating() {
		st |= protocol.StatusRotating
	}
	if s.Faulted() {
		st |= protocol.StatusError
	}

	return st
}

// ShortestDelta returns the signed angular distance from one angle to another
// along the shorter arc, in (-180, 180]. Exactly opposite angles resolve
// to +180 so the rotation runs Forward.
func ShortestDelta(from, to uint16) int {
	d := (int(to%360)-int(from%360)+540)%360 - 180
	if d == -180 {
		return 180
	}
	return d
}

// travel returns the distance still to cover from pos to target in dir, in [0, 359].
func travel(pos, target uint16, dir Direction) int {
	if dir == Reverse {
		return (int(pos) - int(target) + 360) % 360
	}
	return (int(target) - int(pos) + 360) % 360
}

func wrapAngle(a int) uint16 {
	a %= 360
	if a < 0 {
		a += 360
	}
	return uint16(a)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
