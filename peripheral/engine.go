package peripheral

import (
	"sync"
	"time"

	"github.com/arloliu/go-turntable/logger"
	"github.com/arloliu/go-turntable/protocol"
)

// Engine is the motion state machine of one turntable.
//
// Engine is goroutine-safe. Its clock only advances through Tick, which keeps
// stall detection deterministic under test.
type Engine struct {
	mu  sync.Mutex
	st  State
	now time.Duration

	stallTimeout time.Duration
	minSpeed     uint8
	maxSpeed     uint8

	logger logger.Logger
}

// NewEngine creates an idle, not yet booted engine.
func NewEngine(cfg *Config) *Engine {
	return &Engine{
		st:           State{RampDistance: clampRamp(cfg.rampDistance)},
		stallTimeout: cfg.stallTimeout,
		minSpeed:     cfg.minSpeed,
		maxSpeed:     cfg.maxSpeed,
		logger:       cfg.logger,
	}
}

// Boot seeds the position and raises the boot flag.
func (e *Engine) Boot(position uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.st.Position = position % 360
	e.st.Booted = true
	e.logger.Info("peripheral: boot complete", "position", e.st.Position)
}

// Snapshot returns a consistent copy of the state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.st
}

// Now returns the engine clock.
func (e *Engine) Now() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.now
}

// SetAbsolutePosition redefines the current angle without moving and stops any
// rotation in progress.
func (e *Engine) SetAbsolutePosition(angle uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()
	e.st.Position = angle % 360
	e.logger.Debug("peripheral: position set", "position", e.st.Position)
}

// BeginRotation starts a shortest-path rotation to target. Issued while already
// rotating, it replaces the target and direction.
func (e *Engine) BeginRotation(target uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()

	target %= 360
	d := ShortestDelta(e.st.Position, target)

	e.st.Target = target
	e.st.HasTarget = true
	e.st.Motion = Rotating
	e.st.Direction = Forward
	if d < 0 {
		e.st.Direction = Reverse
	}
	e.st.LastProgress = e.now

	e.logger.Debug("peripheral: rotation started",
		"from", e.st.Position,
		"target", target,
		"delta", d,
		"ramp", e.st.RampDistance,
	)
}

// Stop halts the rotation. Position is kept; stopping an idle engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()
}

func (e *Engine) stopLocked() {
	e.st.Motion = Idle
	e.st.HasTarget = false
	e.st.Target = 0
	e.st.Direction = 0
}

// SetRampDistance sets the deceleration window. Values below MinRampDistance
// are raised to it. It applies to a rotation already in progress.
func (e *Engine) SetRampDistance(deg uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.st.RampDistance = clampRamp(deg)
}

// RaiseError ORs flags into the pending error set.
func (e *Engine) RaiseError(flags protocol.ErrorFlags) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.st.Flags |= flags
}

// ReadErrorAndClear returns the pending error flags and clears them.
func (e *Engine) ReadErrorAndClear() protocol.ErrorFlags {
	e.mu.Lock()
	defer e.mu.Unlock()

	flags := e.st.Flags
	e.st.Flags = 0

	return flags
}

// ReadStatusAndPosition returns the status byte and position from one snapshot.
func (e *Engine) ReadStatusAndPosition() (protocol.Status, uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.st.Status(), e.st.Position
}

// Tick advances the engine clock by elapsed and applies rawDelta degrees of
// measured rotation. It returns the drive to apply until the next tick.
func (e *Engine) Tick(elapsed time.Duration, rawDelta int) Drive {
	e.mu.Lock()
	defer e.mu.Unlock()

	if elapsed > 0 {
		e.now += elapsed
	}
	if e.st.Motion != Rotating {
		return Drive{}
	}

	remaining := travel(e.st.Position, e.st.Target, e.st.Direction)
	if remaining == 0 {
		e.arriveLocked()
		return Drive{}
	}

	if rawDelta != 0 {
		e.st.LastProgress = e.now

		if (rawDelta > 0) != (e.st.Direction == Forward) {
			e.st.Flags |= protocol.FlagRotationDirection
			e.logger.Warn("peripheral: rotation against commanded direction",
				"direction", e.st.Direction,
				"delta", rawDelta,
				"position", e.st.Position,
			)
			e.stopLocked()

			return Drive{}
		}

		e.st.Position = wrapAngle(int(e.st.Position) + rawDelta)
		if abs(rawDelta) >= remaining {
			e.arriveLocked()
			return Drive{}
		}
		remaining -= abs(rawDelta)
	} else if e.now-e.st.LastProgress > e.stallTimeout {
		e.st.Flags |= protocol.FlagRotationTimeout
		e.logger.Warn("peripheral: rotation stalled",
			"position", e.st.Position,
			"target", e.st.Target,
			"stalledFor", e.now-e.st.LastProgress,
		)
		e.stopLocked()

		return Drive{}
	}

	return Drive{Direction: e.st.Direction, Speed: e.speedFor(remaining)}
}

// arriveLocked ends the rotation. The position may lie past the target when the
// last encoder step overshot it.
func (e *Engine) arriveLocked() {
	e.logger.Debug("peripheral: rotation finished",
		"position", e.st.Position,
		"target", e.st.Target,
	)
	e.stopLocked()
}

// speedFor returns full speed outside the ramp window and a linear,
// non-increasing ramp down to the creep speed inside it.
func (e *Engine) speedFor(remaining int) uint8 {
	ramp := int(e.st.RampDistance)
	if remaining >= ramp {
		return e.maxSpeed
	}

	span := int(e.maxSpeed) - int(e.minSpeed)

	return uint8(int(e.minSpeed) + span*remaining/ramp)
}

func clampRamp(deg uint8) uint8 {
	if deg < MinRampDistance {
		return MinRampDistance
	}
	return deg
}
