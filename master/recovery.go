package master

// recoveryState is the state of a recoveryPlan.
type recoveryState uint8

const (
	// planFirstAttempt: the initial command is running, no recovery used.
	planFirstAttempt recoveryState = iota
	// planRecovering: at least one recovery was used and more may follow.
	planRecovering
	// planExhausted: the recovery budget is spent.
	planExhausted
)

func (s recoveryState) String() string {
	switch s {
	case planFirstAttempt:
		return "first-attempt"
	case planRecovering:
		return "recovering"
	default:
		return "exhausted"
	}
}

// recoveryPlan schedules the stall recoveries of one rotation.
//
// Each recovery lowers the ramp distance by step, never below floor and never
// above the starting ramp.
type recoveryPlan struct {
	state recoveryState
	limit int // UnlimitedRetries for no bound
	used  int
	ramp  uint8
	floor uint8
	step  uint8
}

// newRecoveryPlan starts from ramp, the distance the peripheral is using. A
// ramp already below floor becomes the floor.
func newRecoveryPlan(limit int, ramp, floor, step uint8) *recoveryPlan {
	floor = min(floor, ramp)
	return &recoveryPlan{
		state: planFirstAttempt,
		limit: limit,
		ramp:  ramp,
		floor: floor,
		step:  step,
	}
}

// next consumes one recovery and returns the ramp distance to apply before
// re-issuing the rotation. ok is false once the budget is spent; the plan then
// stays exhausted.
func (p *recoveryPlan) next() (ramp uint8, ok bool) {
	if p.state == planExhausted {
		return p.ramp, false
	}
	if p.limit != UnlimitedRetries && p.used >= p.limit {
		p.state = planExhausted
		return p.ramp, false
	}

	p.used++
	p.state = planRecovering
	if p.ramp-p.floor > p.step {
		p.ramp -= p.step
	} else {
		p.ramp = p.floor
	}

	return p.ramp, true
}

// attempts returns the number of rotation commands the plan has accounted for.
func (p *recoveryPlan) attempts() int { return p.used + 1 }

// recoveries returns the number of recoveries used.
func (p *recoveryPlan) recoveries() int { return p.used }

// currentRamp returns the ramp distance of the running attempt.
func (p *recoveryPlan) currentRamp() uint8 { return p.ramp }
