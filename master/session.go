package master

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/go-turntable/internal/pool"
	"github.com/arloliu/go-turntable/logger"
	"github.com/arloliu/go-turntable/protocol"
	"tinygo.org/x/drivers"
)

var (
	ErrNilBus        = errors.New("master: bus must not be nil")
	ErrInvalidTarget = errors.New("master: angle out of range [0, 359]")
)

// RotationResult describes a completed rotation.
type RotationResult struct {
	Target   uint16
	Position uint16 // final reported position
	// Attempts is the number of RotateAbsolute commands issued.
	Attempts   int
	Recoveries int
	// RampDistance is the ramp distance of the successful attempt.
	RampDistance uint8
	Elapsed      time.Duration
	// Warning wraps ErrPositionMismatch when the table stopped off target.
	Warning error
}

// Session is the master side of one turntable link.
//
// Operations are serialized; Stop and StopAndWait are the exception and may be
// called while another operation, typically RotateTo, is running.
type Session struct {
	bus drivers.I2C
	cfg *Config

	opMu     sync.Mutex // one operation at a time, except Stop
	txMu     sync.Mutex // one outstanding bus transaction
	baseRamp uint8      // ramp distance chosen by the caller
	ramp     uint8      // ramp distance last written to the peripheral

	metrics Metrics
	logger  logger.Logger
}

// NewSession creates a session talking over bus.
func NewSession(bus drivers.I2C, opts ...Option) (*Session, error) {
	if bus == nil {
		return nil, ErrNilBus
	}

	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Session{
		bus:      bus,
		cfg:      cfg,
		baseRamp: cfg.rampDistance,
		ramp:     cfg.rampDistance,
		logger:   cfg.logger,
	}, nil
}

// Config returns the session configuration.
func (s *Session) Config() *Config { return s.cfg }

// GetMetrics returns the session counters.
func (s *Session) GetMetrics() *Metrics { return &s.metrics }

// Initialize checks that the peripheral has booted, resets its position to 0
// and writes the configured ramp distance.
//
// It returns an error wrapping ErrBootNotReady when the boot flag is not set,
// and ErrInitFailed when the reset is not confirmed by the peripheral.
func (s *Session) Initialize(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	const op = "initialize"

	sp, err := s.readStatus(ctx, op)
	if err != nil {
		return err
	}
	if !sp.Status.Booted() {
		return fmt.Errorf("%w: status 0x%02X", ErrBootNotReady, byte(sp.Status))
	}
	if sp.Status.HasError() {
		flags, err := s.readFlags(ctx, op, false)
		if err != nil {
			return err
		}
		s.logger.Info("master: cleared stale error flags", "flags", flags)
	}

	if err := s.write(ctx, op, protocol.CmdSetPosition, protocol.EncodeAngle(0)...); err != nil {
		return err
	}
	if err := s.write(ctx, op, protocol.CmdSetRampDistance, s.cfg.rampDistance); err != nil {
		return err
	}

	sp, err = s.readStatus(ctx, op)
	if err != nil {
		return err
	}
	if sp.Position != 0 {
		return fmt.Errorf("%w: position %d after reset", ErrInitFailed, sp.Position)
	}
	if sp.Status.HasError() {
		flags, err := s.readFlags(ctx, op, true)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInitFailed, err)
		}
		return fmt.Errorf("%w: peripheral flags %s", ErrInitFailed, flags)
	}

	s.baseRamp, s.ramp = s.cfg.rampDistance, s.cfg.rampDistance
	s.logger.Info("master: peripheral initialized", "address", s.cfg.address, "ramp", s.ramp)

	return nil
}

// RotateTo rotates the table to target along the shortest path and waits for
// the rotation to end.
//
// A stalled attempt is retried with a shorter ramp distance until the retry
// limit is reached, which fails with ErrRotationFailed. Any other peripheral
// error aborts the rotation. A rotation that ends off target succeeds with
// RotationResult.Warning set.
//
// When ctx ends, the table is stopped and ctx.Err() is returned.
func (s *Session) RotateTo(ctx context.Context, target uint16) (*RotationResult, error) {
	if target >= 360 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTarget, target)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	const op = "rotate"
	start := time.Now()
	s.metrics.incRotationCount()

	// Undo the ramp reduction left behind by an earlier recovery.
	if s.ramp != s.baseRamp {
		if err := s.write(ctx, op, protocol.CmdSetRampDistance, s.baseRamp); err != nil {
			return nil, err
		}
		s.ramp = s.baseRamp
	}

	floor, step := s.cfg.RampSchedule()
	plan := newRecoveryPlan(s.cfg.retryLimit, s.ramp, floor, step)

	s.logger.Debug("master: rotation started", "target", target, "ramp", s.ramp)
	if err := s.write(ctx, op, protocol.CmdRotateAbsolute, protocol.EncodeAngle(target)...); err != nil {
		return nil, err
	}

	poll := pool.NewPoller(s.cfg.pollInterval)
	defer poll.Close()
	attempt := pool.GetTimer(s.cfg.attemptTimeout)
	defer pool.PutTimer(attempt)

	corrupted := 0
	for {
		select {
		case <-ctx.Done():
			s.stopQuietly()
			return nil, ctx.Err()

		case <-attempt.C:
			s.logger.Warn("master: rotation attempt timed out",
				"target", target,
				"timeout", s.cfg.attemptTimeout,
				"attempt", plan.attempts(),
			)
			if err := s.write(ctx, op, protocol.CmdStop); err != nil {
				return nil, err
			}
			// The peripheral may have flagged the same stall; consume its flags so
			// the next poll does not charge a second recovery.
			flags, err := s.stalledFlags(ctx, op)
			if err != nil {
				return nil, err
			}
			if err := s.recover(ctx, plan, target, flags|protocol.FlagRotationTimeout); err != nil {
				return nil, err
			}
			attempt.Reset(s.cfg.attemptTimeout)

			continue

		case <-poll.C():
			poll.Rearm()
		}

		sp, err := s.readStatusOnce(ctx, op)
		if err != nil {
			if !isCorrupt(err) {
				s.stopQuietly()
				return nil, err
			}

			corrupted++
			s.logger.Debug("master: corrupted status response, re-polling", "count", corrupted, "error", err)
			if corrupted >= s.cfg.corruptPollLimit {
				s.stopQuietly()
				return nil, s.fault(&FaultError{Op: op, Kind: ErrCommunicationFault, Err: err})
			}

			continue
		}
		corrupted = 0

		if sp.Status.HasError() {
			flags, err := s.readFlags(ctx, op, true)
			if err != nil {
				s.stopQuietly()
				return nil, err
			}

			if fatal := flags.Without(protocol.FlagRotationTimeout); fatal != 0 {
				s.stopQuietly()
				return nil, s.fault(&FaultError{Op: op, Kind: faultKind(fatal), Flags: flags})
			}
			if flags.Has(protocol.FlagRotationTimeout) {
				if err := s.recover(ctx, plan, target, flags); err != nil {
					return nil, err
				}
				attempt.Reset(s.cfg.attemptTimeout)
			}

			continue
		}

		if sp.Status.Rotating() {
			continue
		}

		res := &RotationResult{
			Target:       target,
			Position:     sp.Position,
			Attempts:     plan.attempts(),
			Recoveries:   plan.recoveries(),
			RampDistance: plan.currentRamp(),
			Elapsed:      time.Since(start),
		}
		if sp.Position != target {
			res.Warning = fmt.Errorf("%w: stopped at %d, want %d", ErrPositionMismatch, sp.Position, target)
			s.logger.Warn("master: position mismatch", "target", target, "position", sp.Position)
		} else {
			s.logger.Debug("master: rotation finished", "target", target, "attempts", res.Attempts, "elapsed", res.Elapsed)
		}

		return res, nil
	}
}

// recover spends one recovery of plan: it lowers the ramp distance and
// re-issues the rotation. It fails with ErrRotationFailed once plan is exhausted.
func (s *Session) recover(ctx context.Context, plan *recoveryPlan, target uint16, flags protocol.ErrorFlags) error {
	const op = "rotate"

	ramp, ok := plan.next()
	if !ok {
		return s.fault(&FaultError{
			Op:    op,
			Kind:  ErrRotationFailed,
			Flags: flags,
			Err:   fmt.Errorf("stalled on all %d attempts", plan.attempts()),
		})
	}

	s.metrics.incRecoveryCount()
	s.logger.Warn("master: rotation stalled, retrying",
		"target", target,
		"recovery", plan.recoveries(),
		"ramp", ramp,
	)

	if err := s.write(ctx, op, protocol.CmdSetRampDistance, ramp); err != nil {
		return err
	}
	s.ramp = ramp

	return s.write(ctx, op, protocol.CmdRotateAbsolute, protocol.EncodeAngle(target)...)
}

// stalledFlags reads and clears the error flags left after a stopped attempt.
// Flags other than RotationTimeout abort the rotation.
func (s *Session) stalledFlags(ctx context.Context, op string) (protocol.ErrorFlags, error) {
	sp, err := s.readStatus(ctx, op)
	if err != nil {
		return 0, err
	}
	if !sp.Status.HasError() {
		return 0, nil
	}

	flags, err := s.readFlags(ctx, op, false)
	if err != nil {
		return 0, err
	}
	if fatal := flags.Without(protocol.FlagRotationTimeout); fatal != 0 {
		return 0, s.fault(&FaultError{Op: op, Kind: faultKind(fatal), Flags: flags})
	}

	return flags, nil
}

// Stop halts the table. The command is not acknowledged; poll the status, or
// use StopAndWait, to confirm the table has stopped.
func (s *Session) Stop(ctx context.Context) error {
	return s.write(ctx, "stop", protocol.CmdStop)
}

// StopAndWait halts the table and polls until the rotating flag clears.
func (s *Session) StopAndWait(ctx context.Context) (protocol.StatusPosition, error) {
	const op = "stop"

	if err := s.write(ctx, op, protocol.CmdStop); err != nil {
		return protocol.StatusPosition{}, err
	}

	poll := pool.NewPoller(s.cfg.pollInterval)
	defer poll.Close()

	corrupted := 0
	for {
		if err := poll.Wait(ctx); err != nil {
			return protocol.StatusPosition{}, err
		}

		sp, err := s.readStatusOnce(ctx, op)
		if err != nil {
			if !isCorrupt(err) {
				return protocol.StatusPosition{}, err
			}
			corrupted++
			if corrupted >= s.cfg.corruptPollLimit {
				return protocol.StatusPosition{}, s.fault(&FaultError{Op: op, Kind: ErrCommunicationFault, Err: err})
			}

			continue
		}
		corrupted = 0

		if !sp.Status.Rotating() {
			return sp, nil
		}
	}
}

// ReadStatus reads the status byte and position.
func (s *Session) ReadStatus(ctx context.Context) (protocol.StatusPosition, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.readStatus(ctx, "read status")
}

// ReadErrorFlags reads and clears the pending peripheral error flags.
func (s *Session) ReadErrorFlags(ctx context.Context) (protocol.ErrorFlags, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.readFlags(ctx, "read error", false)
}

// SetPosition redefines the current angle of the table without moving it.
func (s *Session) SetPosition(ctx context.Context, angle uint16) error {
	if angle >= 360 {
		return fmt.Errorf("%w: %d", ErrInvalidTarget, angle)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.write(ctx, "set position", protocol.CmdSetPosition, protocol.EncodeAngle(angle)...)
}

// SetRampDistance sets the deceleration window used by later rotations.
// The peripheral raises values below MinRampFloor to it.
func (s *Session) SetRampDistance(ctx context.Context, deg uint8) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.write(ctx, "set ramp", protocol.CmdSetRampDistance, deg); err != nil {
		return err
	}
	deg = max(deg, MinRampFloor)
	s.baseRamp, s.ramp = deg, deg

	return nil
}

// stopQuietly stops the table after an aborted rotation, ignoring the caller's
// cancellation.
func (s *Session) stopQuietly() {
	if err := s.write(context.Background(), "stop", protocol.CmdStop); err != nil {
		s.logger.Debug("master: stop after abort failed", "error", err)
	}
}

// readStatus reads the status, re-reading corrupted responses up to the read
// retry limit.
func (s *Session) readStatus(ctx context.Context, op string) (protocol.StatusPosition, error) {
	var lastErr error
	for i := 0; i <= s.cfg.readRetryLimit; i++ {
		sp, err := s.readStatusOnce(ctx, op)
		if err == nil {
			return sp, nil
		}
		if !isCorrupt(err) {
			return sp, err
		}

		lastErr = err
		s.logger.Debug("master: corrupted status response, re-reading", "op", op, "attempt", i+1, "error", err)
	}

	return protocol.StatusPosition{}, s.fault(&FaultError{Op: op, Kind: ErrCommunicationFault, Err: lastErr})
}

func (s *Session) readStatusOnce(ctx context.Context, op string) (protocol.StatusPosition, error) {
	r, err := s.tx(ctx, op, protocol.CmdStatusAndPosition)
	if err != nil {
		return protocol.StatusPosition{}, err
	}

	sp, err := protocol.DecodeStatus(r)
	if err != nil {
		s.metrics.incCorruptRespCount()
	}

	return sp, err
}

// readFlags reads and clears the error flags, re-reading corrupted responses
// up to the read retry limit.
//
// A corrupted ReadError response has already cleared the flags on the
// peripheral. When expectSet is true, an empty re-read after such a response
// is reported as a communication fault instead of as no flags.
func (s *Session) readFlags(ctx context.Context, op string, expectSet bool) (protocol.ErrorFlags, error) {
	var lastErr error
	for i := 0; i <= s.cfg.readRetryLimit; i++ {
		r, err := s.tx(ctx, op, protocol.CmdReadError)
		if err != nil {
			return 0, err
		}

		flags, err := protocol.DecodeErrorFlags(r)
		if err == nil {
			if flags == 0 && expectSet && lastErr != nil {
				return 0, s.fault(&FaultError{
					Op:   op,
					Kind: ErrCommunicationFault,
					Err:  fmt.Errorf("%w: %w", errFlagsLost, lastErr),
				})
			}
			return flags, nil
		}

		s.metrics.incCorruptRespCount()
		lastErr = err
		s.logger.Debug("master: corrupted error response, re-reading", "op", op, "attempt", i+1, "error", err)
	}

	return 0, s.fault(&FaultError{Op: op, Kind: ErrCommunicationFault, Err: lastErr})
}

func (s *Session) write(ctx context.Context, op string, cmd protocol.Command, payload ...byte) error {
	_, err := s.tx(ctx, op, cmd, payload...)
	return err
}

// tx runs one transaction and returns the raw response frame, nil for write
// commands.
func (s *Session) tx(ctx context.Context, op string, cmd protocol.Command, payload ...byte) (protocol.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spec, ok := protocol.Lookup(cmd)
	if !ok {
		return nil, fmt.Errorf("%w: %s", protocol.ErrUnknownCommand, cmd)
	}

	w := protocol.EncodeCommand(cmd, payload...)
	var r protocol.Frame
	if n := spec.ResponseFrameLen(); n > 0 {
		r = make(protocol.Frame, n)
	}

	s.txMu.Lock()
	err := s.bus.Tx(s.cfg.address, w, r)
	s.txMu.Unlock()

	s.metrics.incTxCount()
	if err != nil {
		s.metrics.incTxErrCount()
		return nil, s.fault(&FaultError{Op: op, Kind: ErrCommunicationFault, Err: err})
	}

	return r, nil
}

func (s *Session) fault(fe *FaultError) error {
	s.metrics.incFaultCount()
	s.logger.Error("master: operation failed",
		"op", fe.Op,
		"kind", fe.Kind,
		"flags", fe.Flags,
		"error", fe.Err,
	)

	return fe
}

func isCorrupt(err error) bool {
	return errors.Is(err, protocol.ErrChecksumMismatch) || errors.Is(err, protocol.ErrMalformedFrame)
}
