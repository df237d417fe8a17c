package master

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arloliu/go-turntable/protocol"
)

var (
	// ErrBootNotReady is returned by Initialize when the boot flag is not set yet.
	ErrBootNotReady = errors.New("master: peripheral not booted")
	// ErrInitFailed is returned by Initialize when the position reset did not take.
	ErrInitFailed = errors.New("master: initialization failed")

	// ErrCommunicationFault marks a corrupted or unanswered bus exchange.
	ErrCommunicationFault = errors.New("master: communication fault")
	// ErrProtocolFault marks a command the peripheral rejected.
	ErrProtocolFault = errors.New("master: protocol fault")
	// ErrRotationFailed marks a rotation that stalled on every attempt.
	ErrRotationFailed = errors.New("master: rotation failed")

	// ErrPositionMismatch is the warning of a rotation that ended off target.
	ErrPositionMismatch = errors.New("master: position mismatch")

	errFlagsLost = errors.New("master: error flags lost in a corrupted response")
)

// FaultError describes a failed session operation.
//
// errors.Is matches both Kind and Err.
type FaultError struct {
	Op    string              // operation, e.g. "rotate"
	Kind  error               // ErrCommunicationFault, ErrProtocolFault or ErrRotationFailed
	Flags protocol.ErrorFlags // peripheral error flags behind the fault, if any
	Err   error               // underlying cause, may be nil
}

func (e *FaultError) Error() string {
	var sb strings.Builder

	sb.WriteString(e.Kind.Error())
	if e.Op != "" {
		sb.WriteString(" during ")
		sb.WriteString(e.Op)
	}
	if e.Flags != 0 {
		fmt.Fprintf(&sb, " (flags %s)", e.Flags)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}

	return sb.String()
}

func (e *FaultError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// faultKind maps peripheral error flags that abort an operation to a fault kind.
// BadCom means a frame was damaged on the way to the peripheral; every other
// non-timeout flag means the peripheral refused the command.
func faultKind(flags protocol.ErrorFlags) error {
	if flags.Has(protocol.FlagBadCom) {
		return ErrCommunicationFault
	}
	return ErrProtocolFault
}
