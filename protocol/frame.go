package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// checksumSize is the size of the trailing checksum in bytes.
const checksumSize = 1

// MinFrameLen is the shortest possible frame in either direction.
const MinFrameLen = 1 + checksumSize

// Sentinel errors for frame handling.
var (
	ErrMalformedFrame   = errors.New("protocol: malformed frame")
	ErrChecksumMismatch = errors.New("protocol: checksum mismatch")
	ErrUnknownCommand   = errors.New("protocol: unknown command")
)

// Direction selects the checksum order of a frame.
type Direction uint8

const (
	// Outbound frames travel master → peripheral and are checksummed forward.
	Outbound Direction = iota
	// Inbound frames travel peripheral → master and are checksummed in reverse.
	Inbound
)

func (d Direction) String() string {
	if d == Inbound {
		return "inbound"
	}
	return "outbound"
}

// Frame is a checksummed byte sequence as it appears on the bus.
type Frame []byte

// Command returns the leading byte of an outbound frame.
func (f Frame) Command() Command {
	if len(f) == 0 {
		return 0
	}
	return Command(f[0])
}

// Body returns the bytes covered by the checksum.
func (f Frame) Body() []byte {
	if len(f) < checksumSize {
		return nil
	}
	return f[:len(f)-checksumSize]
}

// Payload returns the payload bytes of a frame travelling in dir.
func (f Frame) Payload(dir Direction) []byte {
	body := f.Body()
	if dir == Outbound && len(body) > 0 {
		return body[1:]
	}
	return body
}

// Checksum returns the trailing checksum byte.
func (f Frame) Checksum() byte {
	if len(f) == 0 {
		return 0
	}
	return f[len(f)-1]
}

// EncodeCommand builds an outbound frame for cmd.
func EncodeCommand(cmd Command, payload ...byte) Frame {
	f := make(Frame, 0, 1+len(payload)+checksumSize)
	f = append(f, byte(cmd))
	f = append(f, payload...)

	return append(f, Checksum(f...))
}

// EncodeResponse builds an inbound frame carrying payload.
func EncodeResponse(payload ...byte) Frame {
	f := make(Frame, 0, len(payload)+checksumSize)
	f = append(f, payload...)

	return append(f, ChecksumReverse(payload...))
}

// EncodeAngle returns the little-endian payload for an angle in degrees.
func EncodeAngle(angle uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, angle)
}

// DecodeAngle reads a little-endian angle from the first two bytes of b.
func DecodeAngle(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}

// ExpectedChecksum recomputes the checksum of f using the order of dir.
func ExpectedChecksum(f Frame, dir Direction) byte {
	if dir == Inbound {
		return ChecksumReverse(f.Body()...)
	}
	return Checksum(f.Body()...)
}

// ChecksumOK reports whether the trailing byte of f matches its body.
// It does not look at the declared command.
func ChecksumOK(f Frame, dir Direction) bool {
	if len(f) < MinFrameLen {
		return false
	}
	return ExpectedChecksum(f, dir) == f.Checksum()
}

// Validate reports whether f is a well-formed frame travelling in dir.
//
// Outbound frames must also have exactly the length declared for their command.
// Validate never modifies f.
func Validate(f Frame, dir Direction) bool {
	if dir == Outbound {
		if err := CheckLength(f); err != nil {
			return false
		}
	}
	return ChecksumOK(f, dir)
}

// CheckLength checks an outbound frame against the command table.
//
// It returns an error wrapping ErrUnknownCommand when the command byte is not in
// the table, and ErrMalformedFrame when the length does not match the command.
func CheckLength(f Frame) error {
	if len(f) < MinFrameLen {
		return fmt.Errorf("%w: %d bytes, want at least %d", ErrMalformedFrame, len(f), MinFrameLen)
	}
	spec, ok := Lookup(f.Command())
	if !ok {
		return fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, byte(f.Command()))
	}
	if len(f) != spec.FrameLen() {
		return fmt.Errorf("%w: %s frame has %d bytes, want %d", ErrMalformedFrame, spec.Name, len(f), spec.FrameLen())
	}

	return nil
}

// checkResponse validates an inbound frame of the expected payload length.
func checkResponse(f Frame, payloadLen int) error {
	if len(f) != payloadLen+checksumSize {
		return fmt.Errorf("%w: response has %d bytes, want %d", ErrMalformedFrame, len(f), payloadLen+checksumSize)
	}
	if want := ExpectedChecksum(f, Inbound); want != f.Checksum() {
		return fmt.Errorf("%w: wire=0x%02X, computed=0x%02X", ErrChecksumMismatch, f.Checksum(), want)
	}

	return nil
}

// EncodeStatus builds the StatusAndPosition response frame.
func EncodeStatus(sp StatusPosition) Frame {
	pos := EncodeAngle(sp.Position)
	return EncodeResponse(byte(sp.Status), pos[0], pos[1])
}

// DecodeStatus parses a StatusAndPosition response frame.
func DecodeStatus(f Frame) (StatusPosition, error) {
	if err := checkResponse(f, 3); err != nil {
		return StatusPosition{}, err
	}

	return StatusPosition{Status: Status(f[0]), Position: DecodeAngle(f[1:3])}, nil
}

// EncodeErrorFlags builds the ReadError response frame.
func EncodeErrorFlags(flags ErrorFlags) Frame {
	return EncodeResponse(byte(flags))
}

// DecodeErrorFlags parses a ReadError response frame.
func DecodeErrorFlags(f Frame) (ErrorFlags, error) {
	if err := checkResponse(f, 1); err != nil {
		return 0, err
	}

	return ErrorFlags(f[0]), nil
}
