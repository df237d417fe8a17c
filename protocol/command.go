package protocol

import "fmt"

// DefaultAddress is the 7-bit bus address of the turntable peripheral.
const DefaultAddress uint16 = 0x45

// MaxAddress is the largest valid 7-bit bus address.
const MaxAddress uint16 = 0x7F

// Command is the leading byte of a command frame.
type Command byte

const (
	CmdStop              Command = 0x00
	CmdStatusAndPosition Command = 0x02
	CmdSetPosition       Command = 0x03
	CmdRotateAbsolute    Command = 0x04
	CmdSetRampDistance   Command = 0x08
	CmdReadError         Command = 0x0B
)

// CommandSpec describes the frame shape of one command.
type CommandSpec struct {
	Name string
	// PayloadLen is the number of payload bytes in the command frame.
	PayloadLen int
	// ResponseLen is the number of payload bytes in the response frame,
	// zero for write-only commands.
	ResponseLen int
}

// FrameLen returns the full command frame length including the checksum.
func (s CommandSpec) FrameLen() int { return 1 + s.PayloadLen + checksumSize }

// ResponseFrameLen returns the full response frame length including the checksum,
// or zero when the command has no response.
func (s CommandSpec) ResponseFrameLen() int {
	if s.ResponseLen == 0 {
		return 0
	}
	return s.ResponseLen + checksumSize
}

// IsRead reports whether the command is answered with a response frame.
func (s CommandSpec) IsRead() bool { return s.ResponseLen > 0 }

var commandTable = map[Command]CommandSpec{
	CmdStop:              {Name: "Stop"},
	CmdStatusAndPosition: {Name: "StatusAndPosition", ResponseLen: 3},
	CmdSetPosition:       {Name: "SetPosition", PayloadLen: 2},
	CmdRotateAbsolute:    {Name: "RotateAbsolute", PayloadLen: 2},
	CmdSetRampDistance:   {Name: "SetRampDistance", PayloadLen: 1},
	CmdReadError:         {Name: "ReadError", ResponseLen: 1},
}

// Lookup returns the frame shape of cmd.
func Lookup(cmd Command) (CommandSpec, bool) {
	spec, ok := commandTable[cmd]
	return spec, ok
}

func (c Command) String() string {
	if spec, ok := commandTable[c]; ok {
		return spec.Name
	}
	return fmt.Sprintf("Command(0x%02X)", byte(c))
}
