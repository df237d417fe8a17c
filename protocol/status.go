package protocol

import "strings"

// Status is the peripheral status byte.
type Status byte

const (
	// StatusBoot is set once the peripheral has finished initialization.
	StatusBoot Status = 0x80
	// StatusRotating is set while a rotation is in progress.
	StatusRotating Status = 0x40
	// StatusError is set while any error flag is pending.
	StatusError Status = 0x01
)

func (s Status) Booted() bool   { return s&StatusBoot != 0 }
func (s Status) Rotating() bool { return s&StatusRotating != 0 }
func (s Status) HasError() bool { return s&StatusError != 0 }

// ErrorFlags is the accumulated peripheral error bitmask.
type ErrorFlags byte

const (
	FlagParamCount          ErrorFlags = 0x01
	FlagBadCom              ErrorFlags = 0x02
	FlagUnrecognizedCommand ErrorFlags = 0x04
	FlagRotationTimeout     ErrorFlags = 0x08
	FlagRotationDirection   ErrorFlags = 0x10

	// AllFlags is the union of every defined flag.
	AllFlags = FlagParamCount | FlagBadCom | FlagUnrecognizedCommand | FlagRotationTimeout | FlagRotationDirection
)

var flagNames = []struct {
	flag ErrorFlags
	name string
}{
	{FlagParamCount, "ParamCount"},
	{FlagBadCom, "BadCom"},
	{FlagUnrecognizedCommand, "UnrecognizedCommand"},
	{FlagRotationTimeout, "RotationTimeout"},
	{FlagRotationDirection, "RotationDirection"},
}

// Has reports whether every flag in f is set.
func (e ErrorFlags) Has(f ErrorFlags) bool { return e&f == f }

// Without returns e with the flags in f cleared.
func (e ErrorFlags) Without(f ErrorFlags) ErrorFlags { return e &^ f }

func (e ErrorFlags) String() string {
	if e == 0 {
		return "none"
	}
	var names []string
	for _, fn := range flagNames {
		if e&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	if e&^AllFlags != 0 {
		names = append(names, "Reserved")
	}
	return strings.Join(names, "|")
}

// StatusPosition is a decoded StatusAndPosition response.
type StatusPosition struct {
	Status   Status
	Position uint16
}
