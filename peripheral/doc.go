// Package peripheral implements the turntable side of the protocol.
//
// An [Engine] owns the authoritative motion state of one turntable: position,
// target, rotation, ramp distance and the accumulated error flags. A [Processor]
// decodes command frames, validates them and dispatches them to the Engine,
// producing response frames for read commands. A [Device] ties both to a motor
// and an encoder, runs the tick loop on its own goroutine and answers bus
// transactions, so it can be attached to an i2cbus.Bus or any transport that
// delivers write/read byte pairs.
//
// The tick loop and the command path run concurrently. Every Engine operation
// holds a single lock over the whole state, and responses are built from one
// snapshot, so a position is never reported half-updated.
package peripheral
