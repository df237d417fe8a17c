// Package protocol implements the turntable wire format shared by the master
// (scanner controller) and the peripheral (motorized turntable).
//
// # Frames
//
// Every transaction carries a short frame terminated by a CRC-8 checksum byte:
//
//	command frame  (master → peripheral): [Command][Payload(0–2)][CRC]
//	response frame (peripheral → master): [Payload(1–3)][CRC]
//
// The checksum primitive is the same in both directions (CRC-8, polynomial 0x07,
// initial value 0, MSB first) but it is fed differently: command frames are
// checksummed over [Command, Payload...] in wire order, response frames over the
// payload from the last byte to the first.
//
// # Commands
//
//   - Stop (0x00): halt the motor, no response.
//   - StatusAndPosition (0x02): response is status, posLow, posHigh.
//   - SetPosition (0x03): posLow, posHigh; redefines the current angle, no motion.
//   - RotateAbsolute (0x04): posLow, posHigh; shortest-path rotation.
//   - SetRampDistance (0x08): ramp degrees (8-bit).
//   - ReadError (0x0B): response is the accumulated error bitmask, which is cleared.
//
// 16-bit values are little-endian. The peripheral answers at the fixed 7-bit bus
// address [DefaultAddress].
package protocol
