// Package i2cbus provides an in-memory, addressed, half-duplex bus.
//
// A Bus connects a master to the targets attached at 7-bit addresses. It
// implements both tinygo.org/x/drivers.I2C and periph.io/x/conn/v3/i2c.Bus, so
// code written against either interface runs unchanged against a simulated
// peripheral.
//
// The bus can corrupt frames in transit, deterministically (the next n writes
// or reads) or at random (a per-bit noise rate), and it keeps a bounded trace of
// the most recent transactions for inspection in tests.
package i2cbus
