package peripheral

import "sync/atomic"

// Metrics contains atomic counters for a peripheral.
type Metrics struct {
	// FrameRecvCount is the number of command frames received.
	FrameRecvCount atomic.Uint64
	// FrameErrCount is the number of frames rejected by validation.
	FrameErrCount atomic.Uint64
	// RotationCount is the number of accepted RotateAbsolute commands.
	RotationCount atomic.Uint64
	// TickCount is the number of motion ticks executed.
	TickCount atomic.Uint64
}

func (m *Metrics) incFrameRecvCount() { m.FrameRecvCount.Add(1) }
func (m *Metrics) incFrameErrCount()  { m.FrameErrCount.Add(1) }
func (m *Metrics) incRotationCount()  { m.RotationCount.Add(1) }
func (m *Metrics) incTickCount()      { m.TickCount.Add(1) }
