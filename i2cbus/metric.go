package i2cbus

import "sync/atomic"

// Metrics contains atomic counters for a Bus.
type Metrics struct {
	TxCount        atomic.Uint64
	NackCount      atomic.Uint64
	TargetErrCount atomic.Uint64
	CorruptCount   atomic.Uint64
}

func (m *Metrics) incTxCount()        { m.TxCount.Add(1) }
func (m *Metrics) incNackCount()      { m.NackCount.Add(1) }
func (m *Metrics) incTargetErrCount() { m.TargetErrCount.Add(1) }
func (m *Metrics) incCorruptCount()   { m.CorruptCount.Add(1) }
