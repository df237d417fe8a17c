package master

import "sync/atomic"

// Metrics contains atomic counters for a Session.
type Metrics struct {
	// TxCount is the number of bus transactions issued.
	TxCount atomic.Uint64
	// TxErrCount is the number of transactions the bus failed.
	TxErrCount atomic.Uint64
	// CorruptRespCount is the number of responses that failed validation.
	CorruptRespCount atomic.Uint64
	// RotationCount is the number of RotateTo calls.
	RotationCount atomic.Uint64
	// RecoveryCount is the number of stall recoveries performed.
	RecoveryCount atomic.Uint64
	// FaultCount is the number of operations that ended with a FaultError.
	FaultCount atomic.Uint64
}

func (m *Metrics) incTxCount()          { m.TxCount.Add(1) }
func (m *Metrics) incTxErrCount()       { m.TxErrCount.Add(1) }
func (m *Metrics) incCorruptRespCount() { m.CorruptRespCount.Add(1) }
func (m *Metrics) incRotationCount()    { m.RotationCount.Add(1) }
func (m *Metrics) incRecoveryCount()    { m.RecoveryCount.Add(1) }
func (m *Metrics) incFaultCount()       { m.FaultCount.Add(1) }
